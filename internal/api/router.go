package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/velia-hr/portal/internal/api/handler"
	"github.com/velia-hr/portal/internal/api/middleware"
	"github.com/velia-hr/portal/internal/obs"
	"github.com/velia-hr/portal/internal/role"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger      handler.DBPinger
	Version       string
	OpenAPISpec   []byte
	Authenticator middleware.Authenticator
	Logins        handler.LoginService
	Users         handler.UserService
	Metrics       *obs.Metrics
	LoginLimiter  *middleware.RateLimiter
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
		r.Method("GET", "/metrics", deps.Metrics.Handler())
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.Logins != nil {
		var recorder handler.LoginRecorder
		if deps.Metrics != nil {
			recorder = deps.Metrics
		}
		authHandler := handler.NewAuthHandler(deps.Logins, recorder)
		r.Route("/api/auth", func(r chi.Router) {
			if deps.LoginLimiter != nil {
				r.Use(deps.LoginLimiter.Middleware)
			}
			r.Post("/local-login", authHandler.LocalLogin)
			r.Post("/idp-login", authHandler.IdPLogin)
		})
	}

	if deps.Authenticator != nil && deps.Users != nil {
		userHandler := handler.NewUserHandler(deps.Users)
		r.Route("/api/users", func(r chi.Router) {
			r.Use(middleware.Auth(deps.Authenticator))

			r.Get("/me", userHandler.Me)
			r.Put("/me/role-request", userHandler.RequestRole)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(role.Admin, role.HR))
				r.Get("/", userHandler.List)
				r.Put("/role", userHandler.SetRole)
			})
		})
	}

	return r
}

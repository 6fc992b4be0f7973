package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	specpkg "github.com/velia-hr/portal/api"
	"github.com/velia-hr/portal/internal/api"
	"github.com/velia-hr/portal/internal/api/middleware"
	"github.com/velia-hr/portal/internal/auth"
	"github.com/velia-hr/portal/internal/obs"
	"github.com/velia-hr/portal/internal/role"
)

// fakeService stands in for auth.Service: "Bearer <role>" authenticates as a
// user holding that role.
type fakeService struct{}

func (fakeService) Authenticate(_ context.Context, header string) (*auth.Identity, error) {
	r, err := role.ParseRole(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{Email: string(r) + "@x.com", Role: r}, nil
}

func (fakeService) LocalLogin(_ context.Context, _, _ string) (*auth.User, error) {
	return nil, auth.ErrInvalidCredentials
}

func (fakeService) IdPLogin(_ context.Context, _ string) (*auth.User, error) {
	return nil, auth.ErrIdPDisabled
}

func (fakeService) Profile(_ context.Context, id *auth.Identity) (*auth.User, error) {
	return &auth.User{ID: uuid.New(), Email: id.Email, Role: id.Role, RoleID: uuid.New()}, nil
}

func (fakeService) Roster(_ context.Context, _ *auth.Identity) ([]auth.User, error) {
	return []auth.User{}, nil
}

func (fakeService) AssignRole(_ context.Context, _ *auth.Identity, email string, target role.Role) (*auth.User, error) {
	return &auth.User{Email: email, Role: target}, nil
}

func (fakeService) RequestRole(_ context.Context, id *auth.Identity, target role.Role) (*auth.User, error) {
	return &auth.User{Email: id.Email, Role: id.Role, Status: role.PendingEscalation(target)}, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter() *chi.Mux {
	return newRouterWith(func(*api.RouterDeps) {})
}

func newRouterWith(opt func(*api.RouterDeps)) *chi.Mux {
	svc := fakeService{}
	deps := api.RouterDeps{
		DBPinger:      okPinger{},
		Version:       "test",
		OpenAPISpec:   specpkg.OpenAPISpec,
		Authenticator: svc,
		Logins:        svc,
		Users:         svc,
		Metrics:       obs.New(),
		LoginLimiter:  middleware.NewRateLimiter(60, 2),
	}
	opt(&deps)
	return api.NewRouter(deps)
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Access(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"openapi is public", http.MethodGet, "/openapi.json", "", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"me requires token", http.MethodGet, "/api/users/me", "", "", http.StatusUnauthorized},
		{"me rejects unknown token", http.MethodGet, "/api/users/me", "nobody", "", http.StatusUnauthorized},
		{"me for simple", http.MethodGet, "/api/users/me", "simple", "", http.StatusOK},
		{"roster denied to manager", http.MethodGet, "/api/users", "manager", "", http.StatusForbidden},
		{"roster for hr", http.MethodGet, "/api/users", "hr", "", http.StatusOK},
		{"roster for admin", http.MethodGet, "/api/users", "admin", "", http.StatusOK},
		{"set role denied to facilitator", http.MethodPut, "/api/users/role", "facilitator", `{"email":"a@x.com","new_role":"hr"}`, http.StatusForbidden},
		{"set role for hr", http.MethodPut, "/api/users/role", "hr", `{"email":"a@x.com","new_role":"manager"}`, http.StatusOK},
		{"role request for simple", http.MethodPut, "/api/users/me/role-request", "simple", `{"role":"hr"}`, http.StatusOK},
		{"idp login not configured", http.MethodPost, "/api/auth/idp-login", "", `{"idToken":"t"}`, http.StatusNotImplemented},
		{"unknown route", http.MethodGet, "/api/teams", "", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestRouter_LoginIsRateLimited(t *testing.T) {
	router := newTestRouter()
	body := `{"username":"a@x.com","password":"wrong"}`

	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/api/auth/local-login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/api/auth/local-login", "", body).Code)

	w := do(t, router, http.MethodPost, "/api/auth/local-login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/users/me", "", "").Code,
		"other routes are not limited")
}

func TestRouter_LoginLimiterBehindProxy(t *testing.T) {
	body := `{"username":"a@x.com","password":"wrong"}`
	login := func(router http.Handler, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/local-login", strings.NewReader(body))
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	direct := newTestRouter()
	for _, xff := range []string{"198.51.100.1", "198.51.100.2"} {
		assert.Equal(t, http.StatusUnauthorized, login(direct, xff))
	}
	assert.Equal(t, http.StatusTooManyRequests, login(direct, "198.51.100.3"), "forwarded headers are ignored by default")

	proxied := newRouterWith(func(d *api.RouterDeps) { d.TrustProxy = true })
	for range 2 {
		assert.Equal(t, http.StatusUnauthorized, login(proxied, "198.51.100.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login(proxied, "198.51.100.1"))
	assert.Equal(t, http.StatusUnauthorized, login(proxied, "198.51.100.2"), "each forwarded client has its own bucket")
}

func TestRouter_MetricsCountRoutes(t *testing.T) {
	router := newTestRouter()

	do(t, router, http.MethodGet, "/api/users/me", "simple", "")
	w := do(t, router, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `portal_http_requests_total{method="GET",route="/api/users/me",status="200"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

// --- OpenAPI coverage ---

type openAPISpec struct {
	Paths map[string]map[string]any `json:"paths"`
}

type route struct {
	method string
	path   string
}

func TestOpenAPISpec_RoutesCoverAllPaths(t *testing.T) {
	t.Parallel()

	specJSON, err := yaml.YAMLToJSON(specpkg.OpenAPISpec)
	require.NoError(t, err, "embedded spec must convert to JSON")

	var spec openAPISpec
	require.NoError(t, yaml.Unmarshal(specJSON, &spec), "spec JSON must unmarshal")

	specRoutes := extractSpecRoutes(spec)
	require.NotEmpty(t, specRoutes)

	chiRoutes := extractChiRoutes(t, newTestRouter())
	require.NotEmpty(t, chiRoutes)

	for _, sr := range specRoutes {
		t.Run(fmt.Sprintf("spec_%s_%s_has_Chi_route", sr.method, sr.path), func(t *testing.T) {
			assert.Contains(t, chiRoutes, sr, "spec route %s %s not found in Chi router", sr.method, sr.path)
		})
	}
	for _, cr := range chiRoutes {
		t.Run(fmt.Sprintf("Chi_%s_%s_has_spec_path", cr.method, cr.path), func(t *testing.T) {
			assert.Contains(t, specRoutes, cr, "Chi route %s %s not found in OpenAPI spec", cr.method, cr.path)
		})
	}
}

func extractSpecRoutes(spec openAPISpec) []route {
	var routes []route
	for path, methods := range spec.Paths {
		for method := range methods {
			routes = append(routes, route{method: strings.ToUpper(method), path: path})
		}
	}
	sortRoutes(routes)
	return routes
}

func extractChiRoutes(t *testing.T, r *chi.Mux) []route {
	t.Helper()
	var routes []route
	walkFunc := func(method, routePath string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		// Subrouters produce trailing slashes (/api/users/).
		normalized := strings.TrimRight(routePath, "/")
		if normalized == "" {
			normalized = "/"
		}
		routes = append(routes, route{method: method, path: normalized})
		return nil
	}
	require.NoError(t, chi.Walk(r, walkFunc))
	sortRoutes(routes)
	return routes
}

func sortRoutes(routes []route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].path == routes[j].path {
			return routes[i].method < routes[j].method
		}
		return routes[i].path < routes[j].path
	})
}

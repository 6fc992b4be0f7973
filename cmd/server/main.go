package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	specpkg "github.com/velia-hr/portal/api"
	"github.com/velia-hr/portal/internal/api"
	"github.com/velia-hr/portal/internal/api/middleware"
	"github.com/velia-hr/portal/internal/auth"
	"github.com/velia-hr/portal/internal/config"
	"github.com/velia-hr/portal/internal/obs"
	"github.com/velia-hr/portal/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.New(startCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(startCtx, db.Pool()); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	var verifier auth.IDTokenVerifier
	if cfg.IdPJWKSURL != "" {
		verifier = auth.NewJWKSVerifier(cfg.IdPJWKSURL, cfg.IdPAudience, cfg.IdPIssuer, cfg.JWKSCacheTTL)
	} else {
		slog.Warn("IDP_JWKS_URL not set; identity provider login is disabled")
	}

	metrics := obs.New()
	authService := auth.NewService(auth.NewRepository(db.Pool()), verifier, cfg.Env, cfg.BcryptCost)
	authService.SetRecorder(metrics)

	if _, err := authService.BootstrapAdmin(startCtx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}
	if cfg.SeedFile != "" {
		n, err := authService.SeedFromFile(startCtx, cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
		slog.Info("seeded users", "count", n, "file", cfg.SeedFile)
	}

	router := api.NewRouter(api.RouterDeps{
		DBPinger:      db,
		Version:       cfg.Version,
		OpenAPISpec:   specpkg.OpenAPISpec,
		Authenticator: authService,
		Logins:        authService,
		Users:         authService,
		Metrics:       metrics,
		LoginLimiter:  middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		TrustProxy:    cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting portal server", "port", cfg.Port, "version", cfg.Version, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return err
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/handler"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/middleware"
)

// routerDeps holds everything setupRouter mounts.
type routerDeps struct {
	cfg    *config.Config
	logger *slog.Logger

	home   *handler.Handler
	health *handler.HealthHandler
	auth   *handler.AuthHandler

	authenticator middleware.TokenAuthenticator
	limiter       middleware.IPRateLimiter // nil when Redis is not configured
	recorder      metrics.Recorder

	metricsHandler http.Handler // nil when metrics are disabled

	audit *audit.Publisher // nil when Redis is not configured
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d *routerDeps) *chi.Mux {
	cfg := d.cfg
	r := chi.NewRouter()

	// Global middleware (order matters)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	r.NotFound(d.home.NotFound)
	r.MethodNotAllowed(d.home.MethodNotAllowed)

	// Health checks (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	if d.metricsHandler != nil {
		r.Handle("/metrics", d.metricsHandler)
	}

	// Login page and its assets
	r.Get("/", d.home.Home)
	r.Handle("/frontend/*", http.StripPrefix("/frontend", d.home.Static()))

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  d.logger,
		Limiter: d.limiter,
		Metrics: d.recorder,
		Enabled: cfg.RateLimitAuthEnabled,
		RPS:     cfg.RateLimitAuthRPS,
		Burst:   cfg.RateLimitAuthBurst,
	}
	r.With(middleware.RateLimitIP(rateLimitCfg, "signup")).Post("/signup", d.auth.Signup)
	r.With(middleware.RateLimitIP(rateLimitCfg, "token")).Post("/token", d.auth.Token)

	authCfg := middleware.AuthConfig{
		Logger:        d.logger,
		Authenticator: d.authenticator,
	}
	r.With(middleware.Auth(authCfg)).Get("/dashboard", d.auth.Dashboard)

	return r
}

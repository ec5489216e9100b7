package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readinessTimeout bounds all dependency pings in one /readyz call.
const readinessTimeout = 5 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db      HealthChecker
	cache   HealthChecker
	logger  *slog.Logger
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for cache when Redis is not configured. A nil logger discards.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HealthHandler{
		db:      db,
		cache:   cache,
		logger:  logger,
		timeout: readinessTimeout,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint.
// It returns 200 if the server is running.
// No dependency checks - this is for Kubernetes liveness probes.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe endpoint.
// Dependencies are pinged concurrently and share one deadline; the probe
// returns 200 only if all configured ones answer. Failure causes are
// logged, never returned.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	deps := []struct {
		name    string
		checker HealthChecker
	}{
		{"postgres", h.db},
		{"redis", h.cache},
	}

	results := make([]string, len(deps))
	var wg sync.WaitGroup
	for i, dep := range deps {
		if dep.checker == nil {
			results[i] = "not configured"
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dep.checker.Ping(ctx); err != nil {
				h.logger.Warn("readiness check failed",
					slog.String("dependency", dep.name),
					slog.String("error", err.Error()),
				)
				results[i] = "unavailable"
				return
			}
			results[i] = "ok"
		}()
	}
	wg.Wait()

	checks := make(map[string]string, len(deps))
	status, statusCode := "ok", http.StatusOK
	for i, dep := range deps {
		checks[dep.name] = results[i]
		if results[i] == "unavailable" {
			status, statusCode = "unhealthy", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, statusCode, HealthResponse{
		Status: status,
		Checks: checks,
	})
}

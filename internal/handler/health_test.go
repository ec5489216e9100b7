package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err   error
	delay time.Duration
}

func (s *stubChecker) Ping(ctx context.Context) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func readyz(t *testing.T, h *HealthHandler) (int, HealthResponse, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	body := rec.Body.String()
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp, body
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthHandler_Readyz(t *testing.T) {
	t.Parallel()

	down := &stubChecker{err: errors.New("connection refused")}

	tests := []struct {
		name       string
		db, cache  HealthChecker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name: "all healthy", db: &stubChecker{}, cache: &stubChecker{},
			wantCode: http.StatusOK, wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name: "database down", db: down, cache: &stubChecker{},
			wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "unavailable", "redis": "ok"},
		},
		{
			name: "redis down", db: &stubChecker{}, cache: down,
			wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "ok", "redis": "unavailable"},
		},
		{
			name: "redis not configured", db: &stubChecker{},
			wantCode: http.StatusOK, wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "not configured"},
		},
		{
			name:     "nothing configured",
			wantCode: http.StatusOK, wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "not configured", "redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, resp, _ := readyz(t, NewHealthHandler(tt.db, tt.cache, nil))

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthHandler_Readyz_DoesNotLeakErrors(t *testing.T) {
	t.Parallel()
	db := &stubChecker{err: errors.New("dial tcp 10.1.2.3:5432: password authentication failed")}

	_, _, body := readyz(t, NewHealthHandler(db, nil, nil))

	assert.NotContains(t, body, "10.1.2.3")
	assert.NotContains(t, body, "password")
}

func TestHealthHandler_Readyz_SharedDeadline(t *testing.T) {
	t.Parallel()
	slow := &stubChecker{delay: time.Minute}
	h := NewHealthHandler(slow, slow, nil)
	h.timeout = 50 * time.Millisecond

	start := time.Now()
	code, resp, _ := readyz(t, h)

	assert.Less(t, time.Since(start), 5*time.Second, "pings must run concurrently under one deadline")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Checks["postgres"])
	assert.Equal(t, "unavailable", resp.Checks["redis"])
}

//go:build integration

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/authgate/authgate/internal/cache"
	"github.com/authgate/authgate/internal/testutil"
)

// TestRateLimitConcurrency verifies the Redis bucket under concurrent load.
func TestRateLimitConcurrency(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "TEST_REDIS_URL")
	ctx := context.Background()

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Skipf("Skipping integration test: Redis not available: %v", err)
	}
	defer cacheClient.Close()

	const burst = 5
	handler := RateLimitIP(RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: cacheClient,
		Enabled: true,
		RPS:     1,
		Burst:   burst,
	}, testutil.UniqueUsername("scope"))(okHandler())

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		limited atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/token", nil)
			req.RemoteAddr = "192.0.2.77:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			switch rec.Code {
			case http.StatusOK:
				allowed.Add(1)
			case http.StatusTooManyRequests:
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	// The bucket may refill by one token if the run crosses a second boundary.
	if got := allowed.Load(); got < burst || got > burst+1 {
		t.Errorf("allowed = %d, want %d (+1 refill)", got, burst)
	}
	if allowed.Load()+limited.Load() != 20 {
		t.Errorf("allowed+limited = %d, want 20", allowed.Load()+limited.Load())
	}
}

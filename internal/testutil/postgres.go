package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresImage is the image used for throwaway test databases.
const PostgresImage = "postgres:16-alpine"

// StartPostgres starts a disposable PostgreSQL container and returns its
// connection string. The container is terminated when the test finishes.
// If TEST_DATABASE_URL is set, that database is used instead.
func StartPostgres(t testing.TB) string {
	t.Helper()

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithDatabase("authgate"),
		postgres.WithUsername("authgate"),
		postgres.WithPassword("authgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}
	return connStr
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/cache"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/handler"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/server"
	"github.com/authgate/authgate/internal/service"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := initLogger(cfg, os.Stdout)
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dsn := cfg.DatabaseDSN()

	if cfg.AutoMigrate {
		if err := migrateUp(dsn); err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, dsn)))
			return err
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, dsn, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, dsn)),
			slog.String("database_url", redactURL(dsn)),
		)
		return fmt.Errorf("connect database: %s", sanitizeError(err, dsn))
	}
	logger.Info("connected to database")

	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			repo.Close()
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return fmt.Errorf("connect redis: %s", sanitizeError(err, cfg.RedisURL))
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	deps, err := buildDeps(cfg, repo, cacheClient, logger)
	if err != nil {
		repo.Close()
		if cacheClient != nil {
			_ = cacheClient.Close()
		}
		return err
	}

	srv := server.New(setupRouter(deps), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}
	if deps.audit != nil {
		// Registered after redis so it drains first.
		srv.OnShutdown("audit", deps.audit.Wait)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"hash_algorithm", cfg.PasswordHashAlgorithm,
		"token_ttl", cfg.TokenTTL.String(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

func migrateUp(dsn string) (err error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}

// buildDeps wires hasher, tokens, metrics, service and handlers over the
// given storage. cacheClient may be nil.
func buildDeps(cfg *config.Config, store service.UserStore, cacheClient *cache.Cache, logger *slog.Logger) (*routerDeps, error) {
	hasher, err := auth.NewHasher(cfg.PasswordHashAlgorithm, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	tokens, err := auth.NewTokenManager([]byte(cfg.JWTSecretKey), cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	logger.Info("credentials configured",
		slog.String("hash_algorithm", cfg.PasswordHashAlgorithm),
		slog.Int("bcrypt_cost", hasher.BcryptCost()),
		slog.Duration("token_ttl", tokens.TTL()),
	)

	var (
		recorder       metrics.Recorder = metrics.NewNoop()
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder = prom
		metricsHandler = prom.Handler()
	}

	svc, err := service.NewAuthService(store, hasher, tokens, recorder)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	deps := &routerDeps{
		cfg:            cfg,
		logger:         logger,
		home:           handler.New(cfg.FrontendDir),
		authenticator:  svc,
		recorder:       recorder,
		metricsHandler: metricsHandler,
	}

	// Only assign non-nil values to the interfaces.
	var (
		cacheChecker handler.HealthChecker
		events       handler.EventPublisher
	)
	if cacheClient != nil {
		cacheChecker = cacheClient
		deps.limiter = cacheClient
		deps.audit = audit.NewPublisher(cacheClient.Client(), logger, recorder)
		events = deps.audit
	}
	deps.auth = handler.NewAuthHandler(svc, events, logger)
	var dbChecker handler.HealthChecker
	if pinger, ok := store.(handler.HealthChecker); ok {
		dbChecker = pinger
	}
	deps.health = handler.NewHealthHandler(dbChecker, cacheChecker, logger)

	return deps, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

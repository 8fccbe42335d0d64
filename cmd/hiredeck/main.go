package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/hiredeck/hiredeck/pkg/api"
	"github.com/hiredeck/hiredeck/pkg/billing"
	"github.com/hiredeck/hiredeck/pkg/config"
	"github.com/hiredeck/hiredeck/pkg/jobs"
	"github.com/hiredeck/hiredeck/pkg/middleware"
	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
	"github.com/hiredeck/hiredeck/pkg/storage/postgres"
	"github.com/hiredeck/hiredeck/pkg/storage/s3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hiredeck: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting hiredeck API server")

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := postgres.Connect(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, rate limiting degraded")
		}
	}

	var resumes jobs.ResumeStorage
	if cfg.S3.Bucket != "" {
		s3Client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return err
		}
		resumes = s3Client
	}

	metrics := observability.NewMetrics(nil)

	store := orgs.NewSQLStore(db)
	guard := orgs.NewGuard(store, logger, metrics)
	reconciler := orgs.NewReconciler(store, logger, metrics)

	limits := billing.NewLimits(logger)
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cfg.Billing.LimitOverridesPath != "" {
		if err := limits.WatchOverrides(cfg.Billing.LimitOverridesPath, stopWatch); err != nil {
			return fmt.Errorf("failed to load limit overrides: %w", err)
		}
	}

	jobService, err := jobs.NewService(jobs.NewSQLStore(db), guard, limits, resumes, logger, metrics)
	if err != nil {
		return err
	}

	verifier, err := middleware.NewOIDCVerifier(ctx, middleware.OIDCConfig{
		IssuerURL: cfg.OIDC.IssuerURL,
		ClientID:  cfg.OIDC.ClientID,
	})
	if err != nil {
		return err
	}

	opts := api.Options{
		Auth:      middleware.NewAuthMiddleware(verifier, true),
		TraceHTTP: cfg.Observability.OTelEnabled,
	}
	if redisClient != nil {
		opts.RateLimit = middleware.NewRateLimitMiddleware(redisClient)
	}
	server := api.NewServer(reconciler, jobService, logger, metrics, opts)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	group.Go(shutdown.WaitForShutdown)

	return group.Wait()
}

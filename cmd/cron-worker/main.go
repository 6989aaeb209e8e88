package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderbridge-backend/internal/app"
	"github.com/angelmondragon/orderbridge-backend/internal/cron"
	"github.com/angelmondragon/orderbridge-backend/pkg/alerts"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/migrate"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

const lockPrefixFormat = "ob:cron:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reporter, err := alerts.New(cfg.Sentry, alerts.Options{Environment: cfg.App.Env})
	if err != nil {
		logg.Error(context.Background(), "failed to init sentry", err)
		os.Exit(1)
	}
	defer reporter.Flush(2 * time.Second)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	services, err := app.Build(context.Background(), app.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Metrics: metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer),
		Alerts:  reporter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	locker, err := cron.NewRedisLocker(redisClient, lockPrefix(cfg.App.Env))
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, services)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener failed", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *app.Services) (*cron.Registry, error) {
	sweep, err := cron.NewStaleIntentSweepJob(cron.StaleIntentSweepJobParams{
		Logger:  logg,
		Orders:  services.OrdersRepo,
		Recheck: services.Reconciliation,
		Age:     cfg.Reconciliation.SweepAge,
		Batch:   cfg.Reconciliation.SweepBatch,
		Workers: cfg.Reconciliation.SweepWorkers,
	})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewAbandonedOrderJob(cron.AbandonedOrderJobParams{
		Logger:    logg,
		Orders:    services.OrdersRepo,
		Canceller: services.Orders,
		TTL:       cfg.Orders.AbandonedTTL,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, s := range []struct {
		job   cron.Job
		every time.Duration
	}{
		{sweep, cfg.Reconciliation.SweepInterval},
		{expiry, cfg.Orders.ExpiryInterval},
		{retention, cfg.Outbox.RetentionInterval},
	} {
		if err := registry.Register(s.job, s.every); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func lockPrefix(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockPrefixFormat, env)
}

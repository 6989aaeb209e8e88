package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderbridge-backend/internal/analytics/router"
	"github.com/angelmondragon/orderbridge-backend/internal/analytics/worker"
	"github.com/angelmondragon/orderbridge-backend/internal/analytics/writer"
	"github.com/angelmondragon/orderbridge-backend/pkg/bigquery"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/registry"
	"github.com/angelmondragon/orderbridge-backend/pkg/pubsub"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(logg, "config", err)
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer closeQuietly(logg, "redis client", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(logg, "pubsub", err)
	defer closeQuietly(logg, "pubsub client", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(logg, "bigquery client", err)
	defer closeQuietly(logg, "bigquery client", bqClient.Close)

	requireResource(logg, "order events table", bqClient.EnsureTable(ctx, writer.OrderEventsTable(cfg.BigQuery)))

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		requireResource(logg, "analytics subscription", errors.New("subscription not configured"))
	}

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.ProcessingTTL, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(logg, "idempotency guard", err)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	requireResource(logg, "event registry", err)

	rowWriter, err := writer.New(bqClient, writer.Config{
		Table:     cfg.BigQuery.OrderEventsTable,
		BatchSize: cfg.BigQuery.BatchSize,
	})
	requireResource(logg, "order events writer", err)

	eventRouter, err := router.NewRouter(rowWriter, logg)
	requireResource(logg, "analytics router", err)

	service, err := worker.NewService(worker.Params{
		Subscription: subscription,
		Resolver:     eventRegistry,
		Handler:      eventRouter,
		Guard:        guard,
		Metrics:      metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	requireResource(logg, "analytics worker", err)

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "analytics worker ready")
	runErr := service.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := rowWriter.Flush(flushCtx); err != nil {
		logg.Error(flushCtx, "failed to flush pending analytics rows", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", runErr)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker stopped")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "failed to close "+name, err)
	}
}

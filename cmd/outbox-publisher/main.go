package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/migrate"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/registry"
	"github.com/angelmondragon/orderbridge-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	cmd := flag.String("cmd", "run", "command: run|dlq-list|dlq-replay")
	limit := flag.Int("limit", 50, "rows to show for -cmd=dlq-list")
	eventID := flag.String("event-id", "", "outbox event id for -cmd=dlq-replay")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	fatalIf(logg, "failed to load config", err)
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceName})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatalIf(logg, "failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	switch *cmd {
	case "dlq-list":
		fatalIf(logg, "dlq list failed", listDeadLetters(ctx, dlqRepo, *limit, os.Stdout))
		return
	case "dlq-replay":
		if *eventID == "" {
			fmt.Fprintln(os.Stderr, "missing -event-id for dlq-replay")
			os.Exit(2)
		}
		fatalIf(logg, "dlq replay failed", replayDeadLetter(ctx, dlqRepo, *eventID, os.Stdout))
		return
	case "run":
	default:
		fmt.Fprintf(os.Stderr, "unknown -cmd %q\n", *cmd)
		os.Exit(2)
	}

	fatalIf(logg, "failed to run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	fatalIf(logg, "failed to bootstrap pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	fatalIf(logg, "failed to build event registry", err)

	relay, err := NewRelay(RelayParams{
		Logger:     logg,
		DB:         dbClient,
		Ping:       pubsubClient.Ping,
		Outbox:     outbox.NewRepository(dbClient.DB()),
		DLQ:        dlqRepo,
		Registry:   eventRegistry,
		Publishers: pubsubPublishers(pubsubClient),
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Config:     cfg.Outbox,
	})
	fatalIf(logg, "failed to create outbox relay", err)

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting outbox publisher")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func fatalIf(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}

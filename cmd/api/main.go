package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderbridge-backend/api/routes"
	"github.com/angelmondragon/orderbridge-backend/internal/app"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	squarewebhook "github.com/angelmondragon/orderbridge-backend/internal/webhooks/square"
	stripewebhook "github.com/angelmondragon/orderbridge-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/orderbridge-backend/pkg/alerts"
	"github.com/angelmondragon/orderbridge-backend/pkg/auth"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/migrate"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
	"github.com/angelmondragon/orderbridge-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reconMetrics := metrics.NewReconciliationMetrics(registry)

	services, err := app.Build(context.Background(), app.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Metrics: reconMetrics,
		Alerts:  reporter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to build token verifier", err)
		os.Exit(1)
	}

	params := routes.Params{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Orders:         services.Orders,
		Payments:       services.Payments,
		Reconciliation: services.Reconciliation,
		Verifier:       verifier,
		Metrics:        reconMetrics,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		Gatherer:       registry,
		Alerts:         reporter,
	}
	if err := wireWebhooks(&params, cfg, logg, redisClient, services); err != nil {
		logg.Error(context.Background(), "failed to wire webhooks", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}

// wireWebhooks attaches the receivers for each rail that has its signing
// material configured.
func wireWebhooks(params *routes.Params, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, services *app.Services) error {
	ctx := context.Background()
	ttl := cfg.Eventing.WebhookIdempotencyTTL

	if services.Stripe != nil && services.Stripe.SigningSecret() != "" {
		svc, err := stripewebhook.NewService(services.Reconciliation, logg)
		if err != nil {
			return err
		}
		guard, err := webhooks.NewGuard(redisClient, ttl, "card-webhook")
		if err != nil {
			return err
		}
		params.StripeWebhooks, params.StripeClient, params.CardGuard = svc, services.Stripe, guard
	} else {
		logg.Warn(ctx, "card webhook disabled: stripe signing secret not configured")
	}

	if cfg.Square.WebhookSecret != "" && cfg.Square.NotificationURL != "" {
		svc, err := squarewebhook.NewService(services.Reconciliation, logg)
		if err != nil {
			return err
		}
		guard, err := webhooks.NewGuard(redisClient, ttl, "wallet-webhook")
		if err != nil {
			return err
		}
		params.SquareWebhooks = svc
		params.SquareVerifier = square.NewVerifier(cfg.Square.WebhookSecret, cfg.Square.NotificationURL)
		params.WalletGuard = guard
	} else {
		logg.Warn(ctx, "wallet webhook disabled: square signature key or notification url missing")
	}
	return nil
}

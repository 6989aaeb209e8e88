package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderbridge-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/orderbridge-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/orderbridge-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/orderbridge-backend/api/controllers/webhooks"
	"github.com/angelmondragon/orderbridge-backend/api/middleware"
	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/internal/orders"
	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	squarewebhook "github.com/angelmondragon/orderbridge-backend/internal/webhooks/square"
	stripewebhook "github.com/angelmondragon/orderbridge-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/orderbridge-backend/pkg/alerts"
	"github.com/angelmondragon/orderbridge-backend/pkg/auth"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
	"github.com/angelmondragon/orderbridge-backend/pkg/square"
	"github.com/angelmondragon/orderbridge-backend/pkg/stripe"
)

// Params carries everything the HTTP surface needs. Redis is required. A nil
// webhook service or verifier leaves that rail's receiver answering 503.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          *redis.Client
	Orders         orders.Service
	Payments       payments.Service
	Reconciliation reconciliation.Service
	Verifier       *auth.Verifier

	StripeWebhooks *stripewebhook.Service
	StripeClient   *stripe.Client
	CardGuard      *webhooks.Guard
	SquareWebhooks *squarewebhook.Service
	SquareVerifier *square.Client
	WalletGuard    *webhooks.Guard

	Metrics     *metrics.ReconciliationMetrics
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Alerts      *alerts.Reporter
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg, p.Alerts),
		middleware.RequestID(logg),
		chimw.RealIP,
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, readinessChecks(p)))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	// Processor retries are bounded by their own delivery timeouts, so the
	// webhook receivers sit outside the storefront rate limit.
	r.Route("/payments/webhook", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.HTTP.RequestTimeout))
		r.Post("/", cardWebhook(p))
		r.Post("/wallet", walletWebhook(p))
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.HTTP.RequestTimeout))
		r.Use(middleware.RateLimit("api", p.Redis, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow, logg))

		// storefront
		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(p.Redis, logg))
			r.Post("/orders", ordercontrollers.Create(p.Orders, logg))
			r.Get("/orders/{id}", ordercontrollers.Get(p.Orders, logg))
			r.Post("/payments/create-intent", paymentcontrollers.CreateIntent(p.Payments, logg))
			r.Post("/payments/confirm", paymentcontrollers.Confirm(p.Reconciliation, logg))
		})

		// admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(p.Verifier, logg))
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Use(middleware.Idempotency(p.Redis, logg))
			r.Get("/orders", ordercontrollers.List(p.Orders, logg))
			r.Patch("/orders/{id}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
			r.Patch("/orders/{id}/payment", ordercontrollers.UpdatePayment(p.Orders, logg))
			r.Delete("/orders/{id}", ordercontrollers.Cancel(p.Orders, logg))
			r.Post("/payments/refund", paymentcontrollers.Refund(p.Reconciliation, logg))
		})
	})

	return r
}

func readinessChecks(p Params) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{"db": p.DB, "redis": nil}
	if p.Redis != nil {
		checks["redis"] = p.Redis
	}
	return checks
}

func cardWebhook(p Params) http.HandlerFunc {
	if p.StripeWebhooks == nil || p.StripeClient == nil || p.CardGuard == nil {
		return unverifiable(p, "card", "card webhook signing secret not configured")
	}
	return webhookcontrollers.StripeWebhook(p.StripeWebhooks, p.StripeClient, p.CardGuard, p.Metrics, p.Logger)
}

func walletWebhook(p Params) http.HandlerFunc {
	if p.SquareWebhooks == nil || p.SquareVerifier == nil || p.WalletGuard == nil {
		return unverifiable(p, "wallet", "wallet webhook signing key not configured")
	}
	return webhookcontrollers.SquareWebhook(p.SquareWebhooks, p.SquareVerifier, p.WalletGuard, p.Metrics, p.Logger)
}

// unverifiable rejects every delivery for a rail with no signing secret. A
// missing secret is a failed verification, never a state change.
func unverifiable(p Params, rail, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Metrics.IncWebhook(rail, "rejected")
		responses.WriteError(r.Context(), p.Logger, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, msg))
	}
}

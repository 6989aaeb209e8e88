// Package app assembles the order and payment services shared by the API and
// the cron worker.
package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/internal/inventory"
	"github.com/angelmondragon/orderbridge-backend/internal/orders"
	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/internal/pricing"
	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/pkg/alerts"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/square"
	"github.com/angelmondragon/orderbridge-backend/pkg/stripe"
)

// Services is the wired service graph.
type Services struct {
	OrdersRepo     orders.Repository
	Orders         orders.Service
	Payments       payments.Service
	Reconciliation reconciliation.Service
	Gateways       *payments.Gateways
	Stripe         *stripe.Client
	Square         *square.Client
}

type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Metrics *metrics.ReconciliationMetrics
	Alerts  *alerts.Reporter
}

// Build wires repositories, processor rails and services. A rail whose
// credentials are absent is left out; requests for it fail with a dependency
// error instead of stopping the process.
func Build(ctx context.Context, p Params) (*Services, error) {
	cfg, logg := p.Config, p.Logger
	conn := p.DB.DB()

	out := &Services{}
	var rails []payments.Gateway
	if strings.TrimSpace(cfg.Stripe.SecretKey) != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		card, err := payments.NewCardGateway(client)
		if err != nil {
			return nil, err
		}
		out.Stripe = client
		rails = append(rails, card)
	} else {
		logg.Warn(ctx, "stripe not configured; card payments disabled")
	}
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		wallet, err := payments.NewWalletGateway(client)
		if err != nil {
			return nil, err
		}
		out.Square = client
		rails = append(rails, wallet)
	} else {
		logg.Warn(ctx, "square not configured; wallet payments disabled")
	}
	out.Gateways = payments.NewGateways(rails...)

	engine, err := pricing.NewEngine(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	intents := payments.NewIntentRepository(conn)
	out.OrdersRepo = orders.NewRepository(conn)

	out.Payments, err = payments.NewService(payments.ServiceParams{
		Intents:          intents,
		Tx:               p.DB,
		Gateways:         out.Gateways,
		Orders:           repoLookup{repo: out.OrdersRepo},
		Logger:           logg,
		ProcessorTimeout: cfg.HTTP.ProcessorTimeout,
	})
	if err != nil {
		return nil, err
	}

	params := reconciliation.ServiceParams{
		Intents:          intents,
		Refunds:          payments.NewRefundRepository(conn),
		Orders:           out.OrdersRepo,
		Tx:               p.DB,
		Outbox:           outboxSvc,
		Gateways:         out.Gateways,
		Linker:           out.Payments,
		Logger:           logg,
		ProcessorTimeout: cfg.HTTP.ProcessorTimeout,
	}
	if p.Metrics != nil {
		params.Metrics = p.Metrics
	}
	if p.Alerts != nil {
		params.Alerts = p.Alerts
	}
	out.Reconciliation, err = reconciliation.NewService(params)
	if err != nil {
		return nil, err
	}

	orderParams := orders.ServiceParams{
		Repo:           out.OrdersRepo,
		Tx:             p.DB,
		Outbox:         outboxSvc,
		Inventory:      inventory.NewLedger(conn),
		Pricing:        engine,
		Intents:        out.Payments,
		Settler:        settler{svc: out.Reconciliation},
		Logger:         logg,
		NumberAttempts: cfg.Orders.NumberAttempts,
	}
	// typed nils must not reach the optional interfaces
	if p.Metrics != nil {
		orderParams.Metrics = p.Metrics
	}
	out.Orders, err = orders.NewService(orderParams)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// settler adapts the reconciliation engine to the order service, which only
// needs to know whether the replay failed.
type settler struct{ svc reconciliation.Service }

func (s settler) SettleLinked(ctx context.Context, intentID string) error {
	_, err := s.svc.SettleLinked(ctx, intentID)
	return err
}

// repoLookup reads orders straight from the repository so payments does not
// depend on the order service that depends on it.
type repoLookup struct{ repo orders.Repository }

func (l repoLookup) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := l.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
	}
	return order, nil
}

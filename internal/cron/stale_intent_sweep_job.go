package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const (
	defaultSweepAge     = 15 * time.Minute
	defaultSweepBatch   = 100
	defaultSweepWorkers = 4
)

type awaitingPaymentReader interface {
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type intentRechecker interface {
	Recheck(ctx context.Context, intentID string) (*reconciliation.Result, error)
}

// StaleIntentSweepJobParams configure the lost-webhook sweep.
type StaleIntentSweepJobParams struct {
	Logger  *logger.Logger
	Orders  awaitingPaymentReader
	Recheck intentRechecker
	Age     time.Duration
	Batch   int
	Workers int
}

// NewStaleIntentSweepJob builds the job that asks the processor about orders
// still waiting on a payment outcome.
func NewStaleIntentSweepJob(params StaleIntentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Recheck == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	age := params.Age
	if age <= 0 {
		age = defaultSweepAge
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultSweepWorkers
	}
	return &staleIntentSweepJob{
		logg:    params.Logger,
		orders:  params.Orders,
		recheck: params.Recheck,
		age:     age,
		batch:   batch,
		workers: workers,
		now:     time.Now,
	}, nil
}

type staleIntentSweepJob struct {
	logg    *logger.Logger
	orders  awaitingPaymentReader
	recheck intentRechecker
	age     time.Duration
	batch   int
	workers int
	now     func() time.Time
}

type sweepTally struct {
	mu          sync.Mutex
	applied     int
	unchanged   int
	discrepancy int
	failed      int
	errs        error
}

func (t *sweepTally) record(res *reconciliation.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case pkgerrors.Is(err, pkgerrors.CodeDiscrepancy):
		t.discrepancy++
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		t.unchanged++
	case err != nil:
		t.failed++
		t.errs = multierr.Append(t.errs, err)
	case res != nil && res.Applied:
		t.applied++
	default:
		t.unchanged++
	}
}

func (j *staleIntentSweepJob) Name() string { return "stale-intent-sweep" }

func (j *staleIntentSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	orders, err := j.orders.ListAwaitingPayment(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query orders awaiting payment: %w", err)
	}

	tally := &sweepTally{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)
	for _, order := range orders {
		if order.ExternalPaymentRef == nil || *order.ExternalPaymentRef == "" {
			continue
		}
		intentID := *order.ExternalPaymentRef
		orderID := order.ID.String()
		g.Go(func() error {
			res, err := j.recheck.Recheck(gctx, intentID)
			if err != nil && !pkgerrors.Is(err, pkgerrors.CodeDiscrepancy) {
				j.logg.Warn(j.logg.WithFields(gctx, map[string]any{
					"intent_id": intentID,
					"order_id":  orderID,
					"error":     err.Error(),
				}), "intent recheck failed")
			}
			tally.record(res, err)
			return nil
		})
	}
	_ = g.Wait()

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"scanned":     len(orders),
		"applied":     tally.applied,
		"unchanged":   tally.unchanged,
		"discrepancy": tally.discrepancy,
		"failed":      tally.failed,
	})
	j.logg.Info(logCtx, "stale intent sweep complete")
	if tally.errs != nil {
		return fmt.Errorf("stale intent sweep: %w", tally.errs)
	}
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const (
	defaultAbandonedTTL   = 72 * time.Hour
	defaultAbandonedBatch = 200
)

type abandonedOrderReader interface {
	ListAbandoned(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type AbandonedOrderJobParams struct {
	Logger    *logger.Logger
	Orders    abandonedOrderReader
	Canceller orderCanceller
	TTL       time.Duration
	Batch     int
}

// NewAbandonedOrderJob builds the job that cancels unpaid orders past their TTL.
func NewAbandonedOrderJob(params AbandonedOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultAbandonedTTL
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultAbandonedBatch
	}
	return &abandonedOrderJob{
		logg:      params.Logger,
		orders:    params.Orders,
		canceller: params.Canceller,
		ttl:       ttl,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type abandonedOrderJob struct {
	logg      *logger.Logger
	orders    abandonedOrderReader
	canceller orderCanceller
	ttl       time.Duration
	batch     int
	now       func() time.Time
}

func (j *abandonedOrderJob) Name() string { return "abandoned-order-expiry" }

func (j *abandonedOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	orders, err := j.orders.ListAbandoned(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query abandoned orders: %w", err)
	}
	var errs error
	cancelled, skipped := 0, 0
	for _, order := range orders {
		if _, err := j.canceller.CancelOrder(ctx, order.ID); err != nil {
			// A webhook may have settled the order since it was listed.
			if pkgerrors.Is(err, pkgerrors.CodeConflict) || pkgerrors.Is(err, pkgerrors.CodeNotFound) {
				skipped++
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		cancelled++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"ttl_hours": j.ttl.Hours(),
		"cancelled": cancelled,
		"skipped":   skipped,
		"failed":    len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "abandoned order expiry complete")
	return errs
}

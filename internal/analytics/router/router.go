package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/orderbridge-backend/internal/analytics/types"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Router flattens resolved order events into order_events rows.
type Router struct {
	writer Writer
	logg   *logger.Logger
	now    func() time.Time
}

// NewRouter wires the router to its writer.
func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{writer: writer, logg: logg, now: time.Now}, nil
}

// Handle builds the row for the envelope and inserts it.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	row, err := r.buildRow(envelope)
	if err != nil {
		return err
	}
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID.String(),
	})
	if err := r.writer.InsertOrderEvent(logCtx, row); err != nil {
		r.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}
	return nil
}

func (r *Router) buildRow(envelope types.Envelope) (types.OrderEventRow, error) {
	row := types.OrderEventRow{
		EventID:       envelope.EventID.String(),
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID.String(),
		Version:       int64(envelope.Version),
		OccurredAt:    envelope.OccurredAt.UTC(),
		IngestedAt:    r.now().UTC(),
		Payload:       types.JSONColumn(envelope.Raw),
	}

	switch p := envelope.Payload.(type) {
	case *payloads.OrderCreatedEvent:
		applyOrder(&row, p.OrderEvent)
		row.ItemCount = int64Ptr(int64(len(p.Items)))
	case *payloads.OrderPaymentEvent:
		applyOrder(&row, p.OrderEvent)
		row.Reason = stringPtr(p.Error)
	case *payloads.OrderCancelledEvent:
		applyOrder(&row, p.OrderEvent)
		row.ItemCount = int64Ptr(int64(p.RestoredItems))
	case *payloads.OrderFulfillmentEvent:
		applyOrder(&row, p.OrderEvent)
	case *payloads.OrderRefundedEvent:
		applyOrder(&row, p.OrderEvent)
		row.AmountCents = int64Ptr(money.ToMinorUnits(p.Amount))
	case *payloads.ReconciliationDiscrepancyEvent:
		if p.OrderID != nil {
			row.OrderID = stringPtr(p.OrderID.String())
		}
		row.Status = stringPtr(string(p.OrderStatus))
		row.PaymentStatus = stringPtr(string(p.PaymentStatus))
		row.PaymentMethod = stringPtr(string(p.Provider))
		row.Reason = stringPtr(p.Reason)
	default:
		return types.OrderEventRow{}, fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	return row, nil
}

func applyOrder(row *types.OrderEventRow, ev payloads.OrderEvent) {
	row.OrderID = stringPtr(ev.OrderID.String())
	row.OrderNumber = stringPtr(ev.OrderNumber)
	row.Status = stringPtr(string(ev.Status))
	row.PaymentStatus = stringPtr(string(ev.PaymentStatus))
	row.PaymentMethod = stringPtr(string(ev.PaymentMethod))
	row.Currency = stringPtr(string(ev.Currency))
	row.TotalCents = int64Ptr(money.ToMinorUnits(ev.Total))
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

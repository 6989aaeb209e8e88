package reconciliation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/lifecycle"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/payloads"
)

const (
	reasonPaymentAfterCancel  = "payment_after_cancel"
	reasonFailureAfterCapture = "failure_after_capture"
	reasonDuplicatePayment    = "duplicate_payment"
	reasonOrderMissing        = "order_not_found"
	reasonRefundOnUnpaid      = "refund_on_unpaid_order"
	reasonUnexpectedState     = "unexpected_state"
)

type discrepancy struct {
	reason  string
	payload payloads.ReconciliationDiscrepancyEvent
}

func newDiscrepancy(out Outcome, intent *models.PaymentIntent, order *models.Order, reason string, detail any) *discrepancy {
	p := payloads.ReconciliationDiscrepancyEvent{
		PaymentIntentID: intent.ID,
		Provider:        intent.Provider,
		Source:          string(out.Source),
		Reason:          reason,
		Outcome:         string(out.Kind),
	}
	if m, ok := detail.(map[string]any); ok {
		p.Detail = m
	}
	if order != nil {
		id := order.ID
		p.OrderID = &id
		p.OrderStatus = order.Status
		p.PaymentStatus = order.PaymentStatus
	} else if intent.OrderID != nil {
		id := *intent.OrderID
		p.OrderID = &id
	}
	return &discrepancy{reason: reason, payload: p}
}

func reasonFor(trigger lifecycle.Trigger, from lifecycle.State) string {
	switch {
	case trigger == lifecycle.TriggerPaymentSucceeded && from.Status == enums.OrderStatusCancelled:
		return reasonPaymentAfterCancel
	case trigger == lifecycle.TriggerPaymentFailed && from.Payment.Refundable():
		return reasonFailureAfterCapture
	default:
		return reasonUnexpectedState
	}
}

func (s *service) emitDiscrepancy(ctx context.Context, tx *gorm.DB, d *discrepancy) error {
	aggregateType, aggregateID := enums.AggregatePaymentIntent, uuid.NewSHA1(uuid.NameSpaceURL, []byte(d.payload.PaymentIntentID))
	if d.payload.OrderID != nil {
		aggregateType, aggregateID = enums.AggregateOrder, *d.payload.OrderID
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReconciliationDiscrepancy,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       1,
		Data:          d.payload,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "emit discrepancy event")
	}
	return nil
}

// report surfaces a committed discrepancy and returns the error handed back to
// the caller.
func (s *service) report(ctx context.Context, d *discrepancy) error {
	fields := map[string]any{
		"reason":     d.reason,
		"intent_id":  d.payload.PaymentIntentID,
		"provider":   d.payload.Provider,
		"source":     d.payload.Source,
		"outcome":    d.payload.Outcome,
		"order_id":   "",
		"status":     d.payload.OrderStatus,
		"pay_status": d.payload.PaymentStatus,
	}
	if d.payload.OrderID != nil {
		fields["order_id"] = d.payload.OrderID.String()
	}
	err := pkgerrors.New(pkgerrors.CodeDiscrepancy, fmt.Sprintf("reconciliation discrepancy: %s", d.reason)).WithDetails(fields)
	s.logg.Error(s.logg.WithFields(ctx, fields), "reconciliation discrepancy", err)
	if s.metrics != nil {
		s.metrics.IncDiscrepancy(d.reason)
	}
	if s.alerts != nil {
		s.alerts.Discrepancy(d.reason, fields)
	}
	return err
}

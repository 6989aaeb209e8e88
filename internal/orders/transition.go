package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/orderbridge-backend/internal/lifecycle"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

// Extras are non-state columns written together with a transition.
type Extras struct {
	TrackingNumber     *string
	CarrierName        *string
	ExternalPaymentRef *string
	PaymentError       *string
}

func (e Extras) columns() map[string]any {
	cols := map[string]any{}
	if e.TrackingNumber != nil {
		cols["tracking_number"] = *e.TrackingNumber
	}
	if e.CarrierName != nil {
		cols["carrier_name"] = *e.CarrierName
	}
	if e.ExternalPaymentRef != nil {
		cols["external_payment_ref"] = *e.ExternalPaymentRef
	}
	if e.PaymentError != nil {
		cols["payment_error"] = *e.PaymentError
	}
	return cols
}

// ApplyTransition persists tr with a state precondition and mirrors the change
// onto order. A Noop transition writes nothing. When the row no longer matches
// tr.From the call fails with CodeConflict and order is left untouched.
func ApplyTransition(ctx context.Context, repo Repository, order *models.Order, tr lifecycle.Transition, extras Extras, now time.Time) error {
	if tr.Noop {
		return nil
	}
	updates := tr.Updates(now)
	for k, v := range extras.columns() {
		updates[k] = v
	}

	ok, err := repo.UpdateIfState(ctx, order.ID, tr.From, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update order state")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").WithDetails(map[string]any{
			"order_id":       order.ID,
			"expected_state": tr.From.String(),
		})
	}

	order.Status = tr.To.Status
	order.PaymentStatus = tr.To.Payment
	order.UpdatedAt = now
	stamp := now
	switch tr.Stamp {
	case lifecycle.StampPaid:
		order.PaidAt = &stamp
	case lifecycle.StampShipped:
		order.ShippedAt = &stamp
	case lifecycle.StampDelivered:
		order.DeliveredAt = &stamp
	case lifecycle.StampCancelled:
		order.CancelledAt = &stamp
	case lifecycle.StampRefunded:
		order.RefundedAt = &stamp
	}
	if extras.TrackingNumber != nil {
		order.TrackingNumber = extras.TrackingNumber
	}
	if extras.CarrierName != nil {
		order.CarrierName = extras.CarrierName
	}
	if extras.ExternalPaymentRef != nil {
		order.ExternalPaymentRef = extras.ExternalPaymentRef
	}
	if extras.PaymentError != nil {
		order.PaymentError = extras.PaymentError
	}
	return nil
}

// StateOf reads the lifecycle state of an order.
func StateOf(order *models.Order) lifecycle.State {
	return lifecycle.State{Status: order.Status, Payment: order.PaymentStatus}
}

// Package lifecycle holds the joint order status / payment status transition
// rules. It is pure: callers load the current state, ask for a Transition and
// persist Transition.Updates themselves.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

// Trigger is an event that may move an order.
type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "payment_succeeded"
	TriggerPaymentFailed    Trigger = "payment_failed"
	TriggerCancel           Trigger = "cancel"
	TriggerShip             Trigger = "ship"
	TriggerDeliver          Trigger = "deliver"
	TriggerRefundFull       Trigger = "refund_full"
	TriggerRefundPartial    Trigger = "refund_partial"
)

// IsPayment reports whether the trigger comes from a processor outcome rather
// than an operator action.
func (t Trigger) IsPayment() bool {
	switch t {
	case TriggerPaymentSucceeded, TriggerPaymentFailed, TriggerRefundFull, TriggerRefundPartial:
		return true
	default:
		return false
	}
}

// Stamp names the lifecycle timestamp column a transition sets.
type Stamp string

const (
	StampNone      Stamp = ""
	StampPaid      Stamp = "paid_at"
	StampShipped   Stamp = "shipped_at"
	StampDelivered Stamp = "delivered_at"
	StampCancelled Stamp = "cancelled_at"
	StampRefunded  Stamp = "refunded_at"
)

// State is the pair of axes that co-evolve.
type State struct {
	Status  enums.OrderStatus
	Payment enums.PaymentStatus
}

func (s State) String() string {
	return fmt.Sprintf("%s/%s", s.Status, s.Payment)
}

// Transition is the result of applying a trigger to a state.
type Transition struct {
	Trigger Trigger
	From    State
	To      State
	Stamp   Stamp
	// Noop marks a trigger that was already applied; callers must not fire side effects.
	Noop bool
}

// Updates returns the column set to persist for the transition.
func (t Transition) Updates(now time.Time) map[string]any {
	if t.Noop {
		return nil
	}
	updates := map[string]any{
		"status":         t.To.Status,
		"payment_status": t.To.Payment,
		"updated_at":     now,
	}
	if t.Stamp != StampNone {
		updates[string(t.Stamp)] = now
	}
	return updates
}

// Next computes the transition for trigger from current. Operator triggers on
// an illegal state return CodeConflict naming the current status. Processor
// outcomes that contradict the recorded state return CodeDiscrepancy.
func Next(current State, trigger Trigger) (Transition, error) {
	t := Transition{Trigger: trigger, From: current, To: current}

	switch trigger {
	case TriggerPaymentSucceeded:
		return paymentSucceeded(t)
	case TriggerPaymentFailed:
		return paymentFailed(t)
	case TriggerCancel:
		if !current.Status.Cancellable() {
			return t, conflict(current, trigger, fmt.Sprintf("order cannot be cancelled: status is %s", current.Status))
		}
		t.To.Status = enums.OrderStatusCancelled
		t.Stamp = StampCancelled
		return t, nil
	case TriggerShip:
		if current.Status != enums.OrderStatusProcessing {
			return t, conflict(current, trigger, fmt.Sprintf("order cannot be shipped: status is %s", current.Status))
		}
		t.To.Status = enums.OrderStatusShipped
		t.Stamp = StampShipped
		return t, nil
	case TriggerDeliver:
		if current.Status != enums.OrderStatusShipped {
			return t, conflict(current, trigger, fmt.Sprintf("order cannot be delivered: status is %s", current.Status))
		}
		t.To.Status = enums.OrderStatusDelivered
		t.Stamp = StampDelivered
		return t, nil
	case TriggerRefundFull, TriggerRefundPartial:
		return refund(t)
	default:
		return t, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown trigger %q", trigger))
	}
}

func paymentSucceeded(t Transition) (Transition, error) {
	cur := t.From
	switch {
	case awaitingPayment(cur):
		t.To = State{Status: enums.OrderStatusProcessing, Payment: enums.PaymentStatusPaid}
		t.Stamp = StampPaid
		return t, nil
	case capturedStatus(cur.Status) && cur.Payment != enums.PaymentStatusPending && cur.Payment != enums.PaymentStatusFailed:
		t.Noop = true
		return t, nil
	default:
		return t, discrepancy(cur, t.Trigger, fmt.Sprintf("payment succeeded for order in status %s", cur.Status))
	}
}

func paymentFailed(t Transition) (Transition, error) {
	cur := t.From
	switch {
	case cur.Status == enums.OrderStatusPending && cur.Payment == enums.PaymentStatusPending:
		t.To = State{Status: enums.OrderStatusPaymentFailed, Payment: enums.PaymentStatusFailed}
		return t, nil
	case cur.Status == enums.OrderStatusPaymentFailed, cur.Status == enums.OrderStatusCancelled && cur.Payment != enums.PaymentStatusPaid:
		t.Noop = true
		return t, nil
	default:
		return t, discrepancy(cur, t.Trigger, fmt.Sprintf("payment failed for order in state %s", cur))
	}
}

func refund(t Transition) (Transition, error) {
	cur := t.From
	if cur.Payment == enums.PaymentStatusRefunded {
		if t.Trigger == TriggerRefundFull {
			t.Noop = true
			return t, nil
		}
		return t, conflict(cur, t.Trigger, "order is already fully refunded")
	}
	if !cur.Payment.Refundable() {
		return t, conflict(cur, t.Trigger, fmt.Sprintf("order cannot be refunded: payment status is %s", cur.Payment))
	}
	if !capturedStatus(cur.Status) && cur.Status != enums.OrderStatusCancelled {
		return t, conflict(cur, t.Trigger, fmt.Sprintf("order cannot be refunded: status is %s", cur.Status))
	}
	t.To.Payment = enums.PaymentStatusPartiallyRefunded
	if t.Trigger == TriggerRefundFull {
		t.To.Payment = enums.PaymentStatusRefunded
	}
	t.Stamp = StampRefunded
	return t, nil
}

// TriggerForPaymentStatus maps an operator payment-status override onto the
// trigger that produces it.
func TriggerForPaymentStatus(target enums.PaymentStatus) (Trigger, error) {
	switch target {
	case enums.PaymentStatusPaid:
		return TriggerPaymentSucceeded, nil
	case enums.PaymentStatusFailed:
		return TriggerPaymentFailed, nil
	case enums.PaymentStatusRefunded:
		return TriggerRefundFull, nil
	case enums.PaymentStatusPartiallyRefunded:
		return TriggerRefundPartial, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment status %q cannot be set directly", target))
	}
}

// TriggerForFulfillment maps a fulfillment status update onto its trigger.
func TriggerForFulfillment(target enums.OrderStatus) (Trigger, error) {
	switch target {
	case enums.OrderStatusShipped:
		return TriggerShip, nil
	case enums.OrderStatusDelivered:
		return TriggerDeliver, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "fulfillment status must be shipped or delivered").
			WithDetails(map[string]any{"status": target})
	}
}

// ValidPair reports whether the two axes may coexist.
func ValidPair(s State) bool {
	switch s.Status {
	case enums.OrderStatusPending:
		return s.Payment == enums.PaymentStatusPending
	case enums.OrderStatusPaymentFailed:
		return s.Payment == enums.PaymentStatusFailed
	case enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return s.Payment == enums.PaymentStatusPaid || s.Payment == enums.PaymentStatusRefunded || s.Payment == enums.PaymentStatusPartiallyRefunded
	case enums.OrderStatusCancelled:
		return s.Payment.IsValid()
	default:
		return false
	}
}

func awaitingPayment(s State) bool {
	return (s.Status == enums.OrderStatusPending && s.Payment == enums.PaymentStatusPending) ||
		(s.Status == enums.OrderStatusPaymentFailed && s.Payment == enums.PaymentStatusFailed)
}

func capturedStatus(s enums.OrderStatus) bool {
	switch s {
	case enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return true
	default:
		return false
	}
}

func conflict(cur State, trigger Trigger, msg string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, msg).WithDetails(details(cur, trigger))
}

func discrepancy(cur State, trigger Trigger, msg string) error {
	return pkgerrors.New(pkgerrors.CodeDiscrepancy, msg).WithDetails(details(cur, trigger))
}

func details(cur State, trigger Trigger) map[string]any {
	return map[string]any{
		"current_status":         cur.Status,
		"current_payment_status": cur.Payment,
		"trigger":                trigger,
	}
}

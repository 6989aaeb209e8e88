package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

func st(status enums.OrderStatus, payment enums.PaymentStatus) State {
	return State{Status: status, Payment: payment}
}

func TestNextAppliesTableRows(t *testing.T) {
	cases := []struct {
		name    string
		from    State
		trigger Trigger
		to      State
		stamp   Stamp
	}{
		{"pay pending", st(enums.OrderStatusPending, enums.PaymentStatusPending), TriggerPaymentSucceeded, st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), StampPaid},
		{"retry after failure", st(enums.OrderStatusPaymentFailed, enums.PaymentStatusFailed), TriggerPaymentSucceeded, st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), StampPaid},
		{"fail pending", st(enums.OrderStatusPending, enums.PaymentStatusPending), TriggerPaymentFailed, st(enums.OrderStatusPaymentFailed, enums.PaymentStatusFailed), StampNone},
		{"cancel pending", st(enums.OrderStatusPending, enums.PaymentStatusPending), TriggerCancel, st(enums.OrderStatusCancelled, enums.PaymentStatusPending), StampCancelled},
		{"cancel processing", st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), TriggerCancel, st(enums.OrderStatusCancelled, enums.PaymentStatusPaid), StampCancelled},
		{"cancel failed payment", st(enums.OrderStatusPaymentFailed, enums.PaymentStatusFailed), TriggerCancel, st(enums.OrderStatusCancelled, enums.PaymentStatusFailed), StampCancelled},
		{"ship", st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), TriggerShip, st(enums.OrderStatusShipped, enums.PaymentStatusPaid), StampShipped},
		{"deliver", st(enums.OrderStatusShipped, enums.PaymentStatusPaid), TriggerDeliver, st(enums.OrderStatusDelivered, enums.PaymentStatusPaid), StampDelivered},
		{"full refund", st(enums.OrderStatusDelivered, enums.PaymentStatusPaid), TriggerRefundFull, st(enums.OrderStatusDelivered, enums.PaymentStatusRefunded), StampRefunded},
		{"partial refund", st(enums.OrderStatusShipped, enums.PaymentStatusPaid), TriggerRefundPartial, st(enums.OrderStatusShipped, enums.PaymentStatusPartiallyRefunded), StampRefunded},
		{"second partial", st(enums.OrderStatusProcessing, enums.PaymentStatusPartiallyRefunded), TriggerRefundPartial, st(enums.OrderStatusProcessing, enums.PaymentStatusPartiallyRefunded), StampRefunded},
		{"refund cancelled paid", st(enums.OrderStatusCancelled, enums.PaymentStatusPaid), TriggerRefundFull, st(enums.OrderStatusCancelled, enums.PaymentStatusRefunded), StampRefunded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := Next(tc.from, tc.trigger)
			require.NoError(t, err)
			assert.False(t, tr.Noop)
			assert.Equal(t, tc.to, tr.To)
			assert.Equal(t, tc.stamp, tr.Stamp)
			assert.True(t, ValidPair(tr.To), "resulting pair %s must be valid", tr.To)
		})
	}
}

func TestNextDuplicateOutcomesAreNoops(t *testing.T) {
	cases := []struct {
		from    State
		trigger Trigger
	}{
		{st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), TriggerPaymentSucceeded},
		{st(enums.OrderStatusShipped, enums.PaymentStatusPartiallyRefunded), TriggerPaymentSucceeded},
		{st(enums.OrderStatusPaymentFailed, enums.PaymentStatusFailed), TriggerPaymentFailed},
		{st(enums.OrderStatusCancelled, enums.PaymentStatusPending), TriggerPaymentFailed},
		{st(enums.OrderStatusDelivered, enums.PaymentStatusRefunded), TriggerRefundFull},
	}
	for _, tc := range cases {
		tr, err := Next(tc.from, tc.trigger)
		require.NoError(t, err, "%s on %s", tc.trigger, tc.from)
		assert.True(t, tr.Noop)
		assert.Equal(t, tc.from, tr.To)
		assert.Nil(t, tr.Updates(time.Now()))
	}
}

func TestNextCancelRejectsTerminalAndShipped(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		_, err := Next(st(status, enums.PaymentStatusPaid), TriggerCancel)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
		assert.Contains(t, err.Error(), string(status))

		details, ok := pkgerrors.As(err).Details().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, status, details["current_status"])
	}
}

func TestNextPaymentOnCancelledIsDiscrepancy(t *testing.T) {
	_, err := Next(st(enums.OrderStatusCancelled, enums.PaymentStatusPending), TriggerPaymentSucceeded)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDiscrepancy, pkgerrors.CodeOf(err))

	_, err = Next(st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), TriggerPaymentFailed)
	assert.Equal(t, pkgerrors.CodeDiscrepancy, pkgerrors.CodeOf(err))
}

func TestNextFulfillmentOrdering(t *testing.T) {
	_, err := Next(st(enums.OrderStatusPending, enums.PaymentStatusPending), TriggerShip)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	_, err = Next(st(enums.OrderStatusProcessing, enums.PaymentStatusPaid), TriggerDeliver)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestNextRefundGuards(t *testing.T) {
	_, err := Next(st(enums.OrderStatusPending, enums.PaymentStatusPending), TriggerRefundFull)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	_, err = Next(st(enums.OrderStatusProcessing, enums.PaymentStatusRefunded), TriggerRefundPartial)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestUpdatesCarryStamp(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr, err := Next(st(enums.OrderStatusPending, enums.PaymentStatusPending), TriggerPaymentSucceeded)
	require.NoError(t, err)

	updates := tr.Updates(now)
	assert.Equal(t, enums.OrderStatusProcessing, updates["status"])
	assert.Equal(t, enums.PaymentStatusPaid, updates["payment_status"])
	assert.Equal(t, now, updates["paid_at"])
}

func TestTriggerMappings(t *testing.T) {
	trig, err := TriggerForPaymentStatus(enums.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, TriggerPaymentSucceeded, trig)

	_, err = TriggerForPaymentStatus(enums.PaymentStatusPending)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	trig, err = TriggerForFulfillment(enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, TriggerDeliver, trig)

	_, err = TriggerForFulfillment(enums.OrderStatusCancelled)
	assert.Error(t, err)
}

func TestValidPair(t *testing.T) {
	assert.True(t, ValidPair(st(enums.OrderStatusPending, enums.PaymentStatusPending)))
	assert.False(t, ValidPair(st(enums.OrderStatusPending, enums.PaymentStatusPaid)))
	assert.False(t, ValidPair(st(enums.OrderStatusShipped, enums.PaymentStatusPending)))
	assert.True(t, ValidPair(st(enums.OrderStatusCancelled, enums.PaymentStatusRefunded)))
}

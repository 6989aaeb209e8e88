package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

func TestSumActiveByIntentSkipsFailedRefunds(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	refunds := NewRefundRepository(conn)

	total, err := refunds.SumActiveByIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	for _, r := range []models.Refund{
		{ID: "re_1", PaymentIntentID: "pi_1", Amount: decimal.RequireFromString("5.00"), Status: enums.RefundStatusSucceeded},
		{ID: "re_2", PaymentIntentID: "pi_1", Amount: decimal.RequireFromString("2.50"), Status: enums.RefundStatusPending},
		{ID: "re_3", PaymentIntentID: "pi_1", Amount: decimal.RequireFromString("9.00"), Status: enums.RefundStatusFailed},
		{ID: "re_4", PaymentIntentID: "pi_2", Amount: decimal.RequireFromString("1.00"), Status: enums.RefundStatusSucceeded},
	} {
		r := r
		require.NoError(t, refunds.Create(ctx, &r))
	}

	total, err = refunds.SumActiveByIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "7.50", total.StringFixed(2))

	require.NoError(t, refunds.UpdateStatus(ctx, "re_2", enums.RefundStatusFailed))
	total, err = refunds.SumActiveByIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "5.00", total.StringFixed(2))
}

func TestIntentRepositoryStatusAndLookup(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	intents := NewIntentRepository(conn)
	order := seedOrder(t, conn, enums.OrderStatusPending, "12.00")

	require.NoError(t, intents.Create(ctx, &models.PaymentIntent{
		ID: "pi_a", Provider: enums.PaymentMethodCard, Amount: decimal.RequireFromString("12.00"),
		Currency: enums.CurrencyUSD, Status: enums.IntentStatusRequiresAction,
	}))
	require.NoError(t, intents.SetOrderID(ctx, "pi_a", order.ID))

	msg := "card declined"
	require.NoError(t, intents.UpdateStatus(ctx, "pi_a", enums.IntentStatusFailed, &msg))

	found, err := intents.FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_a", found.ID)
	assert.Equal(t, enums.IntentStatusFailed, found.Status)
	require.NotNil(t, found.ErrorMessage)
	assert.Equal(t, msg, *found.ErrorMessage)
}

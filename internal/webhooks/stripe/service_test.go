package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

type recordingApplier struct {
	outcomes []reconciliation.Outcome
}

func (r *recordingApplier) Apply(_ context.Context, out reconciliation.Outcome) (*reconciliation.Result, error) {
	r.outcomes = append(r.outcomes, out)
	return &reconciliation.Result{Applied: true}, nil
}

func newService(t *testing.T) (*Service, *recordingApplier) {
	t.Helper()
	rec := &recordingApplier{}
	svc, err := NewService(rec, logger.New(logger.Options{ServiceName: "stripe-webhook-test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, rec
}

func event(t *testing.T, eventType string, obj any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_1", Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func TestHandleIntentSucceeded(t *testing.T) {
	svc, rec := newService(t)
	res, err := svc.HandleEvent(context.Background(), event(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"status":   "succeeded",
		"metadata": map[string]string{payments.MetadataOrderID: "ord-1"},
	}))
	require.NoError(t, err)
	assert.Equal(t, webhooks.ResultApplied, res)
	require.Len(t, rec.outcomes, 1)
	out := rec.outcomes[0]
	assert.Equal(t, reconciliation.OutcomeSucceeded, out.Kind)
	assert.Equal(t, reconciliation.SourceWebhook, out.Source)
	assert.Equal(t, "pi_1", out.IntentID)
	assert.Equal(t, "ord-1", out.OrderHint)
}

func TestHandleIntentFailedCarriesProcessorMessage(t *testing.T) {
	svc, rec := newService(t)
	_, err := svc.HandleEvent(context.Background(), event(t, "payment_intent.payment_failed", map[string]any{
		"id":                 "pi_2",
		"object":             "payment_intent",
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	}))
	require.NoError(t, err)
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, reconciliation.OutcomeFailed, rec.outcomes[0].Kind)
	assert.Equal(t, "Your card was declined.", rec.outcomes[0].ErrorMessage)
}

func TestHandleIntentProcessingIsPending(t *testing.T) {
	svc, rec := newService(t)
	_, err := svc.HandleEvent(context.Background(), event(t, "payment_intent.processing", map[string]any{"id": "pi_3"}))
	require.NoError(t, err)
	assert.Equal(t, reconciliation.OutcomePending, rec.outcomes[0].Kind)
	assert.Equal(t, enums.IntentStatusProcessing, rec.outcomes[0].IntentStatus)
}

func TestHandleChargeRefundedFansOutRefunds(t *testing.T) {
	svc, rec := newService(t)
	_, err := svc.HandleEvent(context.Background(), event(t, "charge.refunded", map[string]any{
		"id":             "ch_1",
		"object":         "charge",
		"payment_intent": "pi_4",
		"refunds": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "re_1", "amount": 500, "status": "succeeded"},
				{"id": "re_2", "amount": 250, "status": "pending"},
			},
		},
	}))
	require.NoError(t, err)
	require.Len(t, rec.outcomes, 2)
	assert.Equal(t, "pi_4", rec.outcomes[0].IntentID)
	assert.Equal(t, "re_1", rec.outcomes[0].Refund.RefundID)
	assert.Equal(t, "5.00", rec.outcomes[0].Refund.Amount.StringFixed(2))
	assert.Equal(t, enums.RefundStatusSucceeded, rec.outcomes[0].Refund.Status)
	assert.Equal(t, enums.RefundStatusPending, rec.outcomes[1].Refund.Status)
}

func TestHandleRefundEvent(t *testing.T) {
	svc, rec := newService(t)
	_, err := svc.HandleEvent(context.Background(), event(t, "refund.failed", map[string]any{
		"id":             "re_9",
		"object":         "refund",
		"amount":         1000,
		"status":         "failed",
		"payment_intent": "pi_9",
	}))
	require.NoError(t, err)
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, enums.RefundStatusFailed, rec.outcomes[0].Refund.Status)
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	svc, rec := newService(t)
	res, err := svc.HandleEvent(context.Background(), event(t, "customer.created", map[string]any{"id": "cus_1"}))
	require.NoError(t, err)
	assert.Equal(t, webhooks.ResultIgnored, res)
	assert.Empty(t, rec.outcomes)
}

func TestHandleRejectsEmptyEvent(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.HandleEvent(context.Background(), &stripe.Event{})
	assert.Error(t, err)
}

package squarewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	return &reconciliation.Result{}, nil
}

func newService(t *testing.T) (*Service, *recordingApplier) {
	t.Helper()
	rec := &recordingApplier{}
	svc, err := NewService(rec, logger.New(logger.Options{ServiceName: "square-webhook-test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, rec
}

func decode(t *testing.T, raw string) *Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return &ev
}

func TestHandlePaymentCompleted(t *testing.T) {
	svc, rec := newService(t)
	res, err := svc.HandleEvent(context.Background(), decode(t, `{
		"event_id": "evt_1",
		"type": "payment.updated",
		"data": {"type": "payment", "id": "sq_pay_1", "object": {"payment": {
			"id": "sq_pay_1", "status": "COMPLETED", "reference_id": "ord-1",
			"amount_money": {"amount": 2082, "currency": "USD"}
		}}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.ResultNoop, res)
	require.Len(t, rec.outcomes, 1)
	out := rec.outcomes[0]
	assert.Equal(t, reconciliation.OutcomeSucceeded, out.Kind)
	assert.Equal(t, "sq_pay_1", out.IntentID)
	assert.Equal(t, "ord-1", out.OrderHint)
}

func TestHandlePaymentFailedAndPending(t *testing.T) {
	svc, rec := newService(t)
	_, err := svc.HandleEvent(context.Background(), decode(t, `{"type":"payment.updated","data":{"object":{"payment":{"id":"p1","status":"FAILED"}}}}`))
	require.NoError(t, err)
	_, err = svc.HandleEvent(context.Background(), decode(t, `{"type":"payment.created","data":{"object":{"payment":{"id":"p2","status":"APPROVED"}}}}`))
	require.NoError(t, err)

	require.Len(t, rec.outcomes, 2)
	assert.Equal(t, reconciliation.OutcomeFailed, rec.outcomes[0].Kind)
	assert.Equal(t, "wallet payment failed", rec.outcomes[0].ErrorMessage)
	assert.Equal(t, reconciliation.OutcomePending, rec.outcomes[1].Kind)
	assert.Equal(t, enums.IntentStatusProcessing, rec.outcomes[1].IntentStatus)
}

func TestHandleRefundUpdated(t *testing.T) {
	svc, rec := newService(t)
	_, err := svc.HandleEvent(context.Background(), decode(t, `{"type":"refund.updated","data":{"object":{"refund":{
		"id":"sq_ref_1","payment_id":"sq_pay_1","status":"COMPLETED","amount_money":{"amount":1500,"currency":"USD"}
	}}}}`))
	require.NoError(t, err)
	require.Len(t, rec.outcomes, 1)
	out := rec.outcomes[0]
	assert.Equal(t, reconciliation.OutcomeRefunded, out.Kind)
	assert.Equal(t, "sq_pay_1", out.IntentID)
	assert.Equal(t, "15.00", out.Refund.Amount.StringFixed(2))
	assert.Equal(t, enums.RefundStatusSucceeded, out.Refund.Status)
}

func TestHandleUnknownAndMalformed(t *testing.T) {
	svc, rec := newService(t)
	res, err := svc.HandleEvent(context.Background(), decode(t, `{"type":"invoice.created","data":{"object":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.ResultIgnored, res)

	_, err = svc.HandleEvent(context.Background(), decode(t, `{"type":"payment.updated","data":{"object":{}}}`))
	assert.Error(t, err)
	assert.Empty(t, rec.outcomes)
}

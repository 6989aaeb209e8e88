package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
)

const validStripeHeader = "t=1,v1=good"

type fakeStripeVerifier struct{}

func (fakeStripeVerifier) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if sigHeader != validStripeHeader {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "stripe signature verification failed")
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

type fakeStripeService struct {
	calls  int
	result webhooks.Result
	errs   []error
}

func (f *fakeStripeService) HandleEvent(_ context.Context, _ *stripe.Event) (webhooks.Result, error) {
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return webhooks.ResultIgnored, err
	}
	return f.result, nil
}

func stripePayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     "evt_123",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data":   map[string]any{"object": map[string]any{"id": "pi_123", "object": "payment_intent"}},
	})
	require.NoError(t, err)
	return payload
}

func postStripe(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookAppliesOnceAndAcknowledgesDuplicates(t *testing.T) {
	svc := &fakeStripeService{result: webhooks.ResultApplied}
	metrics := &recordingMetrics{}
	handler := StripeWebhook(svc, fakeStripeVerifier{}, newGuard(t, "card-webhook"), metrics, testLogger())
	payload := stripePayload(t)

	rec := postStripe(handler, payload, validStripeHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = postStripe(handler, payload, validStripeHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls, "duplicate delivery must not be applied")
	assert.Equal(t, []string{"card:applied", "card:duplicate"}, metrics.results)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeStripeService{}
	handler := StripeWebhook(svc, fakeStripeVerifier{}, newGuard(t, "card-webhook"), nil, testLogger())

	rec := postStripe(handler, stripePayload(t), "t=1,v1=forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeSignatureInvalid))

	rec = postStripe(handler, stripePayload(t), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestStripeWebhookReleasesGuardOnFailure(t *testing.T) {
	svc := &fakeStripeService{
		result: webhooks.ResultApplied,
		errs:   []error{pkgerrors.Wrap(pkgerrors.CodeStorage, errors.New("db down"), "update order")},
	}
	handler := StripeWebhook(svc, fakeStripeVerifier{}, newGuard(t, "card-webhook"), nil, testLogger())
	payload := stripePayload(t)

	rec := postStripe(handler, payload, validStripeHeader)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = postStripe(handler, payload, validStripeHeader)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.calls, "retry after a failure must be processed")
}

func TestStripeWebhookIgnoredEventStillAcknowledged(t *testing.T) {
	svc := &fakeStripeService{result: webhooks.ResultIgnored}
	handler := StripeWebhook(svc, fakeStripeVerifier{}, newGuard(t, "card-webhook"), nil, testLogger())

	rec := postStripe(handler, stripePayload(t), validStripeHeader)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeWebhookNotConfigured(t *testing.T) {
	handler := StripeWebhook(nil, fakeStripeVerifier{}, nil, nil, testLogger())
	rec := postStripe(handler, stripePayload(t), validStripeHeader)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	squarewebhook "github.com/angelmondragon/orderbridge-backend/internal/webhooks/square"
	"github.com/angelmondragon/orderbridge-backend/pkg/square"
)

const (
	squareKey = "sq-signature-key"
	squareURL = "https://api.example.com/payments/webhook/wallet"
)

type fakeSquareService struct {
	calls  int
	events []string
	err    error
}

func (f *fakeSquareService) HandleEvent(_ context.Context, event *squarewebhook.Event) (webhooks.Result, error) {
	f.calls++
	f.events = append(f.events, event.Type)
	if f.err != nil {
		return webhooks.ResultIgnored, f.err
	}
	return webhooks.ResultApplied, nil
}

const squareBody = `{"merchant_id":"M1","event_id":"evt-sq-1","type":"payment.updated","data":{"type":"payment","id":"pay_1","object":{"payment":{"id":"pay_1","status":"COMPLETED"}}}}`

func signSquare(key, notificationURL string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postSquare(handler http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook/wallet", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set(squareSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSquareWebhookAppliesOnce(t *testing.T) {
	svc := &fakeSquareService{}
	metrics := &recordingMetrics{}
	handler := SquareWebhook(svc, square.NewVerifier(squareKey, squareURL), newGuard(t, "wallet-webhook"), metrics, testLogger())
	sig := signSquare(squareKey, squareURL, []byte(squareBody))

	rec := postSquare(handler, squareBody, sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = postSquare(handler, squareBody, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, []string{"payment.updated"}, svc.events)
	assert.Equal(t, []string{"wallet:applied", "wallet:duplicate"}, metrics.results)
}

func TestSquareWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeSquareService{}
	handler := SquareWebhook(svc, square.NewVerifier(squareKey, squareURL), newGuard(t, "wallet-webhook"), nil, testLogger())

	forged := signSquare("other-key", squareURL, []byte(squareBody))
	assert.Equal(t, http.StatusBadRequest, postSquare(handler, squareBody, forged).Code)
	assert.Equal(t, http.StatusBadRequest, postSquare(handler, squareBody, "").Code)
	assert.Zero(t, svc.calls)
}

func TestSquareWebhookRejectsMalformedBody(t *testing.T) {
	svc := &fakeSquareService{}
	handler := SquareWebhook(svc, square.NewVerifier(squareKey, squareURL), newGuard(t, "wallet-webhook"), nil, testLogger())

	body := `{"event_id":`
	rec := postSquare(handler, body, signSquare(squareKey, squareURL, []byte(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestSquareWebhookFailureIsRetryable(t *testing.T) {
	svc := &fakeSquareService{err: errors.New("unexpected")}
	handler := SquareWebhook(svc, square.NewVerifier(squareKey, squareURL), newGuard(t, "wallet-webhook"), nil, testLogger())
	sig := signSquare(squareKey, squareURL, []byte(squareBody))

	assert.Equal(t, http.StatusInternalServerError, postSquare(handler, squareBody, sig).Code)
	svc.err = nil
	assert.Equal(t, http.StatusOK, postSquare(handler, squareBody, sig).Code)
	assert.Equal(t, 2, svc.calls)
}

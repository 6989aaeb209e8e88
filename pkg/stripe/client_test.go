package stripe

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{WebhookSecret: "whsec"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{SecretKey: "sk_test_123"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{SecretKey: "sk_live_123", WebhookSecret: "whsec", Env: "test"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: "whsec", Env: "staging"}, nil)
	assert.ErrorIs(t, err, errInvalidStripeEnv)

	c, err := NewClient(ctx, config.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: " whsec "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment())
	assert.Equal(t, "whsec", c.SigningSecret())
	assert.NotNil(t, c.API())
}

func TestNewClientLeavesGlobalKeyAlone(t *testing.T) {
	before := stripe.Key
	a, err := NewClient(context.Background(), config.StripeConfig{SecretKey: "sk_test_a", WebhookSecret: "whsec"}, nil)
	require.NoError(t, err)
	b, err := NewClient(context.Background(), config.StripeConfig{SecretKey: "sk_test_b", WebhookSecret: "whsec"}, nil)
	require.NoError(t, err)

	assert.Equal(t, before, stripe.Key)
	assert.NotSame(t, a.API(), b.API())
}

func newServerClient(t *testing.T, handler http.HandlerFunc, out *bytes.Buffer) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &Client{
		api:    stripe.NewClient("sk_test_server", stripe.WithBackends(backends)),
		logger: logger.New(logger.Options{ServiceName: "stripe-test", Output: out}),
	}
}

func TestCreateRefundUsesInstanceClient(t *testing.T) {
	var form url.Values
	var auth string
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","amount":500,"status":"succeeded"}`))
	}, &bytes.Buffer{})

	r, err := c.CreateRefund(context.Background(), &stripe.RefundCreateParams{
		PaymentIntent: stripe.String("pi_1"),
		Amount:        stripe.Int64(500),
	})
	require.NoError(t, err)
	assert.Equal(t, "re_1", r.ID)
	assert.Equal(t, "pi_1", form.Get("payment_intent"))
	assert.Equal(t, "500", form.Get("amount"))
	assert.Equal(t, "Bearer sk_test_server", auth)
}

func TestGetPaymentIntentMapsAndLogsNotFound(t *testing.T) {
	out := &bytes.Buffer{}
	c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`))
	}, out)

	_, err := c.GetPaymentIntent(context.Background(), "pi_missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Contains(t, out.String(), "retrieve payment intent")
	assert.Contains(t, out.String(), `"level":"warn"`)
}

func TestConstructEvent(t *testing.T) {
	c := &Client{signingSecret: "whsec_test"}
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "payment_intent.succeeded",
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": map[string]any{"id": "pi_1", "object": "payment_intent"}},
	})
	require.NoError(t, err)

	event, err := c.ConstructEvent(payload, sign(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventTypePaymentIntentSucceeded, event.Type)

	_, err = c.ConstructEvent(payload, sign(payload, "wrong", time.Now()))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid))

	_, err = c.ConstructEvent(payload, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid))
}

func TestMapStripeError(t *testing.T) {
	notFound := &stripe.Error{HTTPStatusCode: http.StatusNotFound, Type: stripe.ErrorTypeInvalidRequest}
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(mapStripeError(notFound, "retrieve")))

	declined := &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}
	mapped := pkgerrors.As(mapStripeError(declined, "create"))
	require.NotNil(t, mapped)
	assert.Equal(t, pkgerrors.CodeUpstreamPayment, mapped.Code())
	assert.Equal(t, "card_declined", mapped.Details().(map[string]any)["code"])

	assert.Equal(t, pkgerrors.CodeUpstreamPayment, pkgerrors.CodeOf(mapStripeError(errors.New("dial tcp: timeout"), "create")))
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

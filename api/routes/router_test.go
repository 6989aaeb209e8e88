package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/pkg/auth"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: "secret", Issuer: "orderbridge"},
		HTTP: config.HTTPConfig{
			RequestTimeout:  5 * time.Second,
			RateLimit:       100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	srv := miniredis.RunT(t)
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	verifier, err := auth.NewVerifier(cfg.JWT)
	require.NoError(t, err)
	return NewRouter(Params{
		Config:      cfg,
		Verifier:    verifier,
		Logger:      logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		DB:          stubPinger{},
		Redis:       redis.FromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()})),
		Metrics:     metrics.NewReconciliationMetrics(reg),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	})
}

func token(t *testing.T, role enums.Role) string {
	t.Helper()
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.AccessTokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "orderbridge",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return "Bearer " + signed
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)
	serve(h, http.MethodGet, "/health/live", "", nil)

	rec := serve(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orderbridge_http_requests_total")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct{ method, path string }{
		{http.MethodGet, "/orders"},
		{http.MethodPatch, "/orders/5b0d3c2e-3f57-4d1c-9b7e-7a5a8e6f0c11/status"},
		{http.MethodPatch, "/orders/5b0d3c2e-3f57-4d1c-9b7e-7a5a8e6f0c11/payment"},
		{http.MethodDelete, "/orders/5b0d3c2e-3f57-4d1c-9b7e-7a5a8e6f0c11"},
		{http.MethodPost, "/payments/refund"},
	}
	for _, tc := range cases {
		rec := serve(h, tc.method, tc.path, "{}", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	h := newTestRouter(t)
	rec := serve(h, http.MethodGet, "/orders", "", map[string]string{"Authorization": token(t, enums.RoleCustomer)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRouteReachesHandler(t *testing.T) {
	h := newTestRouter(t)
	// no order service is wired, so reaching the handler yields its 500
	rec := serve(h, http.MethodGet, "/orders", "", map[string]string{"Authorization": token(t, enums.RoleAdmin)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCreateOrderRequiresIdempotencyKey(t *testing.T) {
	h := newTestRouter(t)
	rec := serve(h, http.MethodPost, "/orders", `{"items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

func TestUnconfiguredWebhooksRejectSignature(t *testing.T) {
	h := newTestRouter(t)
	for _, path := range []string{"/payments/webhook", "/payments/webhook/wallet"} {
		rec := serve(h, http.MethodPost, path, "{}", map[string]string{"Stripe-Signature": "t=1,v1=abc"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "SIGNATURE_INVALID", path)
	}
}

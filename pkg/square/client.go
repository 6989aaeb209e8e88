package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	sqwebhooks "github.com/square/square-go-sdk/webhooks/client"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	// SignatureHeader carries base64(HMAC-SHA256(key, notification_url + body)).
	SignatureHeader = "X-Square-Hmacsha256-Signature"
)

var (
	errAccessTokenRequired   = errors.New("square access token is required")
	errWebhookSecretRequired = errors.New("square webhook signature key is required")
	errNotificationURL       = errors.New("square webhook notification url is required")
	errLocationRequired      = errors.New("square location id is required")
	errInvalidSquareEnv      = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client exposes Square primitives with centralized auth, logging, idempotency, and error mapping.
type Client struct {
	sdk             *sqclient.Client
	webhooks        *sqwebhooks.Client
	environment     string
	locationID      string
	applicationID   string
	webhookSecret   string
	notificationURL string
	logger          *logger.Logger
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	notificationURL := strings.TrimSpace(cfg.NotificationURL)
	if notificationURL == "" {
		return nil, errNotificationURL
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:             sdk,
		webhooks:        sdk.Webhooks,
		environment:     env,
		locationID:      locationID,
		applicationID:   strings.TrimSpace(cfg.ApplicationID),
		webhookSecret:   webhookSecret,
		notificationURL: notificationURL,
		logger:          logg,
	}

	logg.Info(logg.WithField(ctx, "environment", env), "square client initialized")
	return c, nil
}

// NewVerifier returns a client that can only verify webhook signatures.
func NewVerifier(signatureKey, notificationURL string) *Client {
	return &Client{
		webhooks:        sqwebhooks.NewClient(),
		webhookSecret:   strings.TrimSpace(signatureKey),
		notificationURL: strings.TrimSpace(notificationURL),
	}
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID is the seller location payments are taken against.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// ApplicationID is the public id the storefront wallet button is initialised with.
func (c *Client) ApplicationID() string {
	if c == nil {
		return ""
	}
	return c.applicationID
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "ob"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// VerifySignature checks the webhook signature with the SDK verifier. The
// signed string is the configured notification URL followed by the raw body.
func (c *Client) VerifySignature(ctx context.Context, payload []byte, header string) error {
	if c == nil || c.webhooks == nil || c.webhookSecret == "" || c.notificationURL == "" {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "square signature key not configured")
	}
	// the SDK accepts an empty body unchecked
	if len(payload) == 0 {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "square webhook body empty")
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "square signature missing")
	}
	err := c.webhooks.VerifySignature(ctx, &sq.VerifySignatureRequest{
		RequestBody:     string(payload),
		SignatureHeader: header,
		SignatureKey:    c.webhookSecret,
		NotificationURL: c.notificationURL,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "square signature mismatch")
	}
	return nil
}

// Payment operations
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*PaymentView, error) {
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment")
	}

	view, err := viewOf[PaymentView](resp.GetPayment())
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "create_payment", map[string]any{
		"payment_id": view.ID,
		"status":     view.Status,
	})
	return view, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentView, error) {
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get payment")
	}

	view, err := viewOf[PaymentView](resp.GetPayment())
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": view.ID,
		"status":     view.Status,
	})
	return view, nil
}

func (c *Client) RefundPayment(ctx context.Context, params RefundCreateParams) (*RefundView, error) {
	req := params.toSquareRequest(c.ensureIdempotencyKey("refund.create", params.IdempotencyKey))
	c.log(ctx, "request", "refund_payment", map[string]any{
		"payment_id": params.PaymentID,
		"amount":     params.AmountCents,
	})

	resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
	if err != nil {
		c.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "refund payment")
	}

	view, err := viewOf[RefundView](resp.GetRefund())
	if err != nil {
		return nil, err
	}
	c.log(ctx, "response", "refund_payment", map[string]any{
		"refund_id": view.ID,
		"status":    view.Status,
	})
	return view, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "source", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		var details []map[string]string
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			details = append(details, map[string]string{
				"category": string(sqErr.Category),
				"code":     string(sqErr.Code),
			})
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
			}
		}
		wrapped := pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
		if len(details) > 0 {
			wrapped = wrapped.WithDetails(map[string]any{"errors": details})
		}
		return wrapped
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamPayment, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

// domainCodeForStatus maps processor HTTP failures onto the local taxonomy.
// Anything that is not a lookup miss or an idempotency clash is an upstream
// payment error from the caller's point of view.
func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeDependency
	default:
		return pkgerrors.CodeUpstreamPayment
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}

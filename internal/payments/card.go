package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
)

type stripeAPI interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, params *stripe.RefundCreateParams) (*stripe.Refund, error)
}

// CardGateway is the card rail backed by Stripe payment intents.
type CardGateway struct {
	api stripeAPI
}

func NewCardGateway(api stripeAPI) (*CardGateway, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &CardGateway{api: api}, nil
}

func (g *CardGateway) Method() enums.PaymentMethod { return enums.PaymentMethodCard }

func (g *CardGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentHandle, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(money.ToMinorUnits(req.Amount)),
		Currency: stripe.String(string(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, err
	}
	return &IntentHandle{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       cardIntentStatus(pi),
		Amount:       money.FromMinorUnits(pi.Amount),
	}, nil
}

func (g *CardGateway) RetrieveIntent(ctx context.Context, intentID string) (*IntentSnapshot, error) {
	pi, err := g.api.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	snap := &IntentSnapshot{
		IntentID: pi.ID,
		Status:   cardIntentStatus(pi),
		Amount:   money.FromMinorUnits(pi.Amount),
		Metadata: pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		snap.ErrorMessage = pi.LastPaymentError.Msg
	}
	return snap, nil
}

func (g *CardGateway) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundCreateParams{PaymentIntent: stripe.String(req.IntentID)}
	if req.Amount != nil {
		params.Amount = stripe.Int64(money.ToMinorUnits(*req.Amount))
	}
	if reason, ok := cardRefundReason(req.Reason); ok {
		params.Reason = stripe.String(reason)
	} else if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := g.api.CreateRefund(ctx, params)
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		RefundID: r.ID,
		Amount:   money.FromMinorUnits(r.Amount),
		Status:   cardRefundStatus(r.Status),
	}, nil
}

// cardIntentStatus folds Stripe's vocabulary into the local one. An intent
// bounced back to requires_payment_method with an error is a failed attempt.
func cardIntentStatus(pi *stripe.PaymentIntent) enums.IntentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.IntentStatusSucceeded
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return enums.IntentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return enums.IntentStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return enums.IntentStatusFailed
		}
		return enums.IntentStatusRequiresAction
	default:
		return enums.IntentStatusRequiresAction
	}
}

func cardRefundStatus(status stripe.RefundStatus) enums.RefundStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return enums.RefundStatusSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

func cardRefundReason(reason string) (string, bool) {
	switch stripe.RefundReason(reason) {
	case stripe.RefundReasonDuplicate, stripe.RefundReasonFraudulent, stripe.RefundReasonRequestedByCustomer:
		return reason, true
	default:
		return "", false
	}
}

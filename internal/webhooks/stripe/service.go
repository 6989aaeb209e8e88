// Package stripewebhook turns card-rail (Stripe) webhook events into payment
// outcomes.
package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
)

type eventKind int

const (
	kindIgnored eventKind = iota
	kindIntent
	kindChargeRefunded
	kindRefund
)

func classify(eventType string) eventKind {
	switch eventType {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.processing", "payment_intent.canceled":
		return kindIntent
	case "charge.refunded":
		return kindChargeRefunded
	case "refund.created", "refund.updated", "refund.failed":
		return kindRefund
	default:
		return kindIgnored
	}
}

type Service struct {
	recon webhooks.Applier
	logg  *logger.Logger
}

func NewService(recon webhooks.Applier, logg *logger.Logger) (*Service, error) {
	if recon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{recon: recon, logg: logg}, nil
}

// HandleEvent applies a verified event. Event types outside the recognised set
// are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (webhooks.Result, error) {
	if event == nil || event.Data == nil {
		return webhooks.ResultIgnored, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})

	var outcomes []reconciliation.Outcome
	switch classify(string(event.Type)) {
	case kindIntent:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return webhooks.ResultIgnored, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		outcomes = append(outcomes, intentOutcome(string(event.Type), &pi))
	case kindChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return webhooks.ResultIgnored, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if charge.PaymentIntent == nil || charge.Refunds == nil || len(charge.Refunds.Data) == 0 {
			// Without the refund list the refund.* events carry the detail.
			s.logg.Info(ctx, "charge refunded without refund list")
			return webhooks.ResultIgnored, nil
		}
		for _, r := range charge.Refunds.Data {
			outcomes = append(outcomes, refundOutcome(charge.PaymentIntent.ID, r))
		}
	case kindRefund:
		var r stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &r); err != nil {
			return webhooks.ResultIgnored, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode refund event")
		}
		if r.PaymentIntent == nil || r.PaymentIntent.ID == "" {
			s.logg.Info(ctx, "refund without payment intent ignored")
			return webhooks.ResultIgnored, nil
		}
		outcomes = append(outcomes, refundOutcome(r.PaymentIntent.ID, &r))
	default:
		return webhooks.ResultIgnored, nil
	}

	result := webhooks.ResultNoop
	for _, out := range outcomes {
		next, err := webhooks.Apply(ctx, s.recon, s.logg, out)
		if err != nil {
			return next, err
		}
		if next == webhooks.ResultApplied || next == webhooks.ResultDiscrepancy {
			result = next
		}
	}
	return result, nil
}

func intentOutcome(eventType string, pi *stripe.PaymentIntent) reconciliation.Outcome {
	out := reconciliation.Outcome{
		Source:   reconciliation.SourceWebhook,
		IntentID: pi.ID,
	}
	if pi.Metadata != nil {
		out.OrderHint = pi.Metadata[payments.MetadataOrderID]
	}
	switch eventType {
	case "payment_intent.succeeded":
		out.Kind = reconciliation.OutcomeSucceeded
	case "payment_intent.payment_failed":
		out.Kind = reconciliation.OutcomeFailed
		out.ErrorMessage = "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			out.ErrorMessage = pi.LastPaymentError.Msg
		}
	case "payment_intent.canceled":
		out.Kind = reconciliation.OutcomeFailed
		out.ErrorMessage = "payment canceled"
	default:
		out.Kind = reconciliation.OutcomePending
		out.IntentStatus = enums.IntentStatusProcessing
	}
	return out
}

func refundOutcome(intentID string, r *stripe.Refund) reconciliation.Outcome {
	status := enums.RefundStatusPending
	switch r.Status {
	case stripe.RefundStatusSucceeded:
		status = enums.RefundStatusSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		status = enums.RefundStatusFailed
	}
	return reconciliation.Outcome{
		Kind:     reconciliation.OutcomeRefunded,
		Source:   reconciliation.SourceWebhook,
		IntentID: intentID,
		Refund: &reconciliation.RefundOutcome{
			RefundID: r.ID,
			Amount:   money.FromMinorUnits(r.Amount),
			Status:   status,
			Reason:   string(r.Reason),
		},
	}
}

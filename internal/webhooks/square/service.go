// Package squarewebhook turns wallet-rail (Square) webhook events into payment
// outcomes.
package squarewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
	"github.com/angelmondragon/orderbridge-backend/pkg/square"
)

// Event is the Square notification envelope.
type Event struct {
	MerchantID string    `json:"merchant_id"`
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	CreatedAt  string    `json:"created_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Object json.RawMessage `json:"object"`
}

type paymentObject struct {
	Payment *square.PaymentView `json:"payment"`
}

type refundObject struct {
	Refund *square.RefundView `json:"refund"`
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

// HandleEvent applies a verified notification. Types outside payment.* and
// refund.* are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (webhooks.Result, error) {
	if event == nil {
		return webhooks.ResultIgnored, pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.EventID, "event_type": event.Type})

	var out reconciliation.Outcome
	switch event.Type {
	case "payment.created", "payment.updated":
		var obj paymentObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil || obj.Payment == nil {
			return webhooks.ResultIgnored, pkgerrors.New(pkgerrors.CodeValidation, "decode square payment event")
		}
		out = paymentOutcome(obj.Payment)
	case "refund.created", "refund.updated":
		var obj refundObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil || obj.Refund == nil {
			return webhooks.ResultIgnored, pkgerrors.New(pkgerrors.CodeValidation, "decode square refund event")
		}
		if obj.Refund.PaymentID == "" {
			s.logg.Info(ctx, "refund without payment id ignored")
			return webhooks.ResultIgnored, nil
		}
		out = refundOutcome(obj.Refund)
	default:
		return webhooks.ResultIgnored, nil
	}
	return webhooks.Apply(ctx, s.recon, s.logg, out)
}

func paymentOutcome(p *square.PaymentView) reconciliation.Outcome {
	status := payments.WalletIntentStatus(p.Status)
	out := reconciliation.Outcome{
		Source:       reconciliation.SourceWebhook,
		IntentID:     p.ID,
		IntentStatus: status,
		OrderHint:    p.ReferenceID,
	}
	switch status {
	case enums.IntentStatusSucceeded:
		out.Kind = reconciliation.OutcomeSucceeded
	case enums.IntentStatusFailed:
		out.Kind = reconciliation.OutcomeFailed
		out.ErrorMessage = "wallet payment " + strings.ToLower(p.StatusUpper())
	default:
		out.Kind = reconciliation.OutcomePending
	}
	return out
}

func refundOutcome(r *square.RefundView) reconciliation.Outcome {
	return reconciliation.Outcome{
		Kind:     reconciliation.OutcomeRefunded,
		Source:   reconciliation.SourceWebhook,
		IntentID: r.PaymentID,
		Refund: &reconciliation.RefundOutcome{
			RefundID: r.ID,
			Amount:   money.FromMinorUnits(r.AmountCents()),
			Status:   payments.WalletRefundStatus(r.Status),
		},
	}
}

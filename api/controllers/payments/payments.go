// Package payments exposes the intent, confirm and refund endpoints. Webhook
// receivers live in the webhooks controller package.
package payments

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/api/validators"
	internalpayments "github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

type intentItemRequest struct {
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int             `json:"quantity" validate:"required,min=1,max=1000"`
}

type createIntentRequest struct {
	Items         []intentItemRequest `json:"items" validate:"required,min=1,dive"`
	Shipping      decimal.Decimal     `json:"shipping" validate:"gte=0"`
	Tax           decimal.Decimal     `json:"tax" validate:"gte=0"`
	CustomerEmail string              `json:"customerEmail" validate:"omitempty,email"`
	OrderID       *uuid.UUID          `json:"orderId,omitempty"`
	PaymentMethod string              `json:"paymentMethod,omitempty" validate:"omitempty,oneof=card wallet"`
	// SourceID is the wallet nonce tokenised by the storefront.
	SourceID string `json:"sourceId,omitempty" validate:"omitempty,max=255"`
}

type confirmRequest struct {
	IntentID string    `json:"intentId" validate:"required,max=255"`
	OrderID  uuid.UUID `json:"orderId" validate:"required"`
}

type refundRequest struct {
	IntentID string           `json:"intentId" validate:"required,max=255"`
	Amount   *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Reason   string           `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CreateIntent handles POST /payments/create-intent.
func CreateIntent(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method := enums.PaymentMethod(payload.PaymentMethod)
		if method == enums.PaymentMethodWallet && strings.TrimSpace(payload.SourceID) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"sourceId": "is required for wallet payments"}))
			return
		}

		input := internalpayments.CreateIntentInput{
			Items:          make([]internalpayments.IntentItem, 0, len(payload.Items)),
			Shipping:       payload.Shipping,
			Tax:            payload.Tax,
			CustomerEmail:  strings.ToLower(strings.TrimSpace(payload.CustomerEmail)),
			OrderID:        payload.OrderID,
			PaymentMethod:  method,
			SourceID:       strings.TrimSpace(payload.SourceID),
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		}
		for _, item := range payload.Items {
			input.Items = append(input.Items, internalpayments.IntentItem{UnitPrice: item.Price, Quantity: item.Quantity})
		}

		result, err := svc.CreateIntent(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Confirm handles POST /payments/confirm. A declined payment is a successful
// call whose status is failed; a discrepancy is reported as an error.
func Confirm(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{
			"intent_id": payload.IntentID,
			"order_id":  payload.OrderID.String(),
		})

		result, err := svc.Confirm(ctx, payload.IntentID, payload.OrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Refund handles POST /payments/refund. Amount may be omitted to refund the
// remaining balance.
func Refund(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Refund(r.Context(), reconciliation.RefundInput{
			IntentID:       strings.TrimSpace(payload.IntentID),
			Amount:         payload.Amount,
			Reason:         validators.SanitizeString(payload.Reason, 500),
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

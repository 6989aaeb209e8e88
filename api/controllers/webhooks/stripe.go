package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (webhooks.Result, error)
}

type stripeVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// StripeWebhook handles card-rail payment intent and refund events.
func StripeWebhook(svc StripeWebhookService, verifier stripeVerifier, guard eventGuard, metrics webhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card webhook not configured"))
			return
		}

		payload, err := readBody(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			record(metrics, "card", "rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "stripe signature missing"))
			return
		}

		event, err := verifier.ConstructEvent(payload, sigHeader)
		if err != nil {
			record(metrics, "card", "rejected")
			if !pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid) {
				err = pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "verify signature")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if event.ID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}

		deliver(ctx, w, "card", event.ID, guard, metrics, logg, func(ctx context.Context) (webhooks.Result, error) {
			return svc.HandleEvent(ctx, &event)
		})
	}
}

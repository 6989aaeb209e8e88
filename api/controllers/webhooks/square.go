package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	squarewebhook "github.com/angelmondragon/orderbridge-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const squareSignatureHeader = "X-Square-Hmacsha256-Signature"

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.Event) (webhooks.Result, error)
}

type squareVerifier interface {
	VerifySignature(ctx context.Context, payload []byte, header string) error
}

// SquareWebhook handles wallet-rail payment and refund notifications.
func SquareWebhook(svc SquareWebhookService, verifier squareVerifier, guard eventGuard, metrics webhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet webhook not configured"))
			return
		}

		payload, err := readBody(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := verifier.VerifySignature(ctx, payload, r.Header.Get(squareSignatureHeader)); err != nil {
			record(metrics, "wallet", "rejected")
			if !pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid) {
				err = pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "verify signature")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event squarewebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			eventID = strings.TrimSpace(event.Data.ID)
		}
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}

		deliver(ctx, w, "wallet", eventID, guard, metrics, logg, func(ctx context.Context) (webhooks.Result, error) {
			return svc.HandleEvent(ctx, &event)
		})
	}
}

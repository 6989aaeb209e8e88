// Package webhooks exposes the processor webhook endpoints. Both rails share
// the same flow: verify, dedupe by event id, apply, acknowledge.
package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/orderbridge-backend/api/responses"
	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookMetrics interface {
	IncWebhook(provider, result string)
}

type receivedBody struct {
	Received bool `json:"received"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	return payload, nil
}

// deliver runs handle once per event id. A failed delivery releases the id so
// the processor's retry is applied again.
func deliver(
	ctx context.Context,
	w http.ResponseWriter,
	provider, eventID string,
	guard eventGuard,
	metrics webhookMetrics,
	logg *logger.Logger,
	handle func(context.Context) (webhooks.Result, error),
) {
	ctx = logg.WithFields(ctx, map[string]any{"provider": provider, "event_id": eventID})

	seen, err := guard.CheckAndMark(ctx, eventID)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency"))
		return
	}
	if seen {
		record(metrics, provider, webhooks.ResultDuplicate)
		logg.Info(ctx, "duplicate webhook acknowledged")
		responses.WriteJSON(w, http.StatusOK, receivedBody{Received: true})
		return
	}

	result, err := handle(ctx)
	if err != nil {
		if delErr := guard.Delete(ctx, eventID); delErr != nil {
			logg.Error(ctx, "failed to release webhook idempotency key", delErr)
		}
		record(metrics, provider, "error")
		responses.WriteError(ctx, logg, w, err)
		return
	}

	record(metrics, provider, result)
	logg.Info(logg.WithField(ctx, "result", string(result)), "webhook processed")
	responses.WriteJSON(w, http.StatusOK, receivedBody{Received: true})
}

func record(metrics webhookMetrics, provider string, result webhooks.Result) {
	if metrics != nil {
		metrics.IncWebhook(provider, string(result))
	}
}

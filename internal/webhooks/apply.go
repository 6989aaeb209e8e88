package webhooks

import (
	"context"

	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

// Applier is the reconciliation entry point webhooks feed.
type Applier interface {
	Apply(ctx context.Context, out reconciliation.Outcome) (*reconciliation.Result, error)
}

// Apply runs one outcome. Discrepancies (already reported by reconciliation)
// and unknown intents are handled results so the processor does not retry;
// anything else is returned for a retry.
func Apply(ctx context.Context, recon Applier, logg *logger.Logger, out reconciliation.Outcome) (Result, error) {
	res, err := recon.Apply(ctx, out)
	switch {
	case err == nil && res != nil && res.Applied:
		return ResultApplied, nil
	case err == nil:
		return ResultNoop, nil
	case pkgerrors.Is(err, pkgerrors.CodeDiscrepancy):
		return ResultDiscrepancy, nil
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		logg.Warn(logg.WithIntentID(ctx, out.IntentID), "webhook for unknown payment intent ignored")
		return ResultIgnored, nil
	default:
		return ResultIgnored, err
	}
}

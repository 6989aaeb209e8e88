package reconciliation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// OutcomeKind is the closed set of processor results the engine understands.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	// OutcomePending updates the intent record only; the order does not move.
	OutcomePending  OutcomeKind = "pending"
	OutcomeRefunded OutcomeKind = "refunded"
)

// Source names the entry point that produced an outcome.
type Source string

const (
	SourceConfirm Source = "confirm"
	SourceWebhook Source = "webhook"
	SourceSweep   Source = "sweep"
	SourceRefund  Source = "refund"
	// SourceCheckout replays an outcome stored before the order existed.
	SourceCheckout Source = "checkout"
)

// Outcome is one processor result for one intent.
type Outcome struct {
	Kind     OutcomeKind
	Source   Source
	IntentID string
	// IntentStatus is the processor status mapped onto the local vocabulary.
	IntentStatus enums.IntentStatus
	// OrderHint is the order id carried in processor metadata. The intent
	// registry link wins when both are present.
	OrderHint    string
	ErrorMessage string
	Refund       *RefundOutcome
}

// RefundOutcome describes one processor refund.
type RefundOutcome struct {
	RefundID string
	Amount   decimal.Decimal
	Status   enums.RefundStatus
	Reason   string
}

// FromSnapshot converts a RetrieveIntent result into an outcome.
func FromSnapshot(snap *payments.IntentSnapshot, source Source) Outcome {
	out := Outcome{
		Source:       source,
		IntentID:     snap.IntentID,
		IntentStatus: snap.Status,
		OrderHint:    snap.OrderID(),
		ErrorMessage: snap.ErrorMessage,
	}
	switch snap.Status {
	case enums.IntentStatusSucceeded:
		out.Kind = OutcomeSucceeded
	case enums.IntentStatusFailed:
		out.Kind = OutcomeFailed
	default:
		out.Kind = OutcomePending
	}
	return out
}

func (o Outcome) orderHint() *uuid.UUID {
	if o.OrderHint == "" {
		return nil
	}
	id, err := uuid.Parse(o.OrderHint)
	if err != nil {
		return nil
	}
	return &id
}

func (o Outcome) targetIntentStatus() enums.IntentStatus {
	switch o.Kind {
	case OutcomeSucceeded:
		return enums.IntentStatusSucceeded
	case OutcomeFailed:
		return enums.IntentStatusFailed
	default:
		if o.IntentStatus != "" {
			return o.IntentStatus
		}
		return enums.IntentStatusProcessing
	}
}

var intentRank = map[enums.IntentStatus]int{
	enums.IntentStatusRequiresAction:    0,
	enums.IntentStatusProcessing:        1,
	enums.IntentStatusFailed:            2,
	enums.IntentStatusSucceeded:         3,
	enums.IntentStatusPartiallyRefunded: 4,
	enums.IntentStatusRefunded:          5,
}

// advances reports whether moving an intent from cur to next is forward
// progress. A failed intent may be retried, so anything leaves failed.
func advances(cur, next enums.IntentStatus) bool {
	if cur == next {
		return false
	}
	if cur == enums.IntentStatusFailed {
		return true
	}
	return intentRank[next] > intentRank[cur]
}

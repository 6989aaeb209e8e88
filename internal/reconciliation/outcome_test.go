package reconciliation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/orderbridge-backend/internal/payments"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

func TestFromSnapshot(t *testing.T) {
	orderID := uuid.New()
	snap := &payments.IntentSnapshot{
		IntentID:     "pi_1",
		Status:       enums.IntentStatusFailed,
		Metadata:     map[string]string{payments.MetadataOrderID: orderID.String()},
		ErrorMessage: "declined",
	}
	out := FromSnapshot(snap, SourceConfirm)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, SourceConfirm, out.Source)
	assert.Equal(t, "declined", out.ErrorMessage)
	assert.Equal(t, orderID, *out.orderHint())

	snap.Status = enums.IntentStatusSucceeded
	assert.Equal(t, OutcomeSucceeded, FromSnapshot(snap, SourceSweep).Kind)
	snap.Status = enums.IntentStatusRequiresAction
	pending := FromSnapshot(snap, SourceSweep)
	assert.Equal(t, OutcomePending, pending.Kind)
	assert.Equal(t, enums.IntentStatusRequiresAction, pending.targetIntentStatus())
}

func TestOrderHintIgnoresGarbage(t *testing.T) {
	assert.Nil(t, Outcome{}.orderHint())
	assert.Nil(t, Outcome{OrderHint: "not-a-uuid"}.orderHint())
}

func TestAdvances(t *testing.T) {
	assert.True(t, advances(enums.IntentStatusRequiresAction, enums.IntentStatusProcessing))
	assert.True(t, advances(enums.IntentStatusProcessing, enums.IntentStatusSucceeded))
	assert.True(t, advances(enums.IntentStatusFailed, enums.IntentStatusProcessing))
	assert.True(t, advances(enums.IntentStatusSucceeded, enums.IntentStatusPartiallyRefunded))
	assert.False(t, advances(enums.IntentStatusSucceeded, enums.IntentStatusSucceeded))
	assert.False(t, advances(enums.IntentStatusRefunded, enums.IntentStatusSucceeded))
	assert.False(t, advances(enums.IntentStatusSucceeded, enums.IntentStatusFailed))
}

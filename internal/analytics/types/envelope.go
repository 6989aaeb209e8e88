package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// Envelope is an order event as delivered to analytics consumers. Payload holds
// the typed body resolved from the event registry.
type Envelope struct {
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Version       int
	OccurredAt    time.Time
	Payload       any
	Raw           json.RawMessage
}

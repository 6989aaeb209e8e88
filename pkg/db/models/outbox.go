package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
)

// OutboxEvent is written in the same transaction as the state change it
// announces. PublishedAt stays nil until the relay has delivered it.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"autoCreateTime"`
	PublishedAt   *time.Time
	AttemptCount  int `gorm:"not null;default:0"`
	LastError     *string
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// OutboxDLQ is an event the relay gave up on. Replay moves it back into
// outbox_events.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:ux_outbox_dlq_event_id"`
	EventType     enums.OutboxEventType      `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                  `gorm:"type:uuid;not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string
	AttemptCount  int       `gorm:"not null;default:0"`
	FailedAt      time.Time `gorm:"autoCreateTime"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// NewOutboxDLQ copies event into a dead-letter row. attempts is the total
// number of publish attempts including the one that failed.
func NewOutboxDLQ(event OutboxEvent, reason enums.OutboxDLQErrorReason, cause string, attempts int, failedAt time.Time) OutboxDLQ {
	return OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &cause,
		AttemptCount:  attempts,
		FailedAt:      failedAt,
	}
}

// Event rebuilds the outbox row a dead letter came from, unpublished and
// with a fresh attempt budget.
func (d OutboxDLQ) Event() OutboxEvent {
	return OutboxEvent{
		ID:            d.EventID,
		EventType:     d.EventType,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Payload:       d.Payload,
	}
}

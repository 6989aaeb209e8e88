// Package registry maps outbox event types to their topic and typed payload.
// The relay resolves rows through it before publishing and consumers resolve
// message bodies through the same path.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/payloads"
)

// ErrNonRetryable marks a row that will never publish as stored. The relay
// dead-letters it on the first attempt.
var ErrNonRetryable = errors.New("non-retryable")

// Permanent wraps err with ErrNonRetryable.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrNonRetryable, err)
}

type EventDescriptor struct {
	EventType  enums.OutboxEventType
	Aggregates []enums.OutboxAggregateType
	Topic      string
	decode     func(json.RawMessage) (any, error)
}

// ResolvedEvent is a decoded outbox row or message body.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func describe[T any](eventType enums.OutboxEventType, aggregates ...enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:  eventType,
		Aggregates: aggregates,
		decode: func(data json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry routes every event to the orders topic. Discrepancies may
// be keyed by a payment intent when no order matched.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	order := enums.AggregateOrder
	descriptors := []EventDescriptor{
		describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, order),
		describe[payloads.OrderPaymentEvent](enums.EventOrderPaid, order),
		describe[payloads.OrderPaymentEvent](enums.EventOrderPaymentFailed, order),
		describe[payloads.OrderCancelledEvent](enums.EventOrderCancelled, order),
		describe[payloads.OrderRefundedEvent](enums.EventOrderRefunded, order),
		describe[payloads.OrderFulfillmentEvent](enums.EventOrderFulfillmentChanged, order),
		describe[payloads.ReconciliationDiscrepancyEvent](enums.EventReconciliationDiscrepancy, order, enums.AggregatePaymentIntent),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		d.Topic = cfg.OrdersTopic
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	d, ok := r.entries[eventType]
	return d, ok
}

// Resolve validates the row and decodes its typed payload. Every failure is
// ErrNonRetryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	case !slices.Contains(d.Aggregates, event.AggregateType):
		return nil, Permanent(fmt.Errorf("aggregate %s not allowed for %s", event.AggregateType, event.EventType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload, err := d.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}

// ResolveMessage decodes a published message body. The envelope carries its
// own identity, so message attributes are not consulted.
func (r *EventRegistry) ResolveMessage(data []byte) (*ResolvedEvent, error) {
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	return r.Resolve(models.OutboxEvent{
		EventType:     enums.OutboxEventType(env.EventType),
		AggregateType: enums.OutboxAggregateType(env.AggregateType),
		AggregateID:   env.AggregateID,
		Payload:       data,
	})
}

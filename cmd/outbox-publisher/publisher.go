package main

import (
	"context"
	"errors"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/registry"
)

// topicPublisher is the slice of *pubsub.Publisher the relay needs.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisherSource func(topic string) topicPublisher

type publisherProvider interface {
	Publisher(topic string) *gcppubsub.Publisher
}

func pubsubPublishers(client publisherProvider) publisherSource {
	return func(topic string) topicPublisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return orderedPublisher{p: p}
	}
}

type orderedPublisher struct {
	p *gcppubsub.Publisher
}

func (o orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return o.p.Publish(ctx, msg)
}

func (o orderedPublisher) ResumePublish(key string) {
	o.p.ResumePublish(key)
}

// buildMessage wraps the stored envelope. The aggregate id is the ordering
// key so a subscriber sees one order's events in write order.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
			"version":        strconv.Itoa(resolved.Envelope.Version),
		},
	}
}

var errNilPublishResult = errors.New("publisher returned no result")

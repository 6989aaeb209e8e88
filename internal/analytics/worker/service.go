package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderbridge-backend/internal/analytics/router"
	"github.com/angelmondragon/orderbridge-backend/internal/analytics/types"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/metrics"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/registry"
)

const ConsumerName = "analytics"

// Handler writes one resolved envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type messageResolver interface {
	ResolveMessage(data []byte) (*registry.ResolvedEvent, error)
}

type claimGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Claim, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type Params struct {
	Subscription *gcppubsub.Subscriber
	Resolver     messageResolver
	Handler      Handler
	Guard        claimGuard
	Metrics      *metrics.ConsumerMetrics
	Logger       *logger.Logger
}

// Service drains the analytics subscription. Deliveries are deduplicated per
// event id, so a redelivered event produces a single row.
type Service struct {
	subscription *gcppubsub.Subscriber
	resolver     messageResolver
	handler      Handler
	guard        claimGuard
	metrics      *metrics.ConsumerMetrics
	logg         *logger.Logger
}

func NewService(p Params) (*Service, error) {
	switch {
	case p.Subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case p.Resolver == nil:
		return nil, errors.New("event registry is required")
	case p.Handler == nil:
		return nil, errors.New("analytics handler is required")
	case p.Guard == nil:
		return nil, errors.New("idempotency guard is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: p.Subscription,
		resolver:     p.Resolver,
		handler:      p.Handler,
		guard:        p.Guard,
		metrics:      p.Metrics,
		logg:         p.Logger,
	}, nil
}

// Run blocks in Receive until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		result := s.process(msgCtx, msg)
		s.metrics.Inc(ConsumerName, result)
		if nacks(result) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func nacks(result string) bool {
	return result == metrics.ConsumerResultFailed || result == metrics.ConsumerResultInFlight
}

// process returns one of the metrics.ConsumerResult values. Failed and
// in-flight deliveries are nacked; everything else is acked.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) string {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := s.buildEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping undecodable analytics message")
		return metrics.ConsumerResultInvalid
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID.String(),
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID.String(),
	})

	claim, err := s.guard.Claim(ctx, ConsumerName, envelope.EventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency claim failed", err)
		return metrics.ConsumerResultFailed
	}
	switch claim {
	case idempotency.Duplicate:
		s.logg.Debug(ctx, "event already recorded")
		return metrics.ConsumerResultDuplicate
	case idempotency.InFlight:
		s.logg.Debug(ctx, "event held by another delivery")
		return metrics.ConsumerResultInFlight
	}

	if err := s.handler.Handle(ctx, *envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Warn(ctx, "unsupported analytics event")
			s.complete(ctx, envelope.EventID)
			return metrics.ConsumerResultUnsupported
		}
		s.logg.Error(ctx, "analytics handler failed", err)
		if relErr := s.guard.Release(ctx, ConsumerName, envelope.EventID); relErr != nil {
			s.logg.Error(ctx, "failed to release idempotency claim", relErr)
		}
		return metrics.ConsumerResultFailed
	}

	s.complete(ctx, envelope.EventID)
	return metrics.ConsumerResultHandled
}

// complete marks the event done. A failure here only risks a duplicate row on
// redelivery, so the message is still acked.
func (s *Service) complete(ctx context.Context, eventID uuid.UUID) {
	if err := s.guard.Complete(ctx, ConsumerName, eventID); err != nil {
		s.logg.Error(ctx, "failed to mark event done", err)
	}
}

// buildEnvelope resolves the body through the event registry. Decode failures
// are permanent.
func (s *Service) buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	resolved, err := s.resolver.ResolveMessage(msg.Data)
	if err != nil {
		return nil, err
	}
	stored := resolved.Envelope

	eventID, err := uuid.Parse(strings.TrimSpace(stored.EventID))
	if err != nil {
		return nil, fmt.Errorf("event_id: %w", err)
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, msg.Attributes["created_at"]); err == nil {
			occurredAt = parsed
		}
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     resolved.Descriptor.EventType,
		AggregateType: enums.OutboxAggregateType(stored.AggregateType),
		AggregateID:   stored.AggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       resolved.Payload,
		Raw:           stored.Data,
	}, nil
}

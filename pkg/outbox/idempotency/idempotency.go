package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	defaultProcessingTTL = 5 * time.Minute
)

// Claim is the outcome of trying to take an event for processing.
type Claim int

const (
	// Claimed means the caller owns the event and must Complete or Release it.
	Claimed Claim = iota
	// Duplicate means another delivery already finished the event.
	Duplicate
	// InFlight means another delivery holds the event right now.
	InFlight
)

type store interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Guard deduplicates Pub/Sub redeliveries per consumer. A claim writes a short
// lived "processing" marker; Complete replaces it with a "done" marker kept for
// doneTTL. A consumer that crashes mid-event leaves only the short marker, so
// the redelivery after it expires is processed.
//
// Keys: ob:idempotency:evt:<consumer>:<event_id>
type Guard struct {
	store         store
	processingTTL time.Duration
	doneTTL       time.Duration
}

func NewGuard(s store, processingTTL, doneTTL time.Duration) (*Guard, error) {
	if s == nil {
		return nil, errors.New("idempotency store is required")
	}
	if doneTTL <= 0 {
		return nil, errors.New("done ttl must be positive")
	}
	if processingTTL <= 0 {
		processingTTL = defaultProcessingTTL
	}
	return &Guard{store: s, processingTTL: processingTTL, doneTTL: doneTTL}, nil
}

func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Claim, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return 0, err
	}
	ok, err := g.store.SetNX(ctx, key, markerProcessing, g.processingTTL)
	if err != nil {
		return 0, err
	}
	if ok {
		return Claimed, nil
	}

	marker, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Expired between SETNX and GET; let the next delivery retry.
		return InFlight, nil
	case err != nil:
		return 0, err
	case marker == markerDone:
		return Duplicate, nil
	default:
		return InFlight, nil
	}
}

func (g *Guard) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markerDone, g.doneTTL)
}

// Release drops a claim after a failed attempt so a redelivery can retry.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(fmt.Sprintf("evt:%s", consumer), eventID.String()), nil
}

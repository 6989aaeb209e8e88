package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Unlock releases a lock obtained from TryLock.
type Unlock func(ctx context.Context) error

// Locker hands out per-job exclusive leases across the worker fleet.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (Unlock, bool, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLocker leases "<prefix>:<job>" keys holding a random owner token. The
// lease expires on its own if the holder dies mid-run.
type RedisLocker struct {
	store  lockStore
	prefix string
}

func NewRedisLocker(store lockStore, prefix string) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if prefix == "" {
		return nil, errors.New("lock prefix is required")
	}
	return &RedisLocker{store: store, prefix: prefix}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (Unlock, bool, error) {
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lock %s: ttl must be positive", name)
	}
	key := l.prefix + ":" + name
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		// false means the lease expired and someone else may hold it now
		if _, err := l.store.DeleteIfValue(ctx, key, owner); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}, true, nil
}

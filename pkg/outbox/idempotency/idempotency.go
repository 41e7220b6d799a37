// Package idempotency deduplicates event handling across redeliveries. Each consumer
// claims an event id in Redis before acting on it.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tableorders-backend/pkg/redis"
)

var (
	ErrConsumerRequired = errors.New("idempotency: consumer name is required")
	ErrEventIDRequired  = errors.New("idempotency: event id is required")
)

// Manager stores one key per (consumer, event) under
// `to:idempotency:evt:processed:<consumer>:<event_id>`; the value is the claim time.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager returns a Manager whose claims expire after ttl. A zero ttl keeps them forever.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency: store is required")
	case ttl < 0:
		return nil, fmt.Errorf("idempotency: negative ttl %s", ttl)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim marks the event as taken by consumer. It reports false when an earlier delivery
// already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339Nano), m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return claimed, nil
}

// Release forgets the claim so the next delivery is processed again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// ClaimedAt returns when consumer claimed the event, or ok=false if it never did.
func (m *Manager) ClaimedAt(ctx context.Context, consumer string, eventID uuid.UUID) (at time.Time, ok bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return time.Time{}, false, err
	}
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, true, nil
	}
	return at, true, nil
}

// Guard claims the event and runs fn. If fn fails the claim is released so a redelivery
// retries; skipped is true when the event had already been handled.
func (m *Manager) Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	claimed, err := m.Claim(ctx, consumer, eventID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return true, nil
	}
	if runErr := fn(ctx); runErr != nil {
		if relErr := m.Release(context.WithoutCancel(ctx), consumer, eventID); relErr != nil {
			return false, multierr.Append(runErr, fmt.Errorf("release claim: %w", relErr))
		}
		return false, runErr
	}
	return false, nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", ErrConsumerRequired
	}
	if eventID == uuid.Nil {
		return "", ErrEventIDRequired
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}

package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stripe retries undelivered events for up to three days.
const defaultGuardTTL = 72 * time.Hour

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// IdempotencyGuard remembers Stripe event ids in Redis so redeliveries are
// acknowledged without being applied twice.
type IdempotencyGuard struct {
	store claimStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

// NewIdempotencyGuard builds a guard; a zero ttl falls back to three days.
func NewIdempotencyGuard(store claimStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case scope == "":
		return nil, errors.New("scope is required")
	}
	if ttl == 0 {
		ttl = defaultGuardTTL
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope, now: time.Now}, nil
}

// CheckAndMark reports true when eventID was already claimed. A first sighting
// is claimed before processing, stamped with the claim time; callers Delete it
// when processing fails so Stripe's retry is applied.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return !claimed, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}

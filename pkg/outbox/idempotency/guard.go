// Package idempotency deduplicates Pub/Sub redeliveries for event consumers.
// Each (consumer, event) pair moves through a short-lived "processing" claim
// to a long-lived "done" mark; a failed handler drops the claim so the next
// delivery retries.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/foodrescue/rescue-backend/pkg/redis"
)

const (
	markProcessing = "processing"
	markDone       = "done"

	defaultClaimTTL = 5 * time.Minute
)

// ErrInFlight means another delivery of the same event holds the claim. The
// message should be nacked so Pub/Sub redelivers it later.
var ErrInFlight = errors.New("event is being handled by another delivery")

type Guard struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
}

// NewGuard keeps done marks for ttl. A zero ttl keeps them forever.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl, claimTTL: defaultClaimTTL}, nil
}

// Once runs fn unless consumer already handled eventID. It reports whether
// fn ran; (false, nil) is a duplicate delivery.
func (g *Guard) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := g.store.SetNX(ctx, key, markProcessing, g.claimTTL)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return false, g.existing(ctx, key)
	}

	if err := fn(ctx); err != nil {
		release := g.store.Del(context.WithoutCancel(ctx), key)
		return true, multierr.Append(err, release)
	}
	if err := g.store.Set(ctx, key, markDone, g.ttl); err != nil {
		return true, fmt.Errorf("mark %s done: %w", key, err)
	}
	return true, nil
}

func (g *Guard) existing(ctx context.Context, key string) error {
	mark, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.ErrNil):
		// The claim expired between SETNX and GET; let a redelivery retry.
		return ErrInFlight
	case err != nil:
		return fmt.Errorf("read %s: %w", key, err)
	case mark == markDone:
		return nil
	default:
		return ErrInFlight
	}
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}

package handoff

import (
	"context"
	"time"

	domain "animeai/internal/domain/handoff"
)

// Store persists per-visitor handoff slots.
// Reads never return an expired entry; they report domain.ErrNotFound instead.
type Store interface {
	Put(ctx context.Context, entry domain.Entry) error
	Take(ctx context.Context, visitorID string, key domain.Key, now time.Time) (domain.Entry, error)
	Peek(ctx context.Context, visitorID string, key domain.Key, now time.Time) (domain.Entry, error)
	Delete(ctx context.Context, visitorID string, key domain.Key) error
	Clear(ctx context.Context, visitorID string, keys ...domain.Key) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

package projections

import (
	"context"
	"time"

	"animeai/internal/domain/handoff"
)

// SlotReader reads a handoff slot without consuming it.
type SlotReader interface {
	Peek(ctx context.Context, visitorID string, key handoff.Key, now time.Time) (handoff.Entry, error)
}

// SlotTaker reads slots, consuming the ones shown only once.
type SlotTaker interface {
	SlotReader
	Take(ctx context.Context, visitorID string, key handoff.Key, now time.Time) (handoff.Entry, error)
}

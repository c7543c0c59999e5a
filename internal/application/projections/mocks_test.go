package projections

import (
	"context"
	"time"

	"animeai/internal/domain/handoff"
)

var testTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func testNow() time.Time { return testTime }

// mockSlots is an in-memory handoff store keyed by slot key for one visitor.
type mockSlots struct {
	entries map[handoff.Key]handoff.Entry
	err     error
}

func newMockSlots(values map[handoff.Key]string) *mockSlots {
	m := &mockSlots{entries: map[handoff.Key]handoff.Entry{}}
	for k, v := range values {
		m.entries[k] = handoff.NewEntry("v1", k, v, testTime.Add(-time.Minute), 0)
	}
	return m
}

// Peek implements SlotReader.
func (m *mockSlots) Peek(_ context.Context, _ string, key handoff.Key, now time.Time) (handoff.Entry, error) {
	if m.err != nil {
		return handoff.Entry{}, m.err
	}
	e, ok := m.entries[key]
	if !ok || e.Expired(now) {
		return handoff.Entry{}, handoff.ErrNotFound
	}
	return e, nil
}

// Take implements SlotTaker.
func (m *mockSlots) Take(ctx context.Context, visitorID string, key handoff.Key, now time.Time) (handoff.Entry, error) {
	e, err := m.Peek(ctx, visitorID, key, now)
	delete(m.entries, key)
	return e, err
}

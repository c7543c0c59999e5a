package orchestrators

import (
	"context"
	"errors"
	"sync"
	"time"

	"animeai/internal/domain/credentials"
	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

var testTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func testNow() time.Time { return testTime }

// mockBackend returns canned outcomes and counts calls per endpoint.
type mockBackend struct {
	mu    sync.Mutex
	reply outcome.Outcome
	calls map[string]int
	last  any
}

func newMockBackend(reply outcome.Outcome) *mockBackend {
	return &mockBackend{reply: reply, calls: map[string]int{}}
}

func (m *mockBackend) record(name string, payload any) outcome.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	m.last = payload
	return m.reply
}

func (m *mockBackend) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockBackend) Home(_ context.Context, _ string) outcome.Outcome {
	return m.record("home", nil)
}

func (m *mockBackend) Login(_ context.Context, _ string, l credentials.Login) outcome.Outcome {
	return m.record("login", l)
}

func (m *mockBackend) Signup(_ context.Context, _ string, s credentials.Signup) outcome.Outcome {
	return m.record("signup", s)
}

func (m *mockBackend) Logout(_ context.Context, _ string) outcome.Outcome {
	return m.record("logout", nil)
}

func (m *mockBackend) Recommend(_ context.Context, _ string, q string) outcome.Outcome {
	return m.record("recommend", q)
}

func (m *mockBackend) RecordView(_ context.Context, _ string, title, _ string) outcome.Outcome {
	return m.record("record_view", title)
}

// mockSlots is an in-memory handoff store.
type mockSlots struct {
	entries  map[string]handoff.Entry
	putErr   error
	clearErr error
}

func newMockSlots() *mockSlots {
	return &mockSlots{entries: map[string]handoff.Entry{}}
}

func slotID(visitorID string, key handoff.Key) string { return visitorID + "/" + string(key) }

// Put implements SlotWriter.
// PRE: entry is valid
// POST: entry replaces any earlier value for its key
func (m *mockSlots) Put(_ context.Context, e handoff.Entry) error {
	if m.putErr != nil {
		return m.putErr
	}
	if err := e.Validate(); err != nil {
		return err
	}
	m.entries[slotID(e.VisitorID, e.Key)] = e
	return nil
}

// Peek implements SlotReadWriter.
func (m *mockSlots) Peek(_ context.Context, visitorID string, key handoff.Key, now time.Time) (handoff.Entry, error) {
	e, ok := m.entries[slotID(visitorID, key)]
	if !ok || e.Expired(now) {
		return handoff.Entry{}, handoff.ErrNotFound
	}
	return e, nil
}

// Clear implements SlotClearer.
func (m *mockSlots) Clear(_ context.Context, visitorID string, keys ...handoff.Key) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	if len(keys) == 0 {
		keys = handoff.AllKeys
	}
	for _, k := range keys {
		delete(m.entries, slotID(visitorID, k))
	}
	return nil
}

func (m *mockSlots) value(visitorID string, key handoff.Key) (string, bool) {
	e, ok := m.entries[slotID(visitorID, key)]
	return e.Value, ok
}

// mockCookies records cookie-jar clears.
type mockCookies struct {
	cleared []string
	err     error
}

// ClearCookies implements CookieClearer.
func (m *mockCookies) ClearCookies(_ context.Context, visitorID string) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, visitorID)
	return nil
}

var errStore = errors.New("store unavailable")

func transportFailure() outcome.Outcome {
	return outcome.Outcome{Kind: outcome.KindTransport, Err: errors.New("dial tcp: connection refused")}
}

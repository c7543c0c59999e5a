package handoff

import (
	"errors"
	"time"
)

// Key names a handoff slot. Each visitor holds at most one value per key.
type Key string

// Slot keys shared between page loads.
const (
	KeyAuthMessage          Key = "authMessage"
	KeyUserAnime            Key = "userAnime"
	KeyAnimeRecommendations Key = "animeRecommendations"
	KeyRememberMe           Key = "rememberMe"
	KeyUserEmail            Key = "userEmail"
)

// AllKeys lists every slot key.
var AllKeys = []Key{KeyAuthMessage, KeyUserAnime, KeyAnimeRecommendations, KeyRememberMe, KeyUserEmail}

// Redirect reasons written to KeyAuthMessage before a session-boundary redirect.
const (
	ReasonSignupFirst     = "Please first signup"
	ReasonLoginToContinue = "Please login to continue"
)

// Default slot lifetimes. Zero means the slot never expires on its own.
const (
	TTLAuthMessage     = 10 * time.Minute
	TTLRecommendations = time.Hour
	TTLDurable         = time.Duration(0)
)

// Domain errors
var (
	ErrNotFound      = errors.New("handoff slot is empty")
	ErrUnknownKey    = errors.New("unknown handoff key")
	ErrEmptyVisitor  = errors.New("visitor id cannot be empty")
	ErrValueTooLarge = errors.New("handoff value exceeds maximum size")
)

// MaxValueBytes bounds a single slot value.
const MaxValueBytes = 1 << 20

// Entry is one stored slot value.
type Entry struct {
	VisitorID string
	Key       Key
	Value     string
	WrittenAt time.Time
	ExpiresAt time.Time // zero for durable entries
}

// NewEntry builds an entry written at now with the given lifetime.
// PRE: ttl >= 0
// POST: ExpiresAt is zero when ttl is zero, now+ttl otherwise
func NewEntry(visitorID string, key Key, value string, now time.Time, ttl time.Duration) Entry {
	e := Entry{VisitorID: visitorID, Key: key, Value: value, WrittenAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// Validate checks the entry's invariants.
// PRE: none
// POST: returns nil if the entry may be stored
func (e *Entry) Validate() error {
	if e.VisitorID == "" {
		return ErrEmptyVisitor
	}
	if !e.Key.Valid() {
		return ErrUnknownKey
	}
	if len(e.Value) > MaxValueBytes {
		return ErrValueTooLarge
	}
	return nil
}

// Expired reports whether the entry has outlived its lifetime at now.
// INVARIANT: Entry fields are not mutated
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Valid reports whether k is one of the known slot keys.
func (k Key) Valid() bool {
	for _, known := range AllKeys {
		if k == known {
			return true
		}
	}
	return false
}

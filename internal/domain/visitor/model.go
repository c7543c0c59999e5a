package visitor

import (
	"errors"
	"time"
)

// IdleTimeout is how long a visitor may stay away before its state is swept.
const IdleTimeout = 30 * 24 * time.Hour

// MaxCookieBytes bounds a single stored backend cookie value.
const MaxCookieBytes = 4096

var (
	ErrEmptyID         = errors.New("visitor id cannot be empty")
	ErrEmptyCookieName = errors.New("cookie name cannot be empty")
	ErrCookieTooLarge  = errors.New("cookie value exceeds 4096 bytes")
)

// Visitor is an anonymous browser identity. It owns the handoff slots and the
// backend cookie jar for one browser.
type Visitor struct {
	ID         string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Validate checks the visitor's invariants.
// PRE: none
// POST: returns nil if valid
func (v *Visitor) Validate() error {
	if v.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// Idle reports whether the visitor has not been seen for longer than IdleTimeout.
// INVARIANT: Visitor fields are not mutated
func (v *Visitor) Idle(now time.Time) bool {
	return now.Sub(v.LastSeenAt) > IdleTimeout
}

// BackendCookie is one cookie the external backend set for this visitor.
// The frontend stores it opaquely and replays it on the next backend call.
type BackendCookie struct {
	Name      string
	Value     string
	ExpiresAt time.Time // zero when the backend sent no expiry
}

// Validate checks the cookie's invariants.
func (c *BackendCookie) Validate() error {
	if c.Name == "" {
		return ErrEmptyCookieName
	}
	if len(c.Value) > MaxCookieBytes {
		return ErrCookieTooLarge
	}
	return nil
}

// Expired reports whether the cookie is past its expiry at now.
func (c *BackendCookie) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

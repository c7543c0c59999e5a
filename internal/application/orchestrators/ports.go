package orchestrators

import (
	"context"
	"fmt"
	"time"

	"animeai/internal/domain/handoff"
)

// Page routes the orchestrators redirect to.
const (
	RouteEntry   = "/"
	RouteLogin   = "/login"
	RouteSignup  = "/signup"
	RouteHome    = "/home"
	RouteResults = "/results"
)

// User-facing messages.
const (
	MsgNetworkError     = "Network error. Please check your connection and try again."
	MsgLoginSuccess     = "Login successful! Redirecting..."
	MsgLoginFailed      = "Login failed. Please check your credentials."
	MsgLoginIncomplete  = "Please enter your email and password."
	MsgSignupSuccess    = "Account created successfully! Redirecting..."
	MsgSignupFailed     = "Signup failed. Please try again."
	MsgPasswordTooShort = "Password must be at least 8 characters long"
	MsgSaveNoTitle      = "That recommendation has no title, so it cannot be saved."
	MsgSearchFailed     = "Failed to get recommendations. Please try again."
	MsgRecommendTooLong = "The recommendation reply was too large to keep. Please narrow your search."
)

// SlotWriter stores handoff slot values.
type SlotWriter interface {
	Put(ctx context.Context, entry handoff.Entry) error
}

// SlotReadWriter reads and stores handoff slot values.
type SlotReadWriter interface {
	SlotWriter
	Peek(ctx context.Context, visitorID string, key handoff.Key, now time.Time) (handoff.Entry, error)
}

// FormResult is what a form submission renders: a redirect, an inline
// success that refreshes to the dashboard, or an inline error.
// INVARIANT: at most one field is non-empty
type FormResult struct {
	Redirect string
	Success  string
	Error    string
}

// redirectWithReason records why the visitor is being sent to route and
// returns the redirect.
func redirectWithReason(ctx context.Context, slots SlotWriter, visitorID, reason, route string, now time.Time) (FormResult, error) {
	entry := handoff.NewEntry(visitorID, handoff.KeyAuthMessage, reason, now, handoff.TTLAuthMessage)
	if err := slots.Put(ctx, entry); err != nil {
		return FormResult{}, fmt.Errorf("write redirect reason: %w", err)
	}
	return FormResult{Redirect: route}, nil
}

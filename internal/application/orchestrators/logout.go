package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

// LogoutBackend ends the backend session.
type LogoutBackend interface {
	Logout(ctx context.Context, visitorID string) outcome.Outcome
}

// SlotClearer removes handoff slots. No keys means every slot.
type SlotClearer interface {
	Clear(ctx context.Context, visitorID string, keys ...handoff.Key) error
}

// CookieClearer drops the backend cookies held for a visitor.
type CookieClearer interface {
	ClearCookies(ctx context.Context, visitorID string) error
}

// LogoutInput carries input for the logout orchestrator.
type LogoutInput struct {
	VisitorID string
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	Backend LogoutBackend
	Slots   SlotClearer
	Cookies CookieClearer
}

// ExecuteLogout tells the backend, then clears everything held for the visitor.
// PRE: VisitorID is non-empty
// POST: Redirect is always the entry page; the backend reply never blocks the
// local teardown, and a cleanup failure is returned alongside the redirect
func ExecuteLogout(ctx context.Context, input LogoutInput, deps LogoutDeps) (FormResult, error) {
	out := deps.Backend.Logout(ctx, input.VisitorID)
	if !out.OK() {
		slog.Warn("auth_event", "event", "logout_backend_failed", "visitor", input.VisitorID, "kind", out.Kind.String(), "status", out.Status, "error", out.Err)
	}

	var errs []error
	if err := deps.Slots.Clear(ctx, input.VisitorID); err != nil {
		errs = append(errs, fmt.Errorf("clear slots: %w", err))
	}
	if err := deps.Cookies.ClearCookies(ctx, input.VisitorID); err != nil {
		errs = append(errs, fmt.Errorf("clear cookies: %w", err))
	}

	slog.Info("auth_event", "event", "logout", "visitor", input.VisitorID)
	return FormResult{Redirect: RouteEntry}, errors.Join(errs...)
}

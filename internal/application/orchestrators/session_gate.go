package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

// HomeChecker asks the backend whether the visitor holds a session.
type HomeChecker interface {
	Home(ctx context.Context, visitorID string) outcome.Outcome
}

// SessionGateInput carries input for the session gate.
type SessionGateInput struct {
	VisitorID string
}

// SessionGateDeps holds dependencies for SessionGate.
type SessionGateDeps struct {
	Backend HomeChecker
	Slots   SlotWriter
	Now     func() time.Time
}

// ExecuteSessionGate decides whether the dashboard may render.
// PRE: VisitorID is non-empty
// POST: Redirect is empty when the session is valid; otherwise a redirect reason
// has been written and Redirect names the page to go to
func ExecuteSessionGate(ctx context.Context, input SessionGateInput, deps SessionGateDeps) (FormResult, error) {
	out := deps.Backend.Home(ctx, input.VisitorID)
	now := deps.Now()

	switch out.Kind {
	case outcome.KindOK:
		return FormResult{}, nil
	case outcome.KindUnauthenticated:
		slog.Info("auth_event", "event", "gate_redirect", "visitor", input.VisitorID, "reason", "not_signed_up")
		return redirectWithReason(ctx, deps.Slots, input.VisitorID, handoff.ReasonSignupFirst, RouteSignup, now)
	case outcome.KindTransport:
		slog.Warn("auth_event", "event", "gate_redirect", "visitor", input.VisitorID, "reason", "transport", "error", out.Err)
		return redirectWithReason(ctx, deps.Slots, input.VisitorID, handoff.ReasonSignupFirst, RouteSignup, now)
	default:
		slog.Info("auth_event", "event", "gate_redirect", "visitor", input.VisitorID, "reason", "rejected", "status", out.Status)
		return redirectWithReason(ctx, deps.Slots, input.VisitorID, handoff.ReasonLoginToContinue, RouteLogin, now)
	}
}

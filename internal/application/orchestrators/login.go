package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"animeai/internal/domain/credentials"
	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

// LoginBackend submits credentials to the backend.
type LoginBackend interface {
	Login(ctx context.Context, visitorID string, l credentials.Login) outcome.Outcome
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	VisitorID string
	Form      credentials.Login
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Backend LoginBackend
	Slots   SlotWriter
	Now     func() time.Time
}

// ExecuteLogin submits the login form and maps the backend outcome onto the page.
// PRE: VisitorID is non-empty
// POST: an unknown email redirects to signup with a reason; success stores the
// remember-me preference when requested; every other outcome is an inline error
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (FormResult, error) {
	form := input.Form
	form.Email = strings.TrimSpace(form.Email)
	if err := form.Validate(); err != nil {
		return FormResult{Error: MsgLoginIncomplete}, nil
	}

	out := deps.Backend.Login(ctx, input.VisitorID, form)
	now := deps.Now()

	switch out.Kind {
	case outcome.KindNotRegistered:
		slog.Info("auth_event", "event", "login_failed", "email", form.Email, "reason", "not_registered")
		return redirectWithReason(ctx, deps.Slots, input.VisitorID, handoff.ReasonSignupFirst, RouteSignup, now)
	case outcome.KindTransport:
		slog.Warn("auth_event", "event", "login_failed", "email", form.Email, "reason", "transport", "error", out.Err)
		return FormResult{Error: MsgNetworkError}, nil
	case outcome.KindOK:
	default:
		slog.Info("auth_event", "event", "login_failed", "email", form.Email, "reason", out.Kind.String(), "status", out.Status)
		return FormResult{Error: out.ErrorText(MsgLoginFailed)}, nil
	}

	if form.Remember {
		for _, e := range []handoff.Entry{
			handoff.NewEntry(input.VisitorID, handoff.KeyRememberMe, "true", now, handoff.TTLDurable),
			handoff.NewEntry(input.VisitorID, handoff.KeyUserEmail, form.Email, now, handoff.TTLDurable),
		} {
			if err := deps.Slots.Put(ctx, e); err != nil {
				return FormResult{}, fmt.Errorf("remember login: %w", err)
			}
		}
	}

	slog.Info("auth_event", "event", "login_success", "email", form.Email, "remember", form.Remember)
	return FormResult{Success: MsgLoginSuccess}, nil
}

package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"animeai/internal/domain/credentials"
	"animeai/internal/domain/outcome"
)

// welcomeTimeout bounds the detached welcome-mail send.
const welcomeTimeout = 15 * time.Second

// SignupBackend creates an account on the backend.
type SignupBackend interface {
	Signup(ctx context.Context, visitorID string, s credentials.Signup) outcome.Outcome
}

// WelcomeSender mails a new account holder.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, name, to string) error
}

// SignupInput carries input for the signup orchestrator.
type SignupInput struct {
	VisitorID string
	Form      credentials.Signup
}

// SignupDeps holds dependencies for Signup. Welcome may be nil.
type SignupDeps struct {
	Backend SignupBackend
	Welcome WelcomeSender
}

// ExecuteSignup runs the local precheck, submits the form and maps the outcome.
// PRE: VisitorID is non-empty
// POST: a short password never reaches the backend; success starts a
// best-effort welcome mail that cannot fail the signup
func ExecuteSignup(ctx context.Context, input SignupInput, deps SignupDeps) (FormResult, error) {
	form := input.Form
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := form.Validate(); err != nil {
		if errors.Is(err, credentials.ErrPasswordTooShort) {
			return FormResult{Error: MsgPasswordTooShort}, nil
		}
		return FormResult{Error: sentence(err.Error())}, nil
	}

	out := deps.Backend.Signup(ctx, input.VisitorID, form)
	switch out.Kind {
	case outcome.KindOK:
	case outcome.KindTransport:
		slog.Warn("auth_event", "event", "signup_failed", "email", form.Email, "reason", "transport", "error", out.Err)
		return FormResult{Error: MsgNetworkError}, nil
	default:
		slog.Info("auth_event", "event", "signup_failed", "email", form.Email, "reason", out.Kind.String(), "status", out.Status)
		return FormResult{Error: out.ErrorText(MsgSignupFailed)}, nil
	}

	slog.Info("auth_event", "event", "signup_success", "email", form.Email)
	if deps.Welcome != nil {
		go sendWelcome(context.WithoutCancel(ctx), deps.Welcome, form.Name, form.Email)
	}
	return FormResult{Success: MsgSignupSuccess}, nil
}

func sendWelcome(ctx context.Context, w WelcomeSender, name, to string) {
	ctx, cancel := context.WithTimeout(ctx, welcomeTimeout)
	defer cancel()
	if err := w.SendWelcome(ctx, name, to); err != nil {
		slog.Warn("welcome_email_failed", "to", to, "error", err)
	}
}

// sentence upper-cases the first letter of a validation message.
func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

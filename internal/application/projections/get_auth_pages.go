package projections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"animeai/internal/domain/credentials"
	"animeai/internal/domain/handoff"
)

// GetAuthPageQuery carries input for the login and signup page projections.
type GetAuthPageQuery struct {
	VisitorID string
}

// GetAuthPageDeps holds dependencies for the login and signup page projections.
type GetAuthPageDeps struct {
	Slots SlotTaker
	Now   func() time.Time
}

// LoginPageView is the data the login page renders on a fresh load.
type LoginPageView struct {
	Notice   string
	Email    string
	Remember bool
}

// SignupPageView is the data the signup page renders on a fresh load.
type SignupPageView struct {
	Notice string
	Hint   credentials.Hint
}

// QueryGetLoginPage consumes the pending redirect reason and applies the
// remember-me prefill.
// PRE: VisitorID is non-empty
// POST: the redirect reason slot is empty afterwards
func QueryGetLoginPage(ctx context.Context, query GetAuthPageQuery, deps GetAuthPageDeps) (LoginPageView, error) {
	now := deps.Now()
	notice, err := takeNotice(ctx, deps.Slots, query.VisitorID, now)
	if err != nil {
		return LoginPageView{}, err
	}
	view := LoginPageView{Notice: notice}

	remember, err := peekValue(ctx, deps.Slots, query.VisitorID, handoff.KeyRememberMe, now)
	if err != nil {
		return LoginPageView{}, err
	}
	if remember != "true" {
		return view, nil
	}
	email, err := peekValue(ctx, deps.Slots, query.VisitorID, handoff.KeyUserEmail, now)
	if err != nil {
		return LoginPageView{}, err
	}
	if email != "" {
		view.Email = email
		view.Remember = true
	}
	return view, nil
}

// QueryGetSignupPage consumes the pending redirect reason.
// PRE: VisitorID is non-empty
// POST: the redirect reason slot is empty afterwards
func QueryGetSignupPage(ctx context.Context, query GetAuthPageQuery, deps GetAuthPageDeps) (SignupPageView, error) {
	notice, err := takeNotice(ctx, deps.Slots, query.VisitorID, deps.Now())
	if err != nil {
		return SignupPageView{}, err
	}
	return SignupPageView{Notice: notice, Hint: credentials.PasswordHint("")}, nil
}

func takeNotice(ctx context.Context, slots SlotTaker, visitorID string, now time.Time) (string, error) {
	e, err := slots.Take(ctx, visitorID, handoff.KeyAuthMessage, now)
	if errors.Is(err, handoff.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("take redirect reason: %w", err)
	}
	return e.Value, nil
}

func peekValue(ctx context.Context, slots SlotReader, visitorID string, key handoff.Key, now time.Time) (string, error) {
	e, err := slots.Peek(ctx, visitorID, key, now)
	if errors.Is(err, handoff.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return e.Value, nil
}

package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"animeai/internal/domain/credentials"
	"animeai/internal/domain/outcome"
)

type mockWelcome struct {
	sent chan string
	err  error
}

// SendWelcome implements WelcomeSender.
func (m *mockWelcome) SendWelcome(_ context.Context, _ string, to string) error {
	m.sent <- to
	return m.err
}

func validSignup() credentials.Signup {
	return credentials.Signup{Name: "Kai", Email: "kai@example.com", Password: "12345678", Gender: "male"}
}

// A short password is rejected locally, counted in characters.
func TestExecuteSignup_ShortPasswordSkipsBackend(t *testing.T) {
	for _, pw := range []string{"1234567", "パスワード12"} {
		b := newMockBackend(outcome.Outcome{Kind: outcome.KindOK})
		form := validSignup()
		form.Password = pw
		res, err := ExecuteSignup(context.Background(), SignupInput{VisitorID: "v1", Form: form}, SignupDeps{Backend: b})
		if err != nil {
			t.Fatal(err)
		}
		if res.Error != MsgPasswordTooShort {
			t.Errorf("%q: Error = %q", pw, res.Error)
		}
		if b.count("signup") != 0 {
			t.Errorf("%q: backend called %d times", pw, b.count("signup"))
		}
	}
}

func TestExecuteSignup_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		reply       outcome.Outcome
		wantSuccess string
		wantError   string
	}{
		{"created with any body", outcome.Outcome{Kind: outcome.KindOK, Status: 201}, MsgSignupSuccess, ""},
		{"duplicate", outcome.Outcome{Kind: outcome.KindRejected, Status: 400, Detail: "Email already registered. Please login instead."}, "", "Email already registered. Please login instead."},
		{"fallback", outcome.Outcome{Kind: outcome.KindRejected, Status: 500}, "", MsgSignupFailed},
		{"network", transportFailure(), "", MsgNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ExecuteSignup(context.Background(), SignupInput{VisitorID: "v1", Form: validSignup()}, SignupDeps{Backend: newMockBackend(tt.reply)})
			if err != nil {
				t.Fatal(err)
			}
			if res.Success != tt.wantSuccess || res.Error != tt.wantError {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestExecuteSignup_WelcomeMailIsBestEffort(t *testing.T) {
	w := &mockWelcome{sent: make(chan string, 1), err: errors.New("provider down")}
	res, err := ExecuteSignup(context.Background(), SignupInput{VisitorID: "v1", Form: validSignup()}, SignupDeps{
		Backend: newMockBackend(outcome.Outcome{Kind: outcome.KindOK, Status: 200}),
		Welcome: w,
	})
	if err != nil || res.Success != MsgSignupSuccess {
		t.Fatalf("result = %+v, err = %v", res, err)
	}
	select {
	case to := <-w.sent:
		if to != "kai@example.com" {
			t.Errorf("welcome sent to %q", to)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("welcome mail was never sent")
	}
}

func TestExecuteSignup_InvalidEmail(t *testing.T) {
	form := validSignup()
	form.Email = "not-an-email"
	res, _ := ExecuteSignup(context.Background(), SignupInput{VisitorID: "v1", Form: form}, SignupDeps{Backend: newMockBackend(outcome.Outcome{})})
	if res.Error != "Email must contain '@'." {
		t.Errorf("Error = %q", res.Error)
	}
}

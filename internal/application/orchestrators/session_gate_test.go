package orchestrators

import (
	"context"
	"errors"
	"testing"

	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

func TestExecuteSessionGate(t *testing.T) {
	tests := []struct {
		name         string
		reply        outcome.Outcome
		wantRedirect string
		wantReason   string
	}{
		{"valid session", outcome.Outcome{Kind: outcome.KindOK, Status: 200}, "", ""},
		{"not signed up", outcome.Outcome{Kind: outcome.KindUnauthenticated, Status: 200, Message: outcome.MessageNotSignedUp}, RouteSignup, handoff.ReasonSignupFirst},
		{"rejected token", outcome.Outcome{Kind: outcome.KindRejected, Status: 401}, RouteLogin, handoff.ReasonLoginToContinue},
		{"backend down", transportFailure(), RouteSignup, handoff.ReasonSignupFirst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := newMockSlots()
			res, err := ExecuteSessionGate(context.Background(), SessionGateInput{VisitorID: "v1"}, SessionGateDeps{
				Backend: newMockBackend(tt.reply),
				Slots:   slots,
				Now:     testNow,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Redirect != tt.wantRedirect {
				t.Errorf("Redirect = %q, want %q", res.Redirect, tt.wantRedirect)
			}
			got, ok := slots.value("v1", handoff.KeyAuthMessage)
			if tt.wantReason == "" {
				if ok {
					t.Errorf("reason written for a valid session: %q", got)
				}
				return
			}
			if got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
			if e := slots.entries[slotID("v1", handoff.KeyAuthMessage)]; !e.ExpiresAt.Equal(testTime.Add(handoff.TTLAuthMessage)) {
				t.Errorf("reason expiry = %v", e.ExpiresAt)
			}
		})
	}
}

func TestExecuteSessionGate_StoreFailure(t *testing.T) {
	slots := newMockSlots()
	slots.putErr = errStore
	_, err := ExecuteSessionGate(context.Background(), SessionGateInput{VisitorID: "v1"}, SessionGateDeps{
		Backend: newMockBackend(outcome.Outcome{Kind: outcome.KindUnauthenticated}),
		Slots:   slots,
		Now:     testNow,
	})
	if !errors.Is(err, errStore) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

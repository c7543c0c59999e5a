package orchestrators

import (
	"context"
	"errors"
	"testing"

	"animeai/internal/domain/handoff"
	"animeai/internal/domain/outcome"
)

func seededSlots(visitorID string) *mockSlots {
	slots := newMockSlots()
	for _, k := range handoff.AllKeys {
		_ = slots.Put(context.Background(), handoff.NewEntry(visitorID, k, "x", testTime, 0))
	}
	return slots
}

// Logout tears everything down and lands on the entry page even when the
// backend call fails.
func TestExecuteLogout_AlwaysClears(t *testing.T) {
	replies := map[string]outcome.Outcome{
		"ok":       {Kind: outcome.KindOK, Status: 200},
		"rejected": {Kind: outcome.KindRejected, Status: 500},
		"network":  transportFailure(),
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			slots := seededSlots("v1")
			_ = slots.Put(context.Background(), handoff.NewEntry("v2", handoff.KeyUserAnime, "[]", testTime, 0))
			cookies := &mockCookies{}
			b := newMockBackend(reply)

			res, err := ExecuteLogout(context.Background(), LogoutInput{VisitorID: "v1"}, LogoutDeps{Backend: b, Slots: slots, Cookies: cookies})
			if err != nil {
				t.Fatal(err)
			}
			if res.Redirect != RouteEntry {
				t.Errorf("Redirect = %q", res.Redirect)
			}
			for _, k := range handoff.AllKeys {
				if _, ok := slots.value("v1", k); ok {
					t.Errorf("slot %s survived logout", k)
				}
			}
			if _, ok := slots.value("v2", handoff.KeyUserAnime); !ok {
				t.Error("another visitor's slot was cleared")
			}
			if len(cookies.cleared) != 1 || b.count("logout") != 1 {
				t.Errorf("cookies cleared %v, backend calls %d", cookies.cleared, b.count("logout"))
			}
		})
	}
}

func TestExecuteLogout_CleanupErrorsKeepRedirect(t *testing.T) {
	slots := seededSlots("v1")
	slots.clearErr = errStore
	cookieErr := errors.New("cookie table locked")
	cookies := &mockCookies{err: cookieErr}

	res, err := ExecuteLogout(context.Background(), LogoutInput{VisitorID: "v1"}, LogoutDeps{
		Backend: newMockBackend(transportFailure()), Slots: slots, Cookies: cookies,
	})
	if res.Redirect != RouteEntry {
		t.Errorf("Redirect = %q", res.Redirect)
	}
	if !errors.Is(err, errStore) || !errors.Is(err, cookieErr) {
		t.Errorf("err = %v, want both cleanup errors", err)
	}
}

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"animeai/internal/adapters/http/perf"
	"animeai/internal/domain/credentials"
	"animeai/internal/domain/outcome"
	"animeai/internal/domain/visitor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memCookies is an in-memory CookieStore.
type memCookies struct {
	mu      sync.Mutex
	byID    map[string][]visitor.BackendCookie
	loadErr error
}

func newMemCookies() *memCookies {
	return &memCookies{byID: map[string][]visitor.BackendCookie{}}
}

func (m *memCookies) LoadCookies(_ context.Context, id string, now time.Time) ([]visitor.BackendCookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []visitor.BackendCookie
	for _, c := range m.byID[id] {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCookies) SaveCookies(_ context.Context, id string, cookies []visitor.BackendCookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = cookies
	return nil
}

// newTestClient starts a backend double and returns a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *memCookies, *perf.Collector) {
	t.Helper()
	srv := httptest.NewServer(handler)
	cookies := newMemCookies()
	collector := perf.NewCollector(100)
	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, cookies, collector)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c, cookies, collector
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestClient_HomeClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   outcome.Kind
	}{
		{"logged in", 200, `"User logged in successfully"`, outcome.KindOK},
		{"not authenticated bare string", 200, `"User not authenticated"`, outcome.KindUnauthenticated},
		{"not signed up object", 200, `{"message":"User not signed up"}`, outcome.KindUnauthenticated},
		{"server error", 500, `{"detail":"boom"}`, outcome.KindRejected},
		{"forbidden", 403, `{}`, outcome.KindRejected},
		{"html error page", 502, `<html>bad gateway</html>`, outcome.KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, reply(tt.status, tt.body))
			got := c.Home(context.Background(), "v1")
			if got.Kind != tt.want {
				t.Errorf("Kind = %v, want %v (err %v)", got.Kind, tt.want, got.Err)
			}
		})
	}
}

func TestClient_LoginClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   outcome.Kind
	}{
		{"success", 200, `{"message":"Login successful"}`, outcome.KindOK},
		{"email not found on 200", 200, `{"message":"Email not found. Please register"}`, outcome.KindNotRegistered},
		{"email not found on 400", 400, `{"message":"Email not found. Please register"}`, outcome.KindNotRegistered},
		{"2xx without success message", 200, `{"message":"Maybe"}`, outcome.KindRejected},
		{"bad password", 401, `{"detail":"Invalid login credentials"}`, outcome.KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, reply(tt.status, tt.body))
			got := c.Login(context.Background(), "v1", credentials.Login{Email: "a@b.c", Password: "x"})
			if got.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestClient_SignupClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   outcome.Kind
	}{
		{"created", 200, `{"message":"Signup successful"}`, outcome.KindOK},
		{"2xx with protocol message", 200, `{"message":"User not authenticated"}`, outcome.KindOK},
		{"2xx with email-not-found message", 201, `{"message":"Email not found. Please register"}`, outcome.KindOK},
		{"already registered", 400, `{"detail":"Email already registered. Please login instead."}`, outcome.KindRejected},
		{"not signed up on 400", 400, `{"message":"User not signed up"}`, outcome.KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, reply(tt.status, tt.body))
			got := c.Signup(context.Background(), "v1", credentials.Signup{Name: "Kai", Email: "a@b.c", Password: "12345678"})
			if got.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestClient_RecommendClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   outcome.Kind
	}{
		{"list", 200, `[{"title":"Naruto"}]`, outcome.KindOK},
		{"not authenticated on 200", 200, `{"message":"User not authenticated"}`, outcome.KindUnauthenticated},
		{"not authenticated on 401", 401, `{"message":"User not authenticated"}`, outcome.KindUnauthenticated},
		{"not signed up stays inline", 400, `{"message":"User not signed up"}`, outcome.KindRejected},
		{"email-not-found on 2xx is stored", 200, `{"message":"Email not found. Please register"}`, outcome.KindOK},
		{"model failure", 500, `{"detail":"model offline"}`, outcome.KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, reply(tt.status, tt.body))
			got := c.Recommend(context.Background(), "v1", "I want anime")
			if got.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestClient_RecordViewUnauthorized(t *testing.T) {
	c, _, _ := newTestClient(t, reply(401, `{"detail":"Not authenticated"}`))
	got := c.RecordView(context.Background(), "v1", "Naruto", "Action")
	if got.Kind != outcome.KindUnauthenticated {
		t.Errorf("Kind = %v, want unauthenticated", got.Kind)
	}
}

func TestClient_SendsJSONBody(t *testing.T) {
	var gotPath, gotType string
	var gotBody map[string]string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `[]`)
	})

	got := c.Recommend(context.Background(), "v1", "Recommend me some good anime")
	if got.Kind != outcome.KindOK {
		t.Fatalf("Kind = %v, err %v", got.Kind, got.Err)
	}
	if gotPath != PathRecommendation || gotType != "application/json" {
		t.Errorf("path=%q type=%q", gotPath, gotType)
	}
	if gotBody["query"] != "Recommend me some good anime" {
		t.Errorf("body = %v", gotBody)
	}
	if string(got.Body) != `[]` {
		t.Errorf("Body = %q, want raw reply", got.Body)
	}
}

func TestClient_SignupBodyFields(t *testing.T) {
	var gotBody map[string]string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"message":"Signup successful"}`)
	})
	c.Signup(context.Background(), "v1", credentials.Signup{Name: "Rin", Email: "rin@example.com", Password: "12345678", Gender: "female"})

	want := map[string]string{"name": "Rin", "email": "rin@example.com", "password": "12345678", "gender": "female"}
	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("signup body mismatch (-want +got):\n%s", diff)
	}
}

// TestClient_CookieRoundTrip verifies a cookie set on login is replayed on the next call
// for the same visitor only.
func TestClient_CookieRoundTrip(t *testing.T) {
	c, cookies, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathLogin:
			http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "tok", MaxAge: 3600, HttpOnly: true})
			io.WriteString(w, `{"message":"Login successful"}`)
		case PathHome:
			if ck, err := r.Cookie("access_token"); err == nil && ck.Value == "tok" {
				io.WriteString(w, `"User logged in successfully"`)
				return
			}
			io.WriteString(w, `"User not authenticated"`)
		}
	})
	ctx := context.Background()

	if got := c.Login(ctx, "v1", credentials.Login{Email: "a@b.c", Password: "x"}); got.Kind != outcome.KindOK {
		t.Fatalf("Login Kind = %v", got.Kind)
	}
	stored, _ := cookies.LoadCookies(ctx, "v1", time.Now())
	if len(stored) != 1 || stored[0].Name != "access_token" || stored[0].ExpiresAt.IsZero() {
		t.Fatalf("stored cookies = %+v", stored)
	}
	if got := c.Home(ctx, "v1"); got.Kind != outcome.KindOK {
		t.Errorf("Home for v1 Kind = %v, want ok", got.Kind)
	}
	if got := c.Home(ctx, "v2"); got.Kind != outcome.KindUnauthenticated {
		t.Errorf("Home for v2 Kind = %v, want unauthenticated", got.Kind)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second}, newMemCookies(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	got := c.Home(context.Background(), "v1")
	if got.Kind != outcome.KindTransport || got.Err == nil {
		t.Errorf("got %+v, want transport failure", got)
	}
}

func TestClient_CookieStoreFailureIsTransport(t *testing.T) {
	c, cookies, _ := newTestClient(t, reply(200, `{}`))
	cookies.loadErr = errors.New("disk gone")
	if got := c.Home(context.Background(), "v1"); got.Kind != outcome.KindTransport {
		t.Errorf("Kind = %v, want transport", got.Kind)
	}
}

func TestClient_RecordsPerf(t *testing.T) {
	c, _, collector := newTestClient(t, reply(200, `"ok"`))
	c.Logout(context.Background(), "v1")

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestBackend) != 1 || snap.SlowestBackend[0].Path != "POST "+PathLogout {
		t.Errorf("SlowestBackend = %+v", snap.SlowestBackend)
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "ftp://x"} {
		if _, err := NewClient(Config{BaseURL: raw}, newMemCookies(), nil); err == nil {
			t.Errorf("NewClient(%q) accepted", raw)
		}
	}
	if _, err := NewClient(Config{BaseURL: "http://x"}, nil, nil); err == nil {
		t.Error("NewClient accepted nil cookie store")
	}
}

func TestMergeCookies(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stored := []visitor.BackendCookie{
		{Name: "access_token", Value: "old"},
		{Name: "pref", Value: "dark"},
	}
	set := []*http.Cookie{
		{Name: "access_token", Value: "new", MaxAge: 60},
		{Name: "pref", MaxAge: -1},
		{Name: "csrftoken", Value: "c", Expires: now.Add(time.Hour)},
		{Name: "gone", Value: "x", Expires: now.Add(-time.Hour)},
	}
	want := []visitor.BackendCookie{
		{Name: "access_token", Value: "new", ExpiresAt: now.Add(time.Minute)},
		{Name: "csrftoken", Value: "c", ExpiresAt: now.Add(time.Hour)},
	}
	if diff := cmp.Diff(want, mergeCookies(stored, set, now)); diff != "" {
		t.Errorf("mergeCookies mismatch (-want +got):\n%s", diff)
	}
}

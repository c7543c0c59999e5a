package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/csrf"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Second)
	rl.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := rl.Allow("10.0.0.1"); got != want {
			t.Errorf("call %d = %v, want %v", i, got, want)
		}
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("second client shares the first client's bucket")
	}

	now = now.Add(1500 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Error("bucket did not refill")
	}

	now = now.Add(10 * time.Minute)
	rl.sweep()
	if len(rl.clients) != 0 {
		t.Errorf("stale buckets kept: %d", len(rl.clients))
	}
}

func TestRateLimit_UsesHostWithoutPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(NewRateLimiter(ctx, 1, time.Hour))(statusHandler(http.StatusOK))

	codes := []int{}
	for _, addr := range []string{"192.0.2.1:1111", "192.0.2.1:2222"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(statusHandler(http.StatusOK)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "img-src 'self' https:") || strings.Contains(csp, "script-src 'self' 'unsafe-inline'") {
		t.Errorf("CSP = %q", csp)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestCSRF_RejectsFormWithoutToken(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	var token string
	h := CSRF(key, false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = csrf.Token(r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Code != http.StatusOK || token == "" {
		t.Fatalf("GET status %d token %q", rr.Code, token)
	}
	cookies := rr.Result().Cookies()

	post := func(form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if code := post(url.Values{"email": {"a@b.c"}}); code != http.StatusForbidden {
		t.Errorf("tokenless POST = %d, want 403", code)
	}
	if code := post(url.Values{"gorilla.csrf.Token": {token}}); code != http.StatusOK {
		t.Errorf("tokened POST = %d, want 200", code)
	}
}

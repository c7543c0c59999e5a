package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	backendclient "animeai/internal/adapters/backend"
	"animeai/internal/adapters/http/perf"
	"animeai/internal/adapters/stubbackend"
	"animeai/internal/domain/handoff"
)

// recordingWelcomer captures welcome mails sent after signup.
type recordingWelcomer struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newRecordingWelcomer() *recordingWelcomer {
	return &recordingWelcomer{done: make(chan struct{}, 4)}
}

func (r *recordingWelcomer) SendWelcome(_ context.Context, _, to string) error {
	r.mu.Lock()
	r.sent = append(r.sent, to)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

// browser is a cookie-keeping client that does not follow redirects and
// remembers the CSRF token of the last page it loaded.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	token  string
}

var csrfFieldRe = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func (b *browser) get(path string) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	if err != nil {
		b.t.Fatalf("GET %s: %v", path, err)
	}
	return b.read(resp)
}

func (b *browser) post(path string, form url.Values) (int, string, string) {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("gorilla.csrf.Token", b.token)
	resp, err := b.client.PostForm(b.base+path, form)
	if err != nil {
		b.t.Fatalf("POST %s: %v", path, err)
	}
	return b.read(resp)
}

func (b *browser) read(resp *http.Response) (int, string, string) {
	b.t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	if m := csrfFieldRe.FindSubmatch(body); m != nil {
		b.token = string(m[1])
	}
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

// newTestApp serves the full middleware chain against the stub backend.
func newTestApp(t *testing.T) (*browser, *Stores, *recordingWelcomer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router, _ := stubbackend.NewRouter([]byte("routes-test-secret"), bcrypt.MinCost)
	stub := httptest.NewServer(router)
	t.Cleanup(stub.Close)

	s, db := openTestStores(t)
	collector := perf.NewCollector(perf.DefaultRingSize)
	client, err := backendclient.NewClient(backendclient.Config{BaseURL: stub.URL, Timeout: 5 * time.Second}, s.Visitors, collector)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(client.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	welcome := newRecordingWelcomer()

	prevNow := timeNow
	t.Cleanup(func() { timeNow = prevNow })
	timeNow = time.Now

	handler := NewMux(s, client, collector, Options{
		CSRFKey:            []byte("0123456789abcdef0123456789abcdef"),
		VisitorKey:         []byte("fedcba9876543210fedcba9876543210"),
		RateLimitPerSecond: 1000,
		Welcome:            welcome,
		DB:                 db,
		Context:            ctx,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &browser{
		t:    t,
		base: srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, s, welcome
}

func TestFlow_SignupSearchSaveLogout(t *testing.T) {
	b, _, welcome := newTestApp(t)

	// Unknown visitor is bounced to signup with a one-shot notice.
	if code, loc, _ := b.get("/home"); code != http.StatusSeeOther || loc != "/signup" {
		t.Fatalf("GET /home = %d %q, want 303 /signup", code, loc)
	}
	if _, _, body := b.get("/signup"); !strings.Contains(body, handoff.ReasonSignupFirst) {
		t.Error("signup page did not show the redirect reason")
	}
	if _, _, body := b.get("/signup"); strings.Contains(body, handoff.ReasonSignupFirst) {
		t.Error("redirect reason shown twice")
	}

	form := url.Values{"name": {"Kai"}, "email": {"kai@example.com"}, "password": {"1234567"}, "gender": {"Male"}}
	if _, _, body := b.post("/signup", form); !strings.Contains(body, "Password must be at least 8 characters long") {
		t.Fatalf("short password accepted: %s", body)
	}
	form.Set("password", "12345678")
	_, _, body := b.post("/signup", form)
	if !strings.Contains(body, "Account created successfully! Redirecting...") || !strings.Contains(body, `content="1;url=/home"`) {
		t.Fatalf("signup did not succeed: %s", body)
	}
	select {
	case <-welcome.done:
	case <-time.After(2 * time.Second):
		t.Error("welcome mail not sent")
	}

	if code, _, body := b.get("/home"); code != http.StatusOK || !strings.Contains(body, "Your list is empty.") {
		t.Fatalf("GET /home after signup = %d", code)
	}

	_, _, body = b.get("/search?genre=Action&genre=Bogus")
	if !strings.Contains(body, "1 selected") || strings.Contains(body, "Bogus") {
		t.Errorf("chip state wrong: %s", body)
	}

	// A chip followed after typing arrives with the typed fields, which are
	// shown again and carried by every other chip.
	_, _, body = b.get("/search?genre=Action&title=Naruto&episodes=220")
	if !strings.Contains(body, `id="title" name="title" type="text" value="Naruto"`) || !strings.Contains(body, `value="220"`) {
		t.Errorf("typed fields lost across a chip toggle: %s", body)
	}
	if !strings.Contains(body, "genre=Drama&amp;title=Naruto") {
		t.Errorf("chip links dropped the title: %s", body)
	}

	code, loc, _ := b.post("/search", url.Values{"title": {"Naruto"}, "genre": {"Action"}, "episodes": {"220"}})
	if code != http.StatusSeeOther || loc != "/results" {
		t.Fatalf("POST /search = %d %q", code, loc)
	}
	_, _, body = b.get("/results")
	if !strings.Contains(body, "Naruto") {
		t.Fatalf("results missing Naruto: %s", body)
	}

	code, loc, _ = b.post("/results/save", url.Values{"title": {"Naruto"}, "genre": {"Action"}})
	if code != http.StatusSeeOther || loc != "/results?saved=Naruto" {
		t.Fatalf("POST /results/save = %d %q", code, loc)
	}
	if _, _, body := b.get("/home"); !strings.Contains(body, "Naruto") {
		t.Error("saved anime missing from the dashboard")
	}

	if code, loc, _ := b.post("/logout", nil); code != http.StatusSeeOther || loc != "/" {
		t.Fatalf("POST /logout = %d %q", code, loc)
	}
	if code, loc, _ := b.get("/home"); code != http.StatusSeeOther || loc != "/signup" {
		t.Errorf("GET /home after logout = %d %q", code, loc)
	}
	if _, _, body := b.get("/results"); !strings.Contains(body, "Please search for anime first.") {
		t.Error("recommendations survived logout")
	}
}

func TestFlow_LoginRememberMe(t *testing.T) {
	b, _, _ := newTestApp(t)

	b.get("/login")
	code, loc, _ := b.post("/login", url.Values{"email": {"ghost@example.com"}, "password": {"12345678"}})
	if code != http.StatusSeeOther || loc != "/signup" {
		t.Fatalf("unregistered login = %d %q, want 303 /signup", code, loc)
	}

	b.get("/signup")
	b.post("/signup", url.Values{"name": {"Rin"}, "email": {"rin@example.com"}, "password": {"12345678"}, "gender": {"Female"}})
	b.post("/logout", nil)

	b.get("/login")
	if _, _, body := b.post("/login", url.Values{"email": {"rin@example.com"}, "password": {"wrong-pass"}}); !strings.Contains(body, "message error") {
		t.Errorf("wrong password showed no error: %s", body)
	}
	_, _, body := b.post("/login", url.Values{"email": {" rin@example.com "}, "password": {"12345678"}, "remember": {"on"}})
	if !strings.Contains(body, "Login successful! Redirecting...") {
		t.Fatalf("login failed: %s", body)
	}

	_, _, body = b.get("/login")
	if !strings.Contains(body, `value="rin@example.com"`) || !strings.Contains(body, "checked") {
		t.Errorf("remember-me prefill missing: %s", body)
	}
}

func TestMiddleware_Wiring(t *testing.T) {
	b, _, _ := newTestApp(t)

	resp, err := b.client.PostForm(b.base+"/login", url.Values{"email": {"a@b.c"}, "password": {"x"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("POST without CSRF token = %d, want 403", resp.StatusCode)
	}

	resp, err = b.client.Get(b.base + "/static/app.js")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("static asset = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}

	if code, _, _ := b.get("/healthz"); code != http.StatusOK {
		t.Errorf("healthz = %d", code)
	}
	if code, _, body := b.get("/readyz"); code != http.StatusOK {
		t.Errorf("readyz = %d %s", code, body)
	}
	if code, _, body := b.get("/debug/perf"); code != http.StatusOK || !strings.Contains(body, "TotalRecorded") {
		t.Errorf("debug/perf = %d %s", code, body)
	}
}

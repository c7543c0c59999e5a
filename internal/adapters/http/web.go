package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"animeai/internal/adapters/http/middleware"
	"animeai/internal/adapters/http/perf"
	handoffStore "animeai/internal/adapters/storage/handoff"
	visitorStore "animeai/internal/adapters/storage/visitor"
	"animeai/internal/application/orchestrators"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Stores holds all storage dependencies.
type Stores struct {
	Handoff  handoffStore.Store
	Visitors visitorStore.Store
}

// Backend is everything the pages ask of the recommendation service.
type Backend interface {
	orchestrators.HomeChecker
	orchestrators.LoginBackend
	orchestrators.SignupBackend
	orchestrators.Recommender
	orchestrators.LogoutBackend
	orchestrators.ViewRecorder
	Ping(ctx context.Context) error
}

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures NewMux.
type Options struct {
	Production         bool
	CSRFKey            []byte
	VisitorKey         []byte
	TrustedOrigins     []string
	RateLimitPerSecond int
	SlowRequest        time.Duration
	Welcome            orchestrators.WelcomeSender // nil disables the welcome mail
	DB                 Pinger
	// Context bounds the rate limiter's cleanup goroutine. Nil means it never stops.
	Context context.Context
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global backend client (set by NewMux)
var backend Backend

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Global welcome mail sender (set by NewMux)
var welcomer orchestrators.WelcomeSender

// Global database pinger for readiness (set by NewMux)
var dbPinger Pinger

// production hides operator-only routes.
var production bool

// NewMux wires HTTP handlers for the app.
func NewMux(s *Stores, b Backend, collector *perf.Collector, opts Options) http.Handler {
	stores = s
	backend = b
	perfCollector = collector
	welcomer = opts.Welcome
	dbPinger = opts.DB
	production = opts.Production

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	rate := opts.RateLimitPerSecond
	if rate <= 0 {
		rate = 20
	}
	slow := opts.SlowRequest
	if slow <= 0 {
		slow = middleware.DefaultSlowRequest
	}

	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	registerRoutes(mux)

	tokens := middleware.NewVisitorTokens(opts.VisitorKey)
	limiter := middleware.NewRateLimiter(ctx, rate, time.Second)

	// Timing -> RateLimit -> Visitor -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.Production, opts.TrustedOrigins),
		middleware.Visitor(tokens, s.Visitors, opts.Production),
		middleware.RateLimit(limiter),
		middleware.Timing(collector, slow),
	)
}

// registerRoutes maps every page and operations endpoint.
func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", handleEntry)
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/signup", handleSignup)
	mux.HandleFunc("/signup/password-hint", handlePasswordHint)
	mux.HandleFunc("/home", handleHome)
	mux.HandleFunc("/search", handleSearch)
	mux.HandleFunc("/results", handleResults)
	mux.HandleFunc("/results/save", handleSaveAnime)
	mux.HandleFunc("/logout", handleLogout)
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz)
	mux.HandleFunc("/debug/perf", handlePerf)
}

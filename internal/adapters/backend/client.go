// Package backend is the HTTP client for the external recommendation service.
// Every reply is classified into an outcome.Outcome here, so callers branch on
// a Kind rather than on free-text messages.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"animeai/internal/adapters/http/perf"
	"animeai/internal/domain/credentials"
	"animeai/internal/domain/outcome"
	"animeai/internal/domain/visitor"
)

// Backend endpoint paths.
const (
	PathHome           = "/api/users/home"
	PathLogin          = "/api/users/login"
	PathSignup         = "/api/users/signup"
	PathLogout         = "/api/users/logout"
	PathRecommendation = "/api/anime/recommendation"
	PathGetAnime       = "/api/anime/getAnime"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 30 * time.Second

// maxReplyBytes caps how much of a reply body is read.
const maxReplyBytes = 4 << 20

// CookieStore persists the backend cookies held for each visitor.
type CookieStore interface {
	LoadCookies(ctx context.Context, id string, now time.Time) ([]visitor.BackendCookie, error)
	SaveCookies(ctx context.Context, id string, cookies []visitor.BackendCookie) error
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper // nil clones http.DefaultTransport
}

// Client calls the recommendation backend on behalf of one visitor at a time.
// It replays and records the backend's cookies through CookieStore, so the
// backend session survives across page loads without reaching the browser.
type Client struct {
	base      *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	cookies   CookieStore
	collector *perf.Collector
	now       func() time.Time
}

// NewClient builds a Client.
// PRE: cfg.BaseURL is an absolute http(s) URL; cookies is non-nil
// POST: returns a ready client; collector may be nil
func NewClient(cfg Config, cookies CookieStore, collector *perf.Collector) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute http(s), got %q", cfg.BaseURL)
	}
	if cookies == nil {
		return nil, errors.New("backend client needs a cookie store")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &Client{
		base:      base,
		timeout:   timeout,
		transport: transport,
		cookies:   cookies,
		collector: collector,
		now:       time.Now,
	}, nil
}

// Close releases idle connections held by the client's transport.
func (c *Client) Close() {
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// BaseURL returns the backend origin the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Home probes the backend session.
// POST: Unauthenticated for the not-authenticated or not-signed-up messages,
// Rejected for any other non-2xx, OK otherwise
func (c *Client) Home(ctx context.Context, visitorID string) outcome.Outcome {
	return c.call(ctx, visitorID, http.MethodGet, PathHome, nil, classifyDefault)
}

// Login submits credentials.
// POST: NotRegistered whenever the email-not-found message is present, OK only
// for a 2xx carrying the login-successful message, Rejected otherwise
func (c *Client) Login(ctx context.Context, visitorID string, l credentials.Login) outcome.Outcome {
	return c.call(ctx, visitorID, http.MethodPost, PathLogin, l, classifyLogin)
}

// Signup creates an account.
// POST: OK for any 2xx reply
func (c *Client) Signup(ctx context.Context, visitorID string, s credentials.Signup) outcome.Outcome {
	return c.call(ctx, visitorID, http.MethodPost, PathSignup, s, classifySignup)
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context, visitorID string) outcome.Outcome {
	return c.call(ctx, visitorID, http.MethodPost, PathLogout, struct{}{}, classifyDefault)
}

// Recommend asks for recommendations. On OK the raw reply is in Body.
func (c *Client) Recommend(ctx context.Context, visitorID, query string) outcome.Outcome {
	body := struct {
		Query string `json:"query"`
	}{Query: query}
	return c.call(ctx, visitorID, http.MethodPost, PathRecommendation, body, classifyRecommend)
}

// RecordView reports that the visitor picked a title.
// POST: a 401 is Unauthenticated as well as the not-authenticated message
func (c *Client) RecordView(ctx context.Context, visitorID, title, genre string) outcome.Outcome {
	body := struct {
		Title string `json:"title"`
		Genre string `json:"genre"`
	}{Title: title, Genre: genre}
	return c.call(ctx, visitorID, http.MethodPost, PathGetAnime, body, classifyRecordView)
}

// Ping checks that the backend answers HTTP at all. Any status counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath(PathHome).String(), nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Transport: c.transport}).Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type classifier func(status int, reply outcome.Reply) outcome.Kind

func classifyDefault(status int, reply outcome.Reply) outcome.Kind {
	switch {
	case reply.Message == outcome.MessageEmailNotFound:
		return outcome.KindNotRegistered
	case reply.Message == outcome.MessageNotAuthenticated, reply.Message == outcome.MessageNotSignedUp:
		return outcome.KindUnauthenticated
	case status >= 200 && status < 300:
		return outcome.KindOK
	default:
		return outcome.KindRejected
	}
}

func classifyLogin(status int, reply outcome.Reply) outcome.Kind {
	kind := classifyDefault(status, reply)
	if kind == outcome.KindOK && reply.Message != outcome.MessageLoginSuccessful {
		return outcome.KindRejected
	}
	return kind
}

// classifySignup trusts the status alone: any 2xx creates the account,
// whatever the body says.
func classifySignup(status int, _ outcome.Reply) outcome.Kind {
	return statusKind(status)
}

// classifyRecommend redirects only on the not-authenticated message. Every
// other failure, "User not signed up" included, is shown inline.
func classifyRecommend(status int, reply outcome.Reply) outcome.Kind {
	if reply.Message == outcome.MessageNotAuthenticated {
		return outcome.KindUnauthenticated
	}
	return statusKind(status)
}

func statusKind(status int) outcome.Kind {
	if status >= 200 && status < 300 {
		return outcome.KindOK
	}
	return outcome.KindRejected
}

func classifyRecordView(status int, reply outcome.Reply) outcome.Kind {
	if status == http.StatusUnauthorized {
		return outcome.KindUnauthenticated
	}
	return classifyDefault(status, reply)
}

// call performs one request and classifies the reply. It never returns an
// error: failures become a KindTransport outcome carrying Err.
func (c *Client) call(ctx context.Context, visitorID, method, path string, payload any, classify classifier) outcome.Outcome {
	start := time.Now()
	out := c.do(ctx, visitorID, method, path, payload, classify)
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	attrs := []any{"method", method, "path", path, "status", out.Status, "kind", out.Kind.String(), "duration_ms", durationMs}
	if out.Err != nil {
		slog.Warn("backend_call", append(attrs, "error", out.Err.Error())...)
	} else {
		slog.Info("backend_call", attrs...)
	}
	if c.collector != nil {
		c.collector.Record(perf.Entry{
			Kind:       perf.KindBackend,
			Path:       method + " " + path,
			StatusCode: out.Status,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
	return out
}

func (c *Client) do(ctx context.Context, visitorID, method, path string, payload any, classify classifier) outcome.Outcome {
	transportFailure := func(status int, err error) outcome.Outcome {
		return outcome.Outcome{Kind: outcome.KindTransport, Status: status, Err: err}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return transportFailure(0, fmt.Errorf("marshal request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return transportFailure(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	now := c.now()
	stored, err := c.cookies.LoadCookies(ctx, visitorID, now)
	if err != nil {
		return transportFailure(0, fmt.Errorf("load backend cookies: %w", err))
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return transportFailure(0, fmt.Errorf("cookie jar: %w", err))
	}
	jar.SetCookies(c.base, toHTTPCookies(stored))

	client := &http.Client{Transport: c.transport, Jar: jar, Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return transportFailure(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return transportFailure(resp.StatusCode, fmt.Errorf("read reply: %w", err))
	}

	if set := resp.Cookies(); len(set) > 0 {
		merged := mergeCookies(stored, set, now)
		if err := c.cookies.SaveCookies(ctx, visitorID, merged); err != nil {
			slog.Error("backend_cookie_save_failed", "visitor", visitorID, "error", err.Error())
		}
	}

	reply, err := outcome.DecodeReply(body)
	if err != nil {
		return transportFailure(resp.StatusCode, fmt.Errorf("decode reply (status %d): %w", resp.StatusCode, err))
	}
	return outcome.Outcome{
		Kind:    classify(resp.StatusCode, reply),
		Status:  resp.StatusCode,
		Message: reply.Message,
		Detail:  reply.Detail,
		Body:    body,
	}
}

func toHTTPCookies(stored []visitor.BackendCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Expires: c.ExpiresAt})
	}
	return out
}

// mergeCookies applies Set-Cookie headers to the stored set. A cookie with a
// negative Max-Age, a past Expires, or an empty value is removed.
// POST: result is sorted by name
func mergeCookies(stored []visitor.BackendCookie, set []*http.Cookie, now time.Time) []visitor.BackendCookie {
	byName := make(map[string]visitor.BackendCookie, len(stored)+len(set))
	for _, c := range stored {
		byName[c.Name] = c
	}
	for _, h := range set {
		if h.Name == "" {
			continue
		}
		expired := h.MaxAge < 0 || h.Value == "" || (!h.Expires.IsZero() && !h.Expires.After(now))
		if expired {
			delete(byName, h.Name)
			continue
		}
		bc := visitor.BackendCookie{Name: h.Name, Value: h.Value}
		switch {
		case h.MaxAge > 0:
			bc.ExpiresAt = now.Add(time.Duration(h.MaxAge) * time.Second)
		case !h.Expires.IsZero():
			bc.ExpiresAt = h.Expires
		}
		if len(bc.Value) > visitor.MaxCookieBytes {
			slog.Warn("backend_cookie_dropped", "name", h.Name, "bytes", len(bc.Value))
			continue
		}
		byName[h.Name] = bc
	}

	out := make([]visitor.BackendCookie, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

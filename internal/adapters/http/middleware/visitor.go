package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domain "animeai/internal/domain/visitor"
)

// VisitorCookieName carries the signed visitor token.
const VisitorCookieName = "animeai_visitor"

// visitorRefreshAfter is how old a token may get before it is reissued.
const visitorRefreshAfter = 24 * time.Hour

const visitorIssuer = "animeai"

// contextKey is an unexported type for context keys in this package.
type contextKey string

const visitorContextKey contextKey = "visitor"

// ErrInvalidVisitorToken is returned for tokens that fail verification.
var ErrInvalidVisitorToken = errors.New("invalid visitor token")

// VisitorTokens signs and verifies visitor tokens.
type VisitorTokens struct {
	Key []byte
	TTL time.Duration
	Now func() time.Time
}

// NewVisitorTokens creates a signer with the idle timeout as token lifetime.
// PRE: key is non-empty
func NewVisitorTokens(key []byte) *VisitorTokens {
	return &VisitorTokens{Key: key, TTL: domain.IdleTimeout, Now: time.Now}
}

// Issue signs a token for visitorID.
// PRE: visitorID is non-empty
// POST: returns a compact HS256 JWT expiring after TTL
func (vt *VisitorTokens) Issue(visitorID string) (string, error) {
	now := vt.Now()
	claims := jwt.RegisteredClaims{
		Subject:   visitorID,
		Issuer:    visitorIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(vt.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(vt.Key)
	if err != nil {
		return "", fmt.Errorf("sign visitor token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its claims.
// PRE: none
// POST: returns ErrInvalidVisitorToken unless the token is unexpired, HS256 and ours
func (vt *VisitorTokens) Verify(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return vt.Key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(visitorIssuer),
		jwt.WithTimeFunc(vt.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVisitorToken, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a visitor id", ErrInvalidVisitorToken)
	}
	return claims, nil
}

// VisitorToucher records visitor activity.
type VisitorToucher interface {
	Touch(ctx context.Context, id string, now time.Time) error
}

// Visitor returns middleware that attaches an anonymous visitor id to every
// page request, issuing a new one when the cookie is missing or invalid.
// Tokens are reissued once a day, which also marks the visitor as active.
// Static assets and health probes pass through untouched.
func Visitor(tokens *VisitorTokens, visitors VisitorToucher, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipVisitor(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id, fresh := "", true
			if c, err := r.Cookie(VisitorCookieName); err == nil && c.Value != "" {
				if claims, err := tokens.Verify(c.Value); err == nil {
					id = claims.Subject
					fresh = tokens.Now().Sub(claims.IssuedAt.Time) > visitorRefreshAfter
				} else {
					slog.Debug("visitor_token_rejected", "error", err)
				}
			}
			if id == "" {
				id = uuid.New().String()
			}

			if fresh {
				signed, err := tokens.Issue(id)
				if err != nil {
					slog.Error("internal_error", "error", err.Error())
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				setVisitorCookie(w, signed, tokens.TTL, secure)
				if err := visitors.Touch(r.Context(), id, tokens.Now()); err != nil {
					slog.Warn("visitor_touch_failed", "visitor", id, "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithVisitor(r.Context(), id)))
		})
	}
}

func skipVisitor(path string) bool {
	return strings.HasPrefix(path, "/static/") || path == "/healthz" || path == "/readyz"
}

func setVisitorCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

// VisitorFromContext returns the visitor id set by Visitor.
func VisitorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorContextKey).(string)
	return id, ok && id != ""
}

// ContextWithVisitor returns a context carrying visitorID.
func ContextWithVisitor(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorContextKey, visitorID)
}

// Package config loads the server settings from an optional YAML file and
// ANIMEAI_* environment variables.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// SecretBytes is the decoded length of the master secret.
const SecretBytes = 32

// Key purposes passed to DeriveKey.
const (
	PurposeCSRF    = "csrf"
	PurposeVisitor = "visitor-token"
	PurposeStub    = "stub-backend"
)

// Configuration errors
var (
	ErrInvalidSecret  = errors.New("secret must be 64 hex characters")
	ErrMissingSecret  = errors.New("secret is required in production")
	ErrInvalidBackend = errors.New("backend.base_url must be an absolute http(s) URL")
	ErrInvalidTimeout = errors.New("backend.timeout must be a positive duration")
	ErrInvalidRate    = errors.New("rate_limit_per_second must be positive")
	ErrEmptyAddr      = errors.New("addr cannot be empty")
)

// Config holds every server setting.
type Config struct {
	Addr               string        `yaml:"addr"`
	Env                string        `yaml:"env"`
	DatabasePath       string        `yaml:"database_path"`
	Backend            BackendConfig `yaml:"backend"`
	Secret             string        `yaml:"secret"`
	Email              EmailConfig   `yaml:"email"`
	Stub               StubConfig    `yaml:"stub"`
	SiteURL            string        `yaml:"site_url"`
	RateLimitPerSecond int           `yaml:"rate_limit_per_second"`
	SlowRequestMs      int           `yaml:"slow_request_ms"`
	TrustedOrigins     []string      `yaml:"trusted_origins"`

	master []byte
}

// BackendConfig locates the recommendation service.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// EmailConfig configures the welcome mail.
type EmailConfig struct {
	ResendKey string `yaml:"resend_key"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
}

// StubConfig controls the in-process stub backend.
type StubConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns the development defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		Env:          EnvDevelopment,
		DatabasePath: "animeai.db",
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "30s",
		},
		Email: EmailConfig{
			From:    "AnimeAI <noreply@animeai.local>",
			ReplyTo: "support@animeai.local",
		},
		Stub: StubConfig{
			Addr: "127.0.0.1:8000",
		},
		SiteURL:            "http://localhost:8080",
		RateLimitPerSecond: 20,
		SlowRequestMs:      200,
		TrustedOrigins:     []string{"localhost:8080", "127.0.0.1:8080"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file yields the defaults.
// PRE: none
// POST: returns a config that has not yet been validated
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies ANIMEAI_* variables over the current values.
func (c *Config) applyEnvOverrides() {
	c.Addr = envOrDefault("ANIMEAI_ADDR", c.Addr)
	c.Env = envOrDefault("ANIMEAI_ENV", c.Env)
	c.DatabasePath = envOrDefault("ANIMEAI_DB", c.DatabasePath)
	c.Backend.BaseURL = envOrDefault("ANIMEAI_BACKEND_URL", c.Backend.BaseURL)
	c.Backend.Timeout = envOrDefault("ANIMEAI_BACKEND_TIMEOUT", c.Backend.Timeout)
	c.Secret = envOrDefault("ANIMEAI_SECRET", c.Secret)
	c.Email.ResendKey = envOrDefault("ANIMEAI_RESEND_KEY", c.Email.ResendKey)
	c.Email.From = envOrDefault("ANIMEAI_RESEND_FROM", c.Email.From)
	c.Email.ReplyTo = envOrDefault("ANIMEAI_REPLY_TO", c.Email.ReplyTo)
	c.Stub.Addr = envOrDefault("ANIMEAI_STUB_ADDR", c.Stub.Addr)
	c.SiteURL = envOrDefault("ANIMEAI_SITE_URL", c.SiteURL)

	if v := os.Getenv("ANIMEAI_STUB"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Stub.Enabled = b
		}
	}
	if v := os.Getenv("ANIMEAI_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitPerSecond = n
		}
	}
	if v := os.Getenv("ANIMEAI_SLOW_REQUEST_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SlowRequestMs = n
		}
	}
	if v := os.Getenv("ANIMEAI_TRUSTED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.TrustedOrigins = origins
	}
}

// Validate checks the settings and prepares the master secret. Outside
// production an empty secret is replaced by a random one, so visitor cookies
// do not survive a restart.
// PRE: none
// POST: on nil, DeriveKey is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return ErrEmptyAddr
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBackend
	}
	if d, err := time.ParseDuration(c.Backend.Timeout); err != nil || d <= 0 {
		return ErrInvalidTimeout
	}
	if c.RateLimitPerSecond <= 0 {
		return ErrInvalidRate
	}

	switch {
	case c.Secret != "":
		key, err := hex.DecodeString(c.Secret)
		if err != nil || len(key) != SecretBytes {
			return ErrInvalidSecret
		}
		c.master = key
	case c.IsProduction():
		return ErrMissingSecret
	default:
		key := make([]byte, SecretBytes)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		c.master = key
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// BackendTimeout returns the backend call timeout.
func (c *Config) BackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SlowRequestThreshold returns the slow-request log threshold.
func (c *Config) SlowRequestThreshold() time.Duration {
	return time.Duration(c.SlowRequestMs) * time.Millisecond
}

// DeriveKey returns a 32-byte key for purpose, derived from the master secret
// with HKDF-SHA256. Distinct purposes yield independent keys.
// PRE: Validate returned nil
// POST: returns the same key for the same secret and purpose
func (c *Config) DeriveKey(purpose string) ([]byte, error) {
	if len(c.master) != SecretBytes {
		return nil, ErrInvalidSecret
	}
	key := make([]byte, SecretBytes)
	r := hkdf.New(sha256.New, c.master, []byte("animeai"), []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

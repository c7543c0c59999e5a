package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// NoopSender logs mails without delivering them. It is used when no provider
// key is configured, and keeps what it saw for inspection.
type NoopSender struct {
	mu   sync.Mutex
	sent []Mail
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Deliver records the mail and logs it.
// POST: Delivered() includes m; the id is "noop-<n>"
func (s *NoopSender) Deliver(_ context.Context, m Mail) (string, error) {
	if m.To == "" {
		return "", ErrNoRecipient
	}
	s.mu.Lock()
	s.sent = append(s.sent, m)
	n := len(s.sent)
	s.mu.Unlock()

	slog.Info("email_skipped", "provider", "noop", "to", maskAddress(m.To), "category", m.Category)
	return fmt.Sprintf("noop-%d", n), nil
}

// Delivered returns a copy of every mail seen so far.
func (s *NoopSender) Delivered() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

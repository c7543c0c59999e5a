package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender with the given API key and from address.
// PRE: apiKey is a Resend API key; from is a valid sender address
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Deliver sends m via Resend.
// PRE: m.To is set
// POST: the mail is queued; returns the Resend message id
func (s *ResendSender) Deliver(ctx context.Context, m Mail) (string, error) {
	if m.To == "" {
		return "", ErrNoRecipient
	}
	sent, err := s.client.Emails.SendWithContext(ctx, s.request(m))
	if err != nil {
		slog.Warn("email_failed", "provider", "resend", "to", maskAddress(m.To), "category", m.Category, "error", err)
		return "", fmt.Errorf("resend: %w", err)
	}
	slog.Info("email_sent", "provider", "resend", "message_id", sent.Id, "to", maskAddress(m.To), "category", m.Category)
	return sent.Id, nil
}

func (s *ResendSender) request(m Mail) *resend.SendEmailRequest {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{m.To},
		Subject: m.Subject,
		Html:    m.HTML,
		Text:    m.Text,
		ReplyTo: m.ReplyTo,
	}
	if m.Category != "" {
		req.Tags = []resend.Tag{{Name: "category", Value: string(m.Category)}}
	}
	return req
}

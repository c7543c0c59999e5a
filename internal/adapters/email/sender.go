// Package email delivers the welcome mail sent after signup.
package email

import (
	"context"
	"errors"
	"strings"
)

// ErrNoRecipient is returned when a mail has no To address.
var ErrNoRecipient = errors.New("email has no recipient")

// Category tags a mail so the provider dashboard can group sends.
type Category string

// CategoryWelcome marks the signup welcome mail.
const CategoryWelcome Category = "welcome"

// Mail is one message to one account holder.
type Mail struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	ReplyTo  string
	Category Category
}

// Sender delivers a Mail and returns the provider's message id.
type Sender interface {
	Deliver(ctx context.Context, m Mail) (string, error)
}

// maskAddress keeps logs free of full addresses: "kai@example.com" -> "k***@example.com".
func maskAddress(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

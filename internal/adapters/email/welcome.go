package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	textTemplate "text/template"
)

// WelcomeSubject is the subject line of the signup welcome mail.
const WelcomeSubject = "Welcome to AnimeAI"

type welcomeData struct {
	Name      string
	SearchURL string
}

var welcomeHTML = template.Must(template.New("welcome").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h1>Welcome{{if .Name}}, {{.Name}}{{end}}!</h1>
<p>Your AnimeAI account is ready. Describe what you feel like watching and we will find it.</p>
{{if .SearchURL}}<p><a href="{{.SearchURL}}">Start searching</a></p>{{end}}
</body></html>`))

var welcomeText = textTemplate.Must(textTemplate.New("welcome").Parse(`Welcome{{if .Name}}, {{.Name}}{{end}}!

Your AnimeAI account is ready. Describe what you feel like watching and we will find it.
{{if .SearchURL}}
Start searching: {{.SearchURL}}
{{end}}`))

// Welcomer composes and sends the welcome mail.
type Welcomer struct {
	Sender  Sender
	ReplyTo string
	SiteURL string
}

// SendWelcome mails the new account holder.
// PRE: to is a non-empty address
// POST: returns the provider error, if any
func (w *Welcomer) SendWelcome(ctx context.Context, name, to string) error {
	m, err := w.Compose(name, to)
	if err != nil {
		return err
	}
	if _, err := w.Sender.Deliver(ctx, m); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

// Compose renders the welcome mail without sending it.
func (w *Welcomer) Compose(name, to string) (Mail, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return Mail{}, ErrNoRecipient
	}
	data := welcomeData{Name: strings.TrimSpace(name)}
	if site := strings.TrimRight(w.SiteURL, "/"); site != "" {
		data.SearchURL = site + "/search"
	}

	var html, text bytes.Buffer
	if err := welcomeHTML.Execute(&html, data); err != nil {
		return Mail{}, fmt.Errorf("render welcome html: %w", err)
	}
	if err := welcomeText.Execute(&text, data); err != nil {
		return Mail{}, fmt.Errorf("render welcome text: %w", err)
	}
	return Mail{
		To:       to,
		Subject:  WelcomeSubject,
		HTML:     html.String(),
		Text:     text.String(),
		ReplyTo:  w.ReplyTo,
		Category: CategoryWelcome,
	}, nil
}

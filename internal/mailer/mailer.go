// internal/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"regexp"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer attempts delivery of one email and reports the provider message id.
// Implementations must honor context cancellation so a hung transport cannot
// stall a worker.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Options selects and configures a transport.
type Options struct {
	Driver       string // smtp, resend or console
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	ResendAPIKey string
	From         string
}

func New(opts Options) (Mailer, error) {
	switch opts.Driver {
	case "smtp":
		return NewSMTP(opts.SMTPHost, opts.SMTPPort, opts.SMTPUser, opts.SMTPPass, opts.From), nil
	case "resend":
		if opts.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY not configured")
		}
		return NewResend(opts.ResendAPIKey, opts.From), nil
	case "console":
		return Console{}, nil
	}
	return nil, fmt.Errorf("unknown mail driver %q", opts.Driver)
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags produces the plain-text alternative from an HTML body.
func stripTags(html string) string {
	return tagPattern.ReplaceAllString(html, "")
}

// internal/mailer/resend.go
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Resend delivers through the Resend HTTP API, for deployments where outbound
// SMTP ports are blocked.
type Resend struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from}
}

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    stripTags(msg.HTML),
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send to %s: %w", msg.To, err)
	}
	return sent.Id, nil
}

// internal/mailer/smtp.go
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-gomail/gomail"
	"github.com/google/uuid"
)

// SMTP delivers through a plain SMTP relay. Port 465 uses implicit SSL,
// anything else negotiates STARTTLS.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, user, pass, from string) *SMTP {
	d := gomail.NewDialer(host, port, user, pass)
	d.SSL = port == 465
	if !d.SSL {
		d.TLSConfig = &tls.Config{ServerName: host}
	}
	return &SMTP{dialer: d, from: from}
}

func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", stripTags(msg.HTML))
	m.AddAlternative("text/html", msg.HTML)

	// gomail has no context support; run the dial+send in a goroutine and
	// abandon it when the deadline fires. The abandoned connection times out
	// on its own.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return fmt.Sprintf("<%s@%s>", uuid.NewString(), s.dialer.Host), nil
	case <-ctx.Done():
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

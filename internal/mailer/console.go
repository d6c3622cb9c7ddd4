// internal/mailer/console.go
package mailer

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Console logs instead of sending. Development default.
type Console struct{}

func (Console) Send(ctx context.Context, msg Message) (string, error) {
	log.Printf("console mail to %s: %s", msg.To, msg.Subject)
	return "console-" + uuid.NewString(), nil
}

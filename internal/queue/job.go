// internal/queue/job.go
package queue

import (
	"fmt"
	"strings"
	"time"
)

// Job states. A job is waiting until a consumer claims it and active while in
// flight. Completed and failed are terminal. A transiently failed job parks as
// delayed until its next attempt is due.
const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateDelayed   = "delayed"
)

// Payload is the wire format of one send job.
type Payload struct {
	CampaignID     int    `json:"campaignId"`
	SubscriberID   int    `json:"subscriberId"`
	Email          string `json:"email"`
	Subject        string `json:"subject"`
	HTML           string `json:"html"`
	SubscriberName string `json:"subscriberName,omitempty"`
}

type Job struct {
	Token       string
	Name        string
	Payload     Payload
	State       string
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LastError   string
	Result      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobName derives the deterministic per-recipient name, so duplicate dispatch
// attempts for the same recipient collapse onto one logical job.
func JobName(campaignID int, email string) string {
	return fmt.Sprintf("mail:%d:%s", campaignID, strings.ToLower(strings.TrimSpace(email)))
}

// internal/model/campaign_subscriber.go
package model

import "time"

// CampaignSubscriber is the delivery ledger row. It is the single source of
// truth for "has this recipient received this campaign" - queue state is
// transient and may be purged, the ledger is not.
type CampaignSubscriber struct {
	CampaignID   int        `db:"campaign_id" json:"campaign_id"`
	SubscriberID int        `db:"subscriber_id" json:"subscriber_id"`
	Sent         bool       `db:"sent" json:"sent"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// Recipient is an unsent ledger row joined with its subscriber contact fields,
// ready to be turned into a send job.
type Recipient struct {
	SubscriberID int
	Email        string
	Name         string
}

// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle: draft until first dispatch, sending while jobs are in
// flight, sent once every linked recipient is delivered.
const (
	CampaignStatusDraft   = "draft"
	CampaignStatusSending = "sending"
	CampaignStatusSent    = "sent"
)

type Campaign struct {
	ID         int        `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Subject    string     `db:"subject" json:"subject"`
	Body       string     `db:"body" json:"body"`
	TemplateID *int       `db:"template_id" json:"template_id,omitempty"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignSummary is the list-view row: a campaign plus the audience size and
// the name of the template it references, if any.
type CampaignSummary struct {
	Campaign
	SubscriberCount int    `json:"subscriber_count"`
	TemplateName    string `json:"template_name,omitempty"`
}

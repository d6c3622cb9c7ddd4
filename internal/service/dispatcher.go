// internal/service/dispatcher.go
package service

import (
	"context"
	"fmt"
	"log"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
	"github.com/wanzami/mailblast-backend/internal/model"
	"github.com/wanzami/mailblast-backend/internal/queue"
	"github.com/wanzami/mailblast-backend/internal/repository"
)

// TokenPublisher announces queued job tokens to push-mode workers.
type TokenPublisher interface {
	PublishTokens(tokens []string) error
}

// Dispatcher turns "send campaign C" into a batch of queued jobs.
type Dispatcher struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LedgerRepo   repository.LedgerRepositoryInterface
	Queue        queue.Queue
	Publisher    TokenPublisher
	MaxAttempts  int
}

type DispatchResult struct {
	CampaignID int
	Queued     int
}

// Dispatch snapshots the audience, enqueues one job per unsent recipient in a
// single bulk submission, announces the new jobs, and moves the campaign to
// sending. Re-dispatch is the recovery path for crashed or partial sends: the
// sent=false filter plus deterministic job names make it idempotent, so a
// recipient already marked sent is never queued again.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID int) (*DispatchResult, error) {
	campaign, err := d.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft && campaign.Status != model.CampaignStatusSending {
		return nil, appErrors.NewInvalidCampaignState(campaignID, campaign.Status)
	}

	// Snapshot the audience at send time. Rows that already exist keep their
	// sent flag, so this never re-arms a delivered recipient.
	if _, err := d.LedgerRepo.LinkAllSubscribers(campaignID); err != nil {
		return nil, fmt.Errorf("link subscribers: %w", err)
	}

	recipients, err := d.LedgerRepo.ListUnsent(campaignID)
	if err != nil {
		// Nothing was queued; the whole dispatch fails as one error.
		return nil, fmt.Errorf("load unsent recipients: %w", err)
	}
	if len(recipients) == 0 {
		return &DispatchResult{CampaignID: campaignID, Queued: 0}, nil
	}

	payloads := make([]queue.Payload, 0, len(recipients))
	for _, rec := range recipients {
		payloads = append(payloads, queue.Payload{
			CampaignID:     campaignID,
			SubscriberID:   rec.SubscriberID,
			Email:          rec.Email,
			Subject:        campaign.Subject,
			HTML:           campaign.Body,
			SubscriberName: rec.Name,
		})
	}

	// The status write precedes job creation: the completion check only fires
	// on sending campaigns, and a fast worker can finish every job before
	// this function returns.
	if campaign.Status != model.CampaignStatusSending {
		if err := d.CampaignRepo.UpdateStatus(campaignID, model.CampaignStatusSending); err != nil {
			return nil, fmt.Errorf("update campaign status: %w", err)
		}
	}

	tokens, err := d.Queue.EnqueueBatch(ctx, payloads, d.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("enqueue jobs: %w", err)
	}

	// Announcement failure is not a dispatch failure: the jobs are durable in
	// the store and pull-mode processing will still reach them.
	if len(tokens) > 0 {
		if err := d.Publisher.PublishTokens(tokens); err != nil {
			log.Printf("failed to announce %d jobs for campaign %d: %v", len(tokens), campaignID, err)
		}
	}

	log.Printf("campaign %d: queued %d send jobs (%d new)", campaignID, len(payloads), len(tokens))
	return &DispatchResult{CampaignID: campaignID, Queued: len(payloads)}, nil
}

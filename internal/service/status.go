// internal/service/status.go
package service

import (
	"context"
	"strconv"

	"github.com/wanzami/mailblast-backend/internal/queue"
)

// StatusAggregator answers "what is the live state of campaign sends" for the
// UI poller.
type StatusAggregator struct {
	Queue queue.Queue

	// PageSize bounds the in-flight job scan. Only transient states need the
	// per-campaign breakdown, so the scan stays small in practice.
	PageSize int
}

type CampaignCounts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type Totals struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type QueueStatus struct {
	Details map[string]*CampaignCounts `json:"details"`
	Totals  Totals                     `json:"totals"`
}

// Status reports per-campaign waiting/active counts and global terminal
// totals. Terminal counts are aggregate only: listing all historical jobs to
// break them out per campaign would be unbounded. An empty queue yields
// zeroes, never an error.
func (a *StatusAggregator) Status(ctx context.Context) (*QueueStatus, error) {
	completed, err := a.Queue.CountByState(ctx, queue.StateCompleted)
	if err != nil {
		return nil, err
	}
	failed, err := a.Queue.CountByState(ctx, queue.StateFailed)
	if err != nil {
		return nil, err
	}

	status := &QueueStatus{
		Details: map[string]*CampaignCounts{},
		Totals:  Totals{Completed: completed, Failed: failed},
	}

	waiting, err := a.Queue.GetJobs(ctx, []string{queue.StateWaiting, queue.StateDelayed}, 0, a.PageSize)
	if err != nil {
		return nil, err
	}
	active, err := a.Queue.GetJobs(ctx, []string{queue.StateActive}, 0, a.PageSize)
	if err != nil {
		return nil, err
	}

	for _, job := range waiting {
		if c := status.counts(job.Payload.CampaignID); c != nil {
			c.Waiting++
		}
	}
	for _, job := range active {
		if c := status.counts(job.Payload.CampaignID); c != nil {
			c.Active++
		}
	}
	return status, nil
}

func (s *QueueStatus) counts(campaignID int) *CampaignCounts {
	if campaignID == 0 {
		return nil
	}
	key := strconv.Itoa(campaignID)
	if _, ok := s.Details[key]; !ok {
		s.Details[key] = &CampaignCounts{}
	}
	return s.Details[key]
}

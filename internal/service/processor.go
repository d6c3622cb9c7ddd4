// internal/service/processor.go
package service

import (
	"context"
	"fmt"

	"github.com/wanzami/mailblast-backend/internal/queue"
)

// Processor is the pull-mode path: one triggered pass claims a bounded batch
// of runnable jobs and works through them sequentially. It exists so the
// queue still drains when no standing worker process is deployed, at the cost
// of head-of-line blocking.
type Processor struct {
	Queue     queue.Queue
	Sender    *SendService
	BatchSize int
}

type ProcessSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

func (p *Processor) ProcessBatch(ctx context.Context) (*ProcessSummary, error) {
	jobs, err := p.Queue.ClaimBatch(ctx, p.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}

	summary := &ProcessSummary{}
	touched := map[int]struct{}{}
	for _, job := range jobs {
		if p.Sender.Process(ctx, job) {
			summary.Sent++
		} else {
			summary.Failed++
		}
		summary.Processed++
		touched[job.Payload.CampaignID] = struct{}{}
	}

	p.Sender.FinishCampaigns(touched)
	return summary, nil
}

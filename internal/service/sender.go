// internal/service/sender.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wanzami/mailblast-backend/internal/mailer"
	"github.com/wanzami/mailblast-backend/internal/queue"
	"github.com/wanzami/mailblast-backend/internal/repository"
)

// SendService executes the per-job send protocol. Both the push-mode worker
// pool and the pull-mode processor run every claimed job through Process.
type SendService struct {
	Queue        queue.Queue
	LedgerRepo   repository.LedgerRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	Mailer       mailer.Mailer
	SendTimeout  time.Duration
	RetryBackoff time.Duration
}

// Process runs one claimed job to a queue state transition and reports
// whether the email went out. Failures never escape: they become a failed or
// delayed job plus a log line.
//
// The ledger write happens before the job is resolved as completed. A crash
// in between can replay the job and send a duplicate; the reverse order could
// lose a send. At-least-once is the accepted trade-off.
func (s *SendService) Process(ctx context.Context, job *queue.Job) bool {
	// A claimed job must reach a resolved state even when the caller's
	// context is cancelled mid-flight, e.g. during shutdown after the worker
	// pool has stopped intake. Run's drain wait bounds how long this lives.
	ctx = context.WithoutCancel(ctx)

	p := job.Payload

	if p.Email == "" || p.Subject == "" || p.HTML == "" {
		// Malformed payloads will never succeed, no matter how often they
		// are retried.
		log.Printf("job %s: payload missing required fields, failing permanently", job.Token)
		if err := s.Queue.FailPermanently(ctx, job.Token, "payload missing required fields"); err != nil {
			log.Printf("job %s: failed to record permanent failure: %v", job.Token, err)
		}
		return false
	}

	msg := mailer.Message{
		To:      p.Email,
		Subject: p.Subject,
		HTML:    RenderBody(p.HTML, p.SubscriberName),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.SendTimeout)
	messageID, err := s.Mailer.Send(sendCtx, msg)
	cancel()
	if err != nil {
		s.fail(ctx, job, err)
		return false
	}

	if err := s.LedgerRepo.MarkSent(p.CampaignID, p.SubscriberID); err != nil {
		// The email went out but the ledger does not know. Failing the job
		// retries the whole send, which can duplicate the email; silently
		// swallowing the error would instead lose track of the recipient.
		s.fail(ctx, job, fmt.Errorf("mark sent: %w", err))
		return false
	}

	if err := s.Queue.MoveToCompleted(ctx, job.Token, messageID); err != nil {
		log.Printf("job %s: sent but failed to complete: %v", job.Token, err)
	}
	log.Printf("job %s: sent to %s (%s)", job.Token, p.Email, messageID)
	return true
}

func (s *SendService) fail(ctx context.Context, job *queue.Job, cause error) {
	delay := backoff(s.RetryBackoff, job.Attempts)
	retrying, err := s.Queue.MoveToFailed(ctx, job.Token, cause, delay)
	if err != nil {
		log.Printf("job %s: failed to record failure: %v", job.Token, err)
		return
	}
	if retrying {
		log.Printf("job %s: attempt %d/%d failed, retrying in %s: %v",
			job.Token, job.Attempts, job.MaxAttempts, delay, cause)
	} else {
		log.Printf("job %s: permanently failed after %d attempts: %v", job.Token, job.Attempts, cause)
	}
}

// backoff doubles the base delay for each attempt already spent.
func backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}

// FinishCampaigns runs the completion check for every campaign touched by a
// processing pass. The conditional update makes redundant and concurrent
// checks harmless.
func (s *SendService) FinishCampaigns(campaignIDs map[int]struct{}) {
	for id := range campaignIDs {
		if id == 0 {
			continue
		}
		done, err := s.CampaignRepo.MarkSentIfComplete(id)
		if err != nil {
			log.Printf("campaign %d: completion check failed: %v", id, err)
			continue
		}
		if done {
			log.Printf("campaign %d marked as sent", id)
		}
	}
}

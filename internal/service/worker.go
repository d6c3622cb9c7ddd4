// internal/service/worker.go
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/wanzami/mailblast-backend/internal/queue"
)

// WorkerPool is the push-mode consumer: the broker hands it job tokens as
// they are announced and it runs up to Concurrency sends at once. Multiple
// pool processes can run side by side; the store's atomic claim keeps any job
// on exactly one of them.
type WorkerPool struct {
	Queue       queue.Queue
	Sender      *SendService
	Concurrency int
}

// Run consumes deliveries until the context is cancelled or the channel
// closes, then waits for in-flight jobs to finish.
func (w *WorkerPool) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	sem := make(chan struct{}, w.Concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Println("worker pool draining...")
			wg.Wait()
			return
		case d, ok := <-deliveries:
			if !ok {
				wg.Wait()
				return
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, d)
			}(d)
		}
	}
}

func (w *WorkerPool) handle(ctx context.Context, d amqp.Delivery) {
	token, err := queue.DecodeToken(d.Body)
	if err != nil {
		log.Printf("dropping invalid job message: %v", err)
		d.Ack(false)
		return
	}

	job, err := w.Queue.Claim(ctx, token)
	if err != nil {
		// Store unavailable; put the announcement back for another consumer.
		log.Printf("job %s: claim failed: %v", token, err)
		d.Nack(false, true)
		return
	}
	if job == nil {
		// Already claimed elsewhere, terminal, or a stale announcement.
		d.Ack(false)
		return
	}

	sent := w.Sender.Process(ctx, job)

	// The store is the authority on job state: retries travel through the
	// delayed state and get re-announced by the promoter, so the broker
	// message is done either way.
	d.Ack(false)

	if sent {
		w.Sender.FinishCampaigns(map[int]struct{}{job.Payload.CampaignID: {}})
	}
}

// Maintain periodically returns stalled claims to waiting, promotes due
// delayed jobs, re-announces both, and trims terminal jobs down to the
// retention windows.
func (w *WorkerPool) Maintain(ctx context.Context, publisher TokenPublisher, every time.Duration, keepCompleted, keepFailed int) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stalled, err := w.Queue.RequeueStalled(ctx)
			if err != nil {
				log.Printf("requeue stalled jobs: %v", err)
			} else if len(stalled) > 0 {
				log.Printf("requeued %d stalled jobs", len(stalled))
			}

			promoted, err := w.Queue.PromoteDelayed(ctx)
			if err != nil {
				log.Printf("promote delayed jobs: %v", err)
			} else if len(promoted) > 0 {
				log.Printf("promoted %d delayed jobs", len(promoted))
			}

			tokens := append(stalled, promoted...)
			if len(tokens) > 0 {
				if err := publisher.PublishTokens(tokens); err != nil {
					log.Printf("re-announce %d jobs: %v", len(tokens), err)
				}
			}

			if _, err := w.Queue.Trim(ctx, queue.StateCompleted, keepCompleted); err != nil {
				log.Printf("trim completed jobs: %v", err)
			}
			if _, err := w.Queue.Trim(ctx, queue.StateFailed, keepFailed); err != nil {
				log.Printf("trim failed jobs: %v", err)
			}
		}
	}
}

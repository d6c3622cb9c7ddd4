// internal/queue/queue.go
package queue

import (
	"context"
	"time"
)

// Queue is the durable at-least-once job queue the dispatch pipeline relies
// on. Jobs survive process restarts; claiming is atomic, so two consumers can
// never hold the same job at once.
type Queue interface {
	// EnqueueBatch submits all payloads in one operation and returns the
	// tokens of the jobs that actually entered the waiting state. Payloads
	// whose deterministic name collides with a live (waiting, delayed or
	// freshly active) job are dropped as duplicates; a collision with a
	// terminally failed job, or with an active claim held past the visibility
	// window, re-arms it for another round.
	EnqueueBatch(ctx context.Context, payloads []Payload, maxAttempts int) ([]string, error)

	// Claim moves one waiting (or due delayed) job to active and increments
	// its attempt count. Returns nil when the job is already claimed or
	// terminal, which the caller treats as nothing to do.
	Claim(ctx context.Context, token string) (*Job, error)

	// ClaimBatch claims up to limit runnable jobs for pull-mode processing.
	ClaimBatch(ctx context.Context, limit int) ([]*Job, error)

	MoveToCompleted(ctx context.Context, token, result string) error

	// MoveToFailed records the failure. If attempts remain the job parks as
	// delayed for the given duration and retrying is true; otherwise it goes
	// terminally failed.
	MoveToFailed(ctx context.Context, token string, jobErr error, delay time.Duration) (retrying bool, err error)

	// FailPermanently marks the job failed with no retry, regardless of the
	// remaining attempt budget. Used for malformed payloads.
	FailPermanently(ctx context.Context, token, reason string) error

	// PromoteDelayed moves due delayed jobs back to waiting and returns their
	// tokens so they can be re-announced to push-mode consumers.
	PromoteDelayed(ctx context.Context) ([]string, error)

	// RequeueStalled returns claims held past the visibility window to
	// waiting, so a worker crash between claim and resolve never strands a
	// job in the active state. Returns the reclaimed tokens for
	// re-announcement.
	RequeueStalled(ctx context.Context) ([]string, error)

	CountByState(ctx context.Context, state string) (int, error)

	// CountPending reports non-terminal jobs for one campaign, for the
	// campaign completion check.
	CountPending(ctx context.Context, campaignID int) (int, error)

	// GetJobs pages jobs in the given states, oldest first.
	GetJobs(ctx context.Context, states []string, offset, limit int) ([]*Job, error)

	// Clean deletes all jobs in the given states and reports how many went.
	Clean(ctx context.Context, states []string) (int64, error)

	// Trim keeps only the most recently updated `keep` jobs in a state.
	Trim(ctx context.Context, state string, keep int) (int64, error)
}

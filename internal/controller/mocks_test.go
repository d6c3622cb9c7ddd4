package controller_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
	"github.com/wanzami/mailblast-backend/internal/mailer"
	"github.com/wanzami/mailblast-backend/internal/model"
	"github.com/wanzami/mailblast-backend/internal/queue"
)

// stubQueue is a minimal in-memory job store for handler tests.
type stubQueue struct {
	jobs []*queue.Job
	seq  int
}

func (q *stubQueue) EnqueueBatch(ctx context.Context, payloads []queue.Payload, maxAttempts int) ([]string, error) {
	tokens := []string{}
	for _, p := range payloads {
		q.seq++
		job := &queue.Job{
			Token:       fmt.Sprintf("tok-%d", q.seq),
			Name:        queue.JobName(p.CampaignID, p.Email),
			Payload:     p,
			State:       queue.StateWaiting,
			MaxAttempts: maxAttempts,
		}
		q.jobs = append(q.jobs, job)
		tokens = append(tokens, job.Token)
	}
	return tokens, nil
}

func (q *stubQueue) Claim(ctx context.Context, token string) (*queue.Job, error) {
	for _, job := range q.jobs {
		if job.Token == token && job.State == queue.StateWaiting {
			job.State = queue.StateActive
			job.Attempts++
			return job, nil
		}
	}
	return nil, nil
}

func (q *stubQueue) ClaimBatch(ctx context.Context, limit int) ([]*queue.Job, error) {
	claimed := []*queue.Job{}
	for _, job := range q.jobs {
		if len(claimed) == limit {
			break
		}
		if job.State == queue.StateWaiting {
			job.State = queue.StateActive
			job.Attempts++
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

func (q *stubQueue) MoveToCompleted(ctx context.Context, token, result string) error {
	q.setState(token, queue.StateCompleted)
	return nil
}

func (q *stubQueue) MoveToFailed(ctx context.Context, token string, jobErr error, delay time.Duration) (bool, error) {
	q.setState(token, queue.StateFailed)
	return false, nil
}

func (q *stubQueue) FailPermanently(ctx context.Context, token, reason string) error {
	q.setState(token, queue.StateFailed)
	return nil
}

func (q *stubQueue) setState(token, state string) {
	for _, job := range q.jobs {
		if job.Token == token {
			job.State = state
		}
	}
}

func (q *stubQueue) PromoteDelayed(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (q *stubQueue) RequeueStalled(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (q *stubQueue) CountByState(ctx context.Context, state string) (int, error) {
	n := 0
	for _, job := range q.jobs {
		if job.State == state {
			n++
		}
	}
	return n, nil
}

func (q *stubQueue) CountPending(ctx context.Context, campaignID int) (int, error) {
	n := 0
	for _, job := range q.jobs {
		if job.Payload.CampaignID != campaignID {
			continue
		}
		switch job.State {
		case queue.StateWaiting, queue.StateActive, queue.StateDelayed:
			n++
		}
	}
	return n, nil
}

func (q *stubQueue) GetJobs(ctx context.Context, states []string, offset, limit int) ([]*queue.Job, error) {
	wanted := map[string]bool{}
	for _, s := range states {
		wanted[s] = true
	}
	matched := []*queue.Job{}
	for _, job := range q.jobs {
		if wanted[job.State] && len(matched) < limit {
			matched = append(matched, job)
		}
	}
	return matched, nil
}

func (q *stubQueue) Clean(ctx context.Context, states []string) (int64, error) {
	wanted := map[string]bool{}
	for _, s := range states {
		wanted[s] = true
	}
	var removed int64
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if wanted[job.State] {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
	return removed, nil
}

func (q *stubQueue) Trim(ctx context.Context, state string, keep int) (int64, error) {
	return 0, nil
}

var _ queue.Queue = (*stubQueue)(nil)

type stubCampaignRepo struct {
	campaigns map[int]*model.Campaign
}

func (r *stubCampaignRepo) Create(c *model.Campaign) error {
	c.ID = len(r.campaigns) + 1
	r.campaigns[c.ID] = c
	return nil
}

func (r *stubCampaignRepo) Update(c *model.Campaign) error {
	r.campaigns[c.ID] = c
	return nil
}

func (r *stubCampaignRepo) Delete(id int) error {
	delete(r.campaigns, id)
	return nil
}

func (r *stubCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	snapshot := *c
	return &snapshot, nil
}

func (r *stubCampaignRepo) List() ([]*model.CampaignSummary, error) {
	summaries := []*model.CampaignSummary{}
	for _, c := range r.campaigns {
		summaries = append(summaries, &model.CampaignSummary{Campaign: *c})
	}
	return summaries, nil
}

func (r *stubCampaignRepo) UpdateStatus(campaignID int, status string) error {
	if c, ok := r.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (r *stubCampaignRepo) MarkSentIfComplete(campaignID int) (bool, error) {
	return false, nil
}

type stubLedger struct {
	unsent map[int][]model.Recipient
}

func (l *stubLedger) LinkAllSubscribers(campaignID int) (int, error) {
	return len(l.unsent[campaignID]), nil
}

func (l *stubLedger) LinkSubscribers(campaignID int, subscriberIDs []int) (int, error) {
	return len(subscriberIDs), nil
}

func (l *stubLedger) ListUnsent(campaignID int) ([]model.Recipient, error) {
	return l.unsent[campaignID], nil
}

func (l *stubLedger) MarkSent(campaignID, subscriberID int) error {
	recipients := l.unsent[campaignID]
	kept := recipients[:0]
	for _, rec := range recipients {
		if rec.SubscriberID != subscriberID {
			kept = append(kept, rec)
		}
	}
	l.unsent[campaignID] = kept
	return nil
}

func (l *stubLedger) CountUnsent(campaignID int) (int, error) {
	return len(l.unsent[campaignID]), nil
}

func (l *stubLedger) Unlink(campaignID int) error {
	delete(l.unsent, campaignID)
	return nil
}

type stubSubscriberRepo struct {
	subscribers []model.Subscriber
	deleted     []int
}

func (r *stubSubscriberRepo) List(search string, offset, limit int) ([]model.Subscriber, int, error) {
	matched := []model.Subscriber{}
	for _, s := range r.subscribers {
		if search == "" || strings.Contains(s.Email, search) || strings.Contains(s.Name, search) {
			matched = append(matched, s)
		}
	}
	total := len(matched)
	if offset >= len(matched) {
		return []model.Subscriber{}, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *stubSubscriberRepo) UpsertBatch(subs []model.Subscriber) (int, error) {
	r.subscribers = append(r.subscribers, subs...)
	return len(subs), nil
}

func (r *stubSubscriberRepo) Delete(id int) error {
	r.deleted = append(r.deleted, id)
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishTokens(tokens []string) error { return nil }

type stubMailer struct {
	sent []mailer.Message
}

func (m *stubMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	m.sent = append(m.sent, msg)
	return "msg-stub", nil
}

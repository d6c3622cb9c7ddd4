package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
	"github.com/wanzami/mailblast-backend/internal/mailer"
	"github.com/wanzami/mailblast-backend/internal/model"
	"github.com/wanzami/mailblast-backend/internal/queue"
)

// memQueue is an in-memory stand-in for the Postgres job store with the same
// claim and dedup semantics.
type memQueue struct {
	mu           sync.Mutex
	jobs         []*queue.Job
	byName       map[string]*queue.Job
	byToken      map[string]*queue.Job
	seq          int
	stalledAfter time.Duration
}

func newMemQueue() *memQueue {
	return &memQueue{
		byName:       map[string]*queue.Job{},
		byToken:      map[string]*queue.Job{},
		stalledAfter: 5 * time.Minute,
	}
}

func (q *memQueue) stalled(j *queue.Job) bool {
	return j.State == queue.StateActive && time.Since(j.UpdatedAt) >= q.stalledAfter
}

func (q *memQueue) EnqueueBatch(ctx context.Context, payloads []queue.Payload, maxAttempts int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tokens := []string{}
	for _, p := range payloads {
		name := queue.JobName(p.CampaignID, p.Email)
		if existing, ok := q.byName[name]; ok {
			if existing.State == queue.StateFailed || q.stalled(existing) {
				existing.State = queue.StateWaiting
				existing.Attempts = 0
				existing.Payload = p
				existing.MaxAttempts = maxAttempts
				existing.RunAt = time.Now()
				existing.LastError = ""
				existing.Result = ""
				existing.UpdatedAt = time.Now()
				tokens = append(tokens, existing.Token)
			}
			continue
		}

		q.seq++
		job := &queue.Job{
			Token:       fmt.Sprintf("tok-%d", q.seq),
			Name:        name,
			Payload:     p,
			State:       queue.StateWaiting,
			MaxAttempts: maxAttempts,
			RunAt:       time.Now(),
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		q.jobs = append(q.jobs, job)
		q.byName[name] = job
		q.byToken[job.Token] = job
		tokens = append(tokens, job.Token)
	}
	return tokens, nil
}

func (q *memQueue) runnable(j *queue.Job) bool {
	return j.State == queue.StateWaiting ||
		(j.State == queue.StateDelayed && !j.RunAt.After(time.Now()))
}

func (q *memQueue) Claim(ctx context.Context, token string) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.byToken[token]
	if !ok || !q.runnable(job) {
		return nil, nil
	}
	job.State = queue.StateActive
	job.Attempts++
	job.UpdatedAt = time.Now()
	snapshot := *job
	return &snapshot, nil
}

func (q *memQueue) ClaimBatch(ctx context.Context, limit int) ([]*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	claimed := []*queue.Job{}
	for _, job := range q.jobs {
		if len(claimed) == limit {
			break
		}
		if !q.runnable(job) {
			continue
		}
		job.State = queue.StateActive
		job.Attempts++
		job.UpdatedAt = time.Now()
		snapshot := *job
		claimed = append(claimed, &snapshot)
	}
	return claimed, nil
}

func (q *memQueue) MoveToCompleted(ctx context.Context, token, result string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.byToken[token]; ok && job.State == queue.StateActive {
		job.State = queue.StateCompleted
		job.Result = result
		job.LastError = ""
		job.UpdatedAt = time.Now()
	}
	return nil
}

func (q *memQueue) MoveToFailed(ctx context.Context, token string, jobErr error, delay time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.byToken[token]
	if !ok || job.State != queue.StateActive {
		return false, nil
	}
	job.LastError = jobErr.Error()
	job.UpdatedAt = time.Now()
	if job.Attempts < job.MaxAttempts {
		job.State = queue.StateDelayed
		job.RunAt = time.Now().Add(delay)
		return true, nil
	}
	job.State = queue.StateFailed
	return false, nil
}

func (q *memQueue) FailPermanently(ctx context.Context, token, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.byToken[token]; ok && job.State == queue.StateActive {
		job.State = queue.StateFailed
		job.LastError = reason
		job.UpdatedAt = time.Now()
	}
	return nil
}

func (q *memQueue) PromoteDelayed(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tokens := []string{}
	for _, job := range q.jobs {
		if job.State == queue.StateDelayed && !job.RunAt.After(time.Now()) {
			job.State = queue.StateWaiting
			job.UpdatedAt = time.Now()
			tokens = append(tokens, job.Token)
		}
	}
	return tokens, nil
}

func (q *memQueue) RequeueStalled(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tokens := []string{}
	for _, job := range q.jobs {
		if q.stalled(job) {
			job.State = queue.StateWaiting
			job.UpdatedAt = time.Now()
			tokens = append(tokens, job.Token)
		}
	}
	return tokens, nil
}

func (q *memQueue) CountByState(ctx context.Context, state string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, job := range q.jobs {
		if job.State == state {
			n++
		}
	}
	return n, nil
}

func (q *memQueue) CountPending(ctx context.Context, campaignID int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

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

func (q *memQueue) GetJobs(ctx context.Context, states []string, offset, limit int) ([]*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wanted := map[string]bool{}
	for _, s := range states {
		wanted[s] = true
	}

	matched := []*queue.Job{}
	for _, job := range q.jobs {
		if wanted[job.State] {
			snapshot := *job
			matched = append(matched, &snapshot)
		}
	}
	if offset >= len(matched) {
		return []*queue.Job{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (q *memQueue) Clean(ctx context.Context, states []string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wanted := map[string]bool{}
	for _, s := range states {
		wanted[s] = true
	}

	var removed int64
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if wanted[job.State] {
			delete(q.byName, job.Name)
			delete(q.byToken, job.Token)
			removed++
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
	return removed, nil
}

func (q *memQueue) Trim(ctx context.Context, state string, keep int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	matched := []*queue.Job{}
	for _, job := range q.jobs {
		if job.State == state {
			matched = append(matched, job)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	if len(matched) <= keep {
		return 0, nil
	}

	drop := map[string]bool{}
	for _, job := range matched[keep:] {
		drop[job.Token] = true
	}
	var removed int64
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if drop[job.Token] {
			delete(q.byName, job.Name)
			delete(q.byToken, job.Token)
			removed++
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
	return removed, nil
}

func (q *memQueue) get(token string) *queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.byToken[token]
}

var _ queue.Queue = (*memQueue)(nil)

// mockLedger keeps campaign_subscribers rows in memory.
type ledgerRow struct {
	sent bool
}

type mockLedger struct {
	mu       sync.Mutex
	audience []model.Subscriber
	rows     map[[2]int]*ledgerRow

	linkErr   error
	listErr   error
	markErr   error
	markCalls int
}

func newMockLedger(audience []model.Subscriber) *mockLedger {
	return &mockLedger{audience: audience, rows: map[[2]int]*ledgerRow{}}
}

func (m *mockLedger) LinkAllSubscribers(campaignID int) (int, error) {
	if m.linkErr != nil {
		return 0, m.linkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	linked := 0
	for _, sub := range m.audience {
		key := [2]int{campaignID, sub.ID}
		if _, ok := m.rows[key]; !ok {
			m.rows[key] = &ledgerRow{}
			linked++
		}
	}
	return linked, nil
}

func (m *mockLedger) LinkSubscribers(campaignID int, subscriberIDs []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	linked := 0
	for _, id := range subscriberIDs {
		key := [2]int{campaignID, id}
		if _, ok := m.rows[key]; !ok {
			m.rows[key] = &ledgerRow{}
			linked++
		}
	}
	return linked, nil
}

func (m *mockLedger) ListUnsent(campaignID int) ([]model.Recipient, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	recipients := []model.Recipient{}
	for _, sub := range m.audience {
		row, ok := m.rows[[2]int{campaignID, sub.ID}]
		if ok && !row.sent {
			recipients = append(recipients, model.Recipient{
				SubscriberID: sub.ID,
				Email:        sub.Email,
				Name:         sub.Name,
			})
		}
	}
	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].SubscriberID < recipients[j].SubscriberID
	})
	return recipients, nil
}

func (m *mockLedger) MarkSent(campaignID, subscriberID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.markCalls++
	if m.markErr != nil {
		return m.markErr
	}
	if row, ok := m.rows[[2]int{campaignID, subscriberID}]; ok {
		row.sent = true
	}
	return nil
}

func (m *mockLedger) CountUnsent(campaignID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, row := range m.rows {
		if key[0] == campaignID && !row.sent {
			n++
		}
	}
	return n, nil
}

func (m *mockLedger) Unlink(campaignID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.rows {
		if key[0] == campaignID {
			delete(m.rows, key)
		}
	}
	return nil
}

func (m *mockLedger) sent(campaignID, subscriberID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[[2]int{campaignID, subscriberID}]
	return ok && row.sent
}

func (m *mockLedger) rowCount(campaignID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.rows {
		if key[0] == campaignID {
			n++
		}
	}
	return n
}

// mockCampaignRepo backs the completion check with the mock ledger and queue.
type mockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	ledger    *mockLedger
	queue     *memQueue
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = len(m.campaigns) + 1
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignRepo) Update(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.campaigns, id)
	return nil
}

func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	snapshot := *c
	return &snapshot, nil
}

func (m *mockCampaignRepo) List() ([]*model.CampaignSummary, error) {
	return []*model.CampaignSummary{}, nil
}

func (m *mockCampaignRepo) UpdateStatus(campaignID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (m *mockCampaignRepo) MarkSentIfComplete(campaignID int) (bool, error) {
	m.mu.Lock()
	c, ok := m.campaigns[campaignID]
	if !ok || c.Status != model.CampaignStatusSending {
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	unsent, _ := m.ledger.CountUnsent(campaignID)
	pending, _ := m.queue.CountPending(context.Background(), campaignID)
	if unsent > 0 || pending > 0 {
		return false, nil
	}

	m.mu.Lock()
	c.Status = model.CampaignStatusSent
	m.mu.Unlock()
	return true, nil
}

func (m *mockCampaignRepo) status(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

// mockMailer records calls and delegates to an optional handler.
type mockMailer struct {
	mu    sync.Mutex
	calls int
	fn    func(msg mailer.Message) (string, error)
	last  mailer.Message
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	m.calls++
	m.last = msg
	fn := m.fn
	m.mu.Unlock()

	if fn != nil {
		return fn(msg)
	}
	return "msg-ok", nil
}

func (m *mockMailer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakePublisher records announced tokens.
type fakePublisher struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (p *fakePublisher) PublishTokens(tokens []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tokens = append(p.tokens, tokens...)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.tokens...)
}

// internal/queue/store.go
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store is the Postgres-backed Queue. Job state lives in the same database as
// the delivery ledger, so the campaign completion check and name-based
// deduplication are exact rather than best-effort.
type Store struct {
	DB *sql.DB

	// StalledAfter is the claim visibility window: an active job whose
	// updated_at is older than this is presumed orphaned by a crashed worker
	// and becomes reclaimable. Must comfortably exceed the send timeout, since
	// a claim is only touched at state transitions.
	StalledAfter time.Duration
}

func NewStore(db *sql.DB, stalledAfter time.Duration) *Store {
	return &Store{DB: db, StalledAfter: stalledAfter}
}

const jobColumns = `token, name, campaign_id, subscriber_id, email, subject, html, subscriber_name,
        state, attempts, max_attempts, run_at, last_error, result, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.Token, &j.Name,
		&j.Payload.CampaignID, &j.Payload.SubscriberID,
		&j.Payload.Email, &j.Payload.Subject, &j.Payload.HTML, &j.Payload.SubscriberName,
		&j.State, &j.Attempts, &j.MaxAttempts, &j.RunAt,
		&j.LastError, &j.Result, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) EnqueueBatch(ctx context.Context, payloads []Payload, maxAttempts int) ([]string, error) {
	if len(payloads) == 0 {
		return nil, nil
	}

	var (
		values []string
		args   []interface{}
	)
	for i, p := range payloads {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, 'waiting', 0, $%d, NOW(), '', '', NOW(), NOW())",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			uuid.NewString(),
			JobName(p.CampaignID, p.Email),
			p.CampaignID, p.SubscriberID,
			p.Email, p.Subject, p.HTML, p.SubscriberName,
			maxAttempts,
		)
	}

	// A name collision with a live job is a duplicate dispatch and inserts
	// nothing. A collision with a terminally failed job, or with a claim held
	// past the visibility window by a crashed worker, re-arms it with the
	// fresh payload so re-dispatch recovers both exhausted and orphaned sends.
	staleArg := len(payloads)*9 + 1
	query := `
        INSERT INTO jobs (token, name, campaign_id, subscriber_id, email, subject, html, subscriber_name,
                          state, attempts, max_attempts, run_at, last_error, result, created_at, updated_at)
        VALUES ` + strings.Join(values, ", ") + `
        ON CONFLICT (name) DO UPDATE
        SET state='waiting', attempts=0, run_at=NOW(), last_error='', result='',
            subject=EXCLUDED.subject, html=EXCLUDED.html, subscriber_name=EXCLUDED.subscriber_name,
            max_attempts=EXCLUDED.max_attempts, updated_at=NOW()
        WHERE jobs.state = 'failed'
           OR (jobs.state = 'active' AND jobs.updated_at < NOW() - make_interval(secs => $` + fmt.Sprint(staleArg) + `))
        RETURNING token
    `
	args = append(args, s.StalledAfter.Seconds())

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("enqueue jobs: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) Claim(ctx context.Context, token string) (*Job, error) {
	query := `
        UPDATE jobs
        SET state='active', attempts=attempts+1, updated_at=NOW()
        WHERE token=$1 AND (state='waiting' OR (state='delayed' AND run_at<=NOW()))
        RETURNING ` + jobColumns
	job, err := scanJob(s.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]*Job, error) {
	query := `
        UPDATE jobs
        SET state='active', attempts=attempts+1, updated_at=NOW()
        WHERE token IN (
            SELECT token FROM jobs
            WHERE state='waiting' OR (state='delayed' AND run_at<=NOW())
            ORDER BY created_at
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + jobColumns
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) MoveToCompleted(ctx context.Context, token, result string) error {
	query := `
        UPDATE jobs
        SET state='completed', result=$2, last_error='', updated_at=NOW()
        WHERE token=$1 AND state='active'
    `
	_, err := s.DB.ExecContext(ctx, query, token, result)
	return err
}

func (s *Store) MoveToFailed(ctx context.Context, token string, jobErr error, delay time.Duration) (bool, error) {
	runAt := time.Now().Add(delay)
	res, err := s.DB.ExecContext(ctx, `
        UPDATE jobs
        SET state='delayed', run_at=$2, last_error=$3, updated_at=NOW()
        WHERE token=$1 AND state='active' AND attempts < max_attempts
    `, token, runAt, jobErr.Error())
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	_, err = s.DB.ExecContext(ctx, `
        UPDATE jobs
        SET state='failed', last_error=$2, updated_at=NOW()
        WHERE token=$1 AND state='active'
    `, token, jobErr.Error())
	return false, err
}

func (s *Store) FailPermanently(ctx context.Context, token, reason string) error {
	_, err := s.DB.ExecContext(ctx, `
        UPDATE jobs
        SET state='failed', last_error=$2, updated_at=NOW()
        WHERE token=$1 AND state='active'
    `, token, reason)
	return err
}

func (s *Store) PromoteDelayed(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
        UPDATE jobs
        SET state='waiting', updated_at=NOW()
        WHERE state='delayed' AND run_at<=NOW()
        RETURNING token
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) RequeueStalled(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
        UPDATE jobs
        SET state='waiting', updated_at=NOW()
        WHERE state='active' AND updated_at < NOW() - make_interval(secs => $1)
        RETURNING token
    `, s.StalledAfter.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) CountByState(ctx context.Context, state string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE state=$1`, state).Scan(&n)
	return n, err
}

func (s *Store) CountPending(ctx context.Context, campaignID int) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM jobs
        WHERE campaign_id=$1 AND state IN ('waiting', 'active', 'delayed')
    `, campaignID).Scan(&n)
	return n, err
}

func (s *Store) GetJobs(ctx context.Context, states []string, offset, limit int) ([]*Job, error) {
	query := `
        SELECT ` + jobColumns + `
        FROM jobs
        WHERE state = ANY($1)
        ORDER BY created_at
        LIMIT $2 OFFSET $3
    `
	rows, err := s.DB.QueryContext(ctx, query, pq.Array(states), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) Clean(ctx context.Context, states []string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE state = ANY($1)`, pq.Array(states))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Trim(ctx context.Context, state string, keep int) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
        DELETE FROM jobs
        WHERE state=$1 AND token NOT IN (
            SELECT token FROM jobs WHERE state=$1 ORDER BY updated_at DESC LIMIT $2
        )
    `, state, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Queue = (*Store)(nil)

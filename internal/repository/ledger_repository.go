package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/wanzami/mailblast-backend/internal/model"
)

// LedgerRepositoryInterface manages campaign_subscribers, the durable record
// of which recipient has received which campaign.
type LedgerRepositoryInterface interface {
	// LinkAllSubscribers snapshots the current subscriber set into the
	// campaign's ledger. Existing rows are left untouched, so re-linking
	// never resets a sent flag.
	LinkAllSubscribers(campaignID int) (int, error)

	// LinkSubscribers links an explicit id list, same idempotence rules.
	LinkSubscribers(campaignID int, subscriberIDs []int) (int, error)

	// ListUnsent returns the recipients still owed this campaign.
	ListUnsent(campaignID int) ([]model.Recipient, error)

	// MarkSent records delivery for one recipient. Setting sent twice is
	// harmless, which makes duplicate job execution safe.
	MarkSent(campaignID, subscriberID int) error

	CountUnsent(campaignID int) (int, error)

	// Unlink removes all ledger rows for a campaign (campaign deletion).
	Unlink(campaignID int) error
}

type LedgerRepository struct {
	DB *sql.DB
}

func (r *LedgerRepository) LinkAllSubscribers(campaignID int) (int, error) {
	query := `
        INSERT INTO campaign_subscribers (campaign_id, subscriber_id, sent)
        SELECT $1, id, false FROM subscribers
        ON CONFLICT (campaign_id, subscriber_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, campaignID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *LedgerRepository) LinkSubscribers(campaignID int, subscriberIDs []int) (int, error) {
	if len(subscriberIDs) == 0 {
		return 0, nil
	}

	var (
		values []string
		args   []interface{}
	)
	args = append(args, campaignID)
	for i, id := range subscriberIDs {
		values = append(values, fmt.Sprintf("($1, $%d, false)", i+2))
		args = append(args, id)
	}

	query := `
        INSERT INTO campaign_subscribers (campaign_id, subscriber_id, sent)
        VALUES ` + strings.Join(values, ", ") + `
        ON CONFLICT (campaign_id, subscriber_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *LedgerRepository) ListUnsent(campaignID int) ([]model.Recipient, error) {
	query := `
        SELECT s.id, s.email, s.name
        FROM campaign_subscribers cs
        JOIN subscribers s ON s.id = cs.subscriber_id
        WHERE cs.campaign_id=$1 AND cs.sent=false
        ORDER BY s.id
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		if err := rows.Scan(&rec.SubscriberID, &rec.Email, &rec.Name); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *LedgerRepository) MarkSent(campaignID, subscriberID int) error {
	query := `
        UPDATE campaign_subscribers
        SET sent=true, sent_at=NOW()
        WHERE campaign_id=$1 AND subscriber_id=$2
    `
	_, err := r.DB.Exec(query, campaignID, subscriberID)
	return err
}

func (r *LedgerRepository) CountUnsent(campaignID int) (int, error) {
	var n int
	err := r.DB.QueryRow(`
        SELECT COUNT(*) FROM campaign_subscribers
        WHERE campaign_id=$1 AND sent=false
    `, campaignID).Scan(&n)
	return n, err
}

func (r *LedgerRepository) Unlink(campaignID int) error {
	_, err := r.DB.Exec(`DELETE FROM campaign_subscribers WHERE campaign_id=$1`, campaignID)
	return err
}

var _ LedgerRepositoryInterface = (*LedgerRepository)(nil)

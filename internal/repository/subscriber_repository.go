package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/wanzami/mailblast-backend/internal/model"
)

type SubscriberRepositoryInterface interface {
	List(search string, offset, limit int) ([]model.Subscriber, int, error)
	UpsertBatch(subs []model.Subscriber) (int, error)
	Delete(id int) error
}

type SubscriberRepository struct {
	DB *sql.DB
}

// List fetches subscribers newest first, optionally filtered by a substring
// match on email or name, with the total count for pagination.
func (r *SubscriberRepository) List(search string, offset, limit int) ([]model.Subscriber, int, error) {
	query := `SELECT id, email, name, created_at FROM subscribers`
	countQuery := `SELECT COUNT(*) FROM subscribers`
	args := []interface{}{}

	if search != "" {
		filter := ` WHERE email ILIKE $1 OR name ILIKE $1`
		query += filter
		countQuery += filter
		args = append(args, "%"+search+"%")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := r.DB.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subscribers := []model.Subscriber{}
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return subscribers, total, nil
}

// UpsertBatch inserts subscribers in one statement, updating the display name
// on email conflict. This is the CSV ingestion path.
func (r *SubscriberRepository) UpsertBatch(subs []model.Subscriber) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}

	var (
		values []string
		args   []interface{}
	)
	for i, s := range subs {
		values = append(values, fmt.Sprintf("($%d, $%d, NOW())", i*2+1, i*2+2))
		args = append(args, strings.ToLower(strings.TrimSpace(s.Email)), s.Name)
	}

	query := `
        INSERT INTO subscribers (email, name, created_at)
        VALUES ` + strings.Join(values, ", ") + `
        ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name
    `
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SubscriberRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM subscribers WHERE id=$1`, id)
	return err
}

var _ SubscriberRepositoryInterface = (*SubscriberRepository)(nil)

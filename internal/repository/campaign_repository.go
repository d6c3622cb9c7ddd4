package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
	"github.com/wanzami/mailblast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Update(c *model.Campaign) error
	Delete(id int) error
	GetByID(id int) (*model.Campaign, error)
	List() ([]*model.CampaignSummary, error)
	UpdateStatus(campaignID int, status string) error

	// MarkSentIfComplete flips sending->sent only when the campaign has no
	// unsent ledger rows and no non-terminal jobs left. Safe to call
	// redundantly and concurrently.
	MarkSentIfComplete(campaignID int) (bool, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	query := `
        INSERT INTO campaigns (name, subject, body, template_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Name, c.Subject, c.Body, c.TemplateID, c.Status, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, subject=$2, body=$3, template_id=$4, status=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, c.Name, c.Subject, c.Body, c.TemplateID, c.Status, c.ID)
	return err
}

func (r *CampaignRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM campaigns WHERE id=$1`, id)
	return err
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, subject, body, template_id, status, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Subject, &c.Body, &c.TemplateID, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) List() ([]*model.CampaignSummary, error) {
	query := `
        SELECT c.id, c.name, c.subject, c.body, c.template_id, c.status, c.created_at, c.updated_at,
               COUNT(cs.subscriber_id), COALESCE(t.name, '')
        FROM campaigns c
        LEFT JOIN campaign_subscribers cs ON cs.campaign_id = c.id
        LEFT JOIN templates t ON t.id = c.template_id
        GROUP BY c.id, t.name
        ORDER BY c.created_at DESC
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.CampaignSummary{}
	for rows.Next() {
		s := &model.CampaignSummary{}
		err := rows.Scan(
			&s.ID, &s.Name, &s.Subject, &s.Body, &s.TemplateID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
			&s.SubscriberCount, &s.TemplateName,
		)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, s)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) MarkSentIfComplete(campaignID int) (bool, error) {
	query := `
        UPDATE campaigns
        SET status='sent', updated_at=NOW()
        WHERE id=$1 AND status='sending'
          AND NOT EXISTS (
              SELECT 1 FROM campaign_subscribers
              WHERE campaign_id=$1 AND sent=false
          )
          AND NOT EXISTS (
              SELECT 1 FROM jobs
              WHERE campaign_id=$1 AND state IN ('waiting', 'active', 'delayed')
          )
    `
	res, err := r.DB.Exec(query, campaignID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)

package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
	"github.com/wanzami/mailblast-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(t *model.Template) error
	Update(t *model.Template) error
	Delete(id int) error
	GetByID(id int) (*model.Template, error)
	List() ([]model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) Create(t *model.Template) error {
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO templates (name, subject, body, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	return r.DB.QueryRow(query, t.Name, t.Subject, t.Body, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) Update(t *model.Template) error {
	res, err := r.DB.Exec(
		`UPDATE templates SET name=$1, subject=$2, body=$3 WHERE id=$4`,
		t.Name, t.Subject, t.Body, t.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewTemplateNotFound(t.ID)
	}
	return nil
}

func (r *TemplateRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM templates WHERE id=$1`, id)
	return err
}

func (r *TemplateRepository) GetByID(id int) (*model.Template, error) {
	var t model.Template
	err := r.DB.QueryRow(
		`SELECT id, name, subject, body, created_at FROM templates WHERE id=$1`, id,
	).Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewTemplateNotFound(id)
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) List() ([]model.Template, error) {
	rows, err := r.DB.Query(`SELECT id, name, subject, body, created_at FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)

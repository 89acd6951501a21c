package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"template-store/internal/models"

	"github.com/uptrace/bun"
)

var ErrTemplateNotFound = errors.New("template not found")

type DB struct {
	Bun *bun.DB
}

// CreateTemplate → insert new template
func (d *DB) CreateTemplate(ctx context.Context, template *models.Template) error {
	now := time.Now()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	if template.UpdatedAt.IsZero() {
		template.UpdatedAt = now
	}
	_, err := d.Bun.NewInsert().Model(template).Exec(ctx)
	return err
}

// GetTemplateByID → fetch one template by its ID
func (d *DB) GetTemplateByID(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template
	err := d.Bun.NewSelect().
		Model(&template).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &template, nil
}

// GetAllTemplates → every template, most recently updated first. Bundle
// selection relies on this ordering being stable.
func (d *DB) GetAllTemplates(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := d.Bun.NewSelect().
		Model(&templates).
		Order("updated_at DESC").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// GetTemplatesByCategory → templates in one category, most recent first
func (d *DB) GetTemplatesByCategory(ctx context.Context, category string) ([]models.Template, error) {
	var templates []models.Template
	err := d.Bun.NewSelect().
		Model(&templates).
		Where("category = ?", category).
		Order("updated_at DESC").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// UpdateTemplate → update allowed fields and bump updated_at
func (d *DB) UpdateTemplate(ctx context.Context, template *models.Template) error {
	template.UpdatedAt = time.Now()
	res, err := d.Bun.NewUpdate().
		Model(template).
		Column("title", "category", "narrative", "prompt_content",
			"trend_intensity", "energy_score", "remix_count", "updated_at").
		Where("id = ?", template.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// DeleteTemplate → delete a template by ID
func (d *DB) DeleteTemplate(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Template)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

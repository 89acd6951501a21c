package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"template-store/internal/models"
	"template-store/internal/templates/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	err = bunDB.ResetModel(context.Background(), (*models.Template)(nil))
	if err != nil {
		t.Fatalf("Failed to create templates table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func newTemplate(title, category string, updatedAt time.Time) *models.Template {
	return &models.Template{
		ID:             uuid.New().String(),
		Title:          title,
		Category:       category,
		Narrative:      "a narrative",
		PromptContent:  "a prompt",
		TrendIntensity: 50,
		EnergyScore:    50,
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
}

func TestCreateAndGetTemplate(t *testing.T) {
	templateDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	tpl := newTemplate("Neon Sprawl", "Technology", time.Now())

	err := templateDB.CreateTemplate(ctx, tpl)
	assert.NoError(t, err)

	got, err := templateDB.GetTemplateByID(ctx, tpl.ID)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "Neon Sprawl", got.Title)
	assert.Equal(t, "Technology", got.Category)

	_, err = templateDB.GetTemplateByID(ctx, "non-existent")
	assert.ErrorIs(t, err, db.ErrTemplateNotFound)
}

func TestGetAllTemplatesOrdering(t *testing.T) {
	templateDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	base := time.Now().Add(-1 * time.Hour)

	oldest := newTemplate("Oldest", "General", base)
	middle := newTemplate("Middle", "General", base.Add(10*time.Minute))
	newest := newTemplate("Newest", "General", base.Add(20*time.Minute))

	for _, tpl := range []*models.Template{oldest, newest, middle} {
		assert.NoError(t, templateDB.CreateTemplate(ctx, tpl))
	}

	all, err := templateDB.GetAllTemplates(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "Newest", all[0].Title)
	assert.Equal(t, "Middle", all[1].Title)
	assert.Equal(t, "Oldest", all[2].Title)
}

func TestGetTemplatesByCategory(t *testing.T) {
	templateDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, templateDB.CreateTemplate(ctx, newTemplate("Tech One", "Technology", now)))
	assert.NoError(t, templateDB.CreateTemplate(ctx, newTemplate("Tech Two", "Technology", now.Add(time.Minute))))
	assert.NoError(t, templateDB.CreateTemplate(ctx, newTemplate("Politics One", "Politics", now)))

	tech, err := templateDB.GetTemplatesByCategory(ctx, "Technology")
	assert.NoError(t, err)
	assert.Len(t, tech, 2)
	assert.Equal(t, "Tech Two", tech[0].Title)

	empty, err := templateDB.GetTemplatesByCategory(ctx, "Sports")
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateTemplate(t *testing.T) {
	templateDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	tpl := newTemplate("Original", "General", time.Now().Add(-time.Hour))
	assert.NoError(t, templateDB.CreateTemplate(ctx, tpl))

	before := tpl.UpdatedAt
	tpl.Title = "Updated"
	tpl.TrendIntensity = 80
	err := templateDB.UpdateTemplate(ctx, tpl)
	assert.NoError(t, err)

	got, err := templateDB.GetTemplateByID(ctx, tpl.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.Equal(t, 80, got.TrendIntensity)
	assert.True(t, got.UpdatedAt.After(before))

	missing := newTemplate("Ghost", "General", time.Now())
	err = templateDB.UpdateTemplate(ctx, missing)
	assert.ErrorIs(t, err, db.ErrTemplateNotFound)
}

func TestDeleteTemplate(t *testing.T) {
	templateDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	tpl := newTemplate("Doomed", "General", time.Now())
	assert.NoError(t, templateDB.CreateTemplate(ctx, tpl))

	err := templateDB.DeleteTemplate(ctx, tpl.ID)
	assert.NoError(t, err)

	_, err = templateDB.GetTemplateByID(ctx, tpl.ID)
	assert.ErrorIs(t, err, db.ErrTemplateNotFound)

	err = templateDB.DeleteTemplate(ctx, tpl.ID)
	assert.ErrorIs(t, err, db.ErrTemplateNotFound)
}

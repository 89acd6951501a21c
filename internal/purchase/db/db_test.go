package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"template-store/internal/models"
	"template-store/internal/purchase/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

	err = bunDB.ResetModel(context.Background(), (*models.Purchase)(nil))
	if err != nil {
		t.Fatalf("Failed to create purchases table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func newPurchase(sessionID, token string) *models.Purchase {
	return &models.Purchase{
		ID:              uuid.New().String(),
		StripeSessionID: sessionID,
		BundleType:      "starter",
		Amount:          1299,
		CustomerEmail:   "a@b.com",
		DownloadToken:   token,
		Status:          models.PurchasePending,
		CreatedAt:       time.Now(),
	}
}

func TestCreateAndLookupPurchase(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	p := newPurchase("sess_1", "tok_1")

	require.NoError(t, ledger.CreatePurchase(ctx, p))

	bySession, err := ledger.GetBySessionID(ctx, "sess_1")
	assert.NoError(t, err)
	assert.Equal(t, p.ID, bySession.ID)
	assert.Equal(t, models.PurchasePending, bySession.Status)
	assert.Empty(t, bySession.TemplateIDs)

	byToken, err := ledger.GetByToken(ctx, "tok_1")
	assert.NoError(t, err)
	assert.Equal(t, p.ID, byToken.ID)

	_, err = ledger.GetBySessionID(ctx, "sess_missing")
	assert.ErrorIs(t, err, db.ErrPurchaseNotFound)

	_, err = ledger.GetByToken(ctx, "tok_missing")
	assert.ErrorIs(t, err, db.ErrPurchaseNotFound)
}

func TestCreatePurchaseDuplicateSession(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	require.NoError(t, ledger.CreatePurchase(ctx, newPurchase("sess_dup", "tok_a")))

	err := ledger.CreatePurchase(ctx, newPurchase("sess_dup", "tok_b"))
	assert.ErrorIs(t, err, db.ErrDuplicateSession)
}

func TestCompletePurchase(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	p := newPurchase("sess_2", "tok_2")
	require.NoError(t, ledger.CreatePurchase(ctx, p))

	templateIDs := []string{"t1", "t2", "t3"}
	err := ledger.CompletePurchase(ctx, p.ID, templateIDs)
	assert.NoError(t, err)

	got, err := ledger.GetBySessionID(ctx, "sess_2")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCompleted, got.Status)
	assert.Equal(t, templateIDs, got.TemplateIDs)
}

func TestCompletePurchaseIdempotent(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	p := newPurchase("sess_3", "tok_3")
	require.NoError(t, ledger.CreatePurchase(ctx, p))

	templateIDs := []string{"t1", "t2", "t3"}
	require.NoError(t, ledger.CompletePurchase(ctx, p.ID, templateIDs))

	// A duplicate delivery with the same selection is a no-op
	err := ledger.CompletePurchase(ctx, p.ID, templateIDs)
	assert.NoError(t, err)

	got, err := ledger.GetBySessionID(ctx, "sess_3")
	require.NoError(t, err)
	assert.Equal(t, templateIDs, got.TemplateIDs)
}

func TestCompletePurchaseDifferentDataRejected(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	p := newPurchase("sess_4", "tok_4")
	require.NoError(t, ledger.CreatePurchase(ctx, p))

	require.NoError(t, ledger.CompletePurchase(ctx, p.ID, []string{"t1", "t2"}))

	// Completing again with a different selection must never overwrite
	err := ledger.CompletePurchase(ctx, p.ID, []string{"t9"})
	assert.ErrorIs(t, err, db.ErrInvalidTransition)

	got, err := ledger.GetBySessionID(ctx, "sess_4")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, got.TemplateIDs)
}

func TestCompleteMissingPurchase(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	err := ledger.CompletePurchase(context.Background(), "missing-id", []string{"t1"})
	assert.ErrorIs(t, err, db.ErrPurchaseNotFound)
}

func TestMarkFailed(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	p := newPurchase("sess_5", "tok_5")
	require.NoError(t, ledger.CreatePurchase(ctx, p))

	assert.NoError(t, ledger.MarkFailed(ctx, p.ID))
	// Repeat delivery of the failure is tolerated
	assert.NoError(t, ledger.MarkFailed(ctx, p.ID))

	got, err := ledger.GetBySessionID(ctx, "sess_5")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseFailed, got.Status)

	// A failed purchase can never move to completed
	err = ledger.CompletePurchase(ctx, p.ID, []string{"t1"})
	assert.ErrorIs(t, err, db.ErrInvalidTransition)
}

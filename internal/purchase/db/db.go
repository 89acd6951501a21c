package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"template-store/internal/models"

	"github.com/uptrace/bun"
)

var (
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrDuplicateSession  = errors.New("purchase already exists for session")
	ErrInvalidTransition = errors.New("invalid purchase status transition")
)

type DB struct {
	Bun *bun.DB
}

// CreatePurchase → insert new pending ledger row. The session ID and the
// download token are both unique columns; a second insert for the same
// session fails with ErrDuplicateSession.
func (d *DB) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now()
	}
	if purchase.Status == "" {
		purchase.Status = models.PurchasePending
	}

	_, err := d.Bun.NewInsert().Model(purchase).Exec(ctx)
	if err != nil {
		// The unique constraint is the arbiter under concurrent inserts;
		// re-read to report the duplicate distinctly from other failures.
		if existing, lookupErr := d.GetBySessionID(ctx, purchase.StripeSessionID); lookupErr == nil && existing != nil {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}

// GetBySessionID → fetch one purchase by its payment-provider session ID
func (d *DB) GetBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchase).
		Where("stripe_session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

// GetByToken → fetch one purchase by its download token
func (d *DB) GetByToken(ctx context.Context, token string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchase).
		Where("download_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

// CompletePurchase transitions pending -> completed and binds the selected
// template IDs, as a single conditional update. Concurrent duplicate webhook
// deliveries race here; only one wins the UPDATE, the others observe zero
// rows affected and fall through to the idempotency re-read.
func (d *DB) CompletePurchase(ctx context.Context, id string, templateIDs []string) error {
	updated := &models.Purchase{ID: id, Status: models.PurchaseCompleted, TemplateIDs: templateIDs}
	res, err := d.Bun.NewUpdate().
		Model(updated).
		Column("status", "template_ids").
		Where("id = ? AND status = ?", id, models.PurchasePending).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// Nothing was pending. Either the row is gone, or it is already
	// terminal. Completed-with-same-data is a duplicate delivery and fine;
	// terminal-with-different-data means the ledger would be overwritten,
	// which must never happen silently.
	existing, err := d.getByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == models.PurchaseCompleted && equalIDs(existing.TemplateIDs, templateIDs) {
		return nil
	}
	return ErrInvalidTransition
}

// MarkFailed transitions pending -> failed. Already-failed rows are treated
// as duplicates; any other terminal state is an invariant violation.
func (d *DB) MarkFailed(ctx context.Context, id string) error {
	failed := &models.Purchase{ID: id, Status: models.PurchaseFailed}
	res, err := d.Bun.NewUpdate().
		Model(failed).
		Column("status").
		Where("id = ? AND status = ?", id, models.PurchasePending).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	existing, err := d.getByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == models.PurchaseFailed {
		return nil
	}
	return ErrInvalidTransition
}

func (d *DB) getByID(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchase).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

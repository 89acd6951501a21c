package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

// Purchase is one row of the purchase ledger. The download token is minted
// at creation and never regenerated; status only ever moves
// pending -> completed or pending -> failed. Only the webhook reconciler
// mutates status and bound template IDs.
type Purchase struct {
	bun.BaseModel `bun:"table:purchases"`

	ID              string         `bun:"id,pk" json:"id"`
	StripeSessionID string         `bun:"stripe_session_id,notnull,unique" json:"stripeSessionId"`
	BundleType      string         `bun:"bundle_type,notnull" json:"bundleType"`
	Amount          int64          `bun:"amount,notnull" json:"amount"`
	CustomerEmail   string         `bun:"customer_email,notnull" json:"customerEmail"`
	TemplateIDs     []string       `bun:"template_ids" json:"templateIds"`
	DownloadToken   string         `bun:"download_token,notnull,unique" json:"-"`
	Status          PurchaseStatus `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time      `bun:"created_at,notnull" json:"createdAt"`
}

type CheckoutRequest struct {
	BundleID string `json:"bundleId"`
	Email    string `json:"email,omitempty"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// PurchaseSummary is what the success page sees once payment confirms.
// It is the only surface that hands the download token back to the buyer.
type PurchaseSummary struct {
	BundleType    string         `json:"bundleType"`
	BundleName    string         `json:"bundleName"`
	Amount        int64          `json:"amount"`
	DownloadToken string         `json:"downloadToken"`
	Status        PurchaseStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type DownloadBundle struct {
	BundleType   string     `json:"bundleType"`
	BundleName   string     `json:"bundleName"`
	PurchaseDate time.Time  `json:"purchaseDate"`
	Templates    []Template `json:"templates"`
}

type PurchaseEvent struct {
	Type       string    `json:"type"`
	PurchaseID string    `json:"purchase_id"`
	SessionID  string    `json:"session_id"`
	BundleType string    `json:"bundle_type"`
	Timestamp  time.Time `json:"timestamp"`
}

package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"template-store/internal/catalog"
	"template-store/internal/logger"
	"template-store/internal/models"
	"template-store/internal/purchase/db"
	templatedb "template-store/internal/templates/db"
	"template-store/internal/utils"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

var (
	ErrPurchaseNotReady = errors.New("purchase not completed yet")
	ErrNoTemplatesBound = errors.New("no templates assigned to purchase")
)

type LedgerDB interface {
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	GetByToken(ctx context.Context, token string) (*models.Purchase, error)
	CompletePurchase(ctx context.Context, id string, templateIDs []string) error
	MarkFailed(ctx context.Context, id string) error
}

type TemplateStore interface {
	GetAllTemplates(ctx context.Context) ([]models.Template, error)
	GetTemplatesByCategory(ctx context.Context, category string) ([]models.Template, error)
	GetTemplateByID(ctx context.Context, id string) (*models.Template, error)
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, bundle catalog.BundleDefinition, email, downloadToken string) (*stripe.CheckoutSession, error)
	VerifyWebhookEvent(payload []byte, sigHeader string) (stripe.Event, *WebhookError)
}

type EventDedup interface {
	MarkEventSeen(ctx context.Context, eventID string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

type KafkaPublisher interface {
	PublishPurchaseCreated(purchase models.Purchase) error
	PublishPurchaseCompleted(purchase models.Purchase) error
	PublishPurchaseFailed(purchase models.Purchase) error
}

type EventEmitter interface {
	EmitPurchaseEvent(event models.PurchaseEvent)
}

// PurchaseService owns the purchase lifecycle: it initiates checkout,
// reconciles asynchronous payment webhooks against the ledger, and gates
// downloads behind the purchase token. Payments may be nil when the
// provider is not configured; Dedup, Kafka and Emitter are optional.
type PurchaseService struct {
	DB        LedgerDB
	Templates TemplateStore
	Payments  PaymentProvider
	Dedup     EventDedup
	Kafka     KafkaPublisher
	Emitter   EventEmitter
	logger    *logger.Logger
}

func NewPurchaseService(ledger LedgerDB, templates TemplateStore, payments PaymentProvider, dedup EventDedup, kafka KafkaPublisher, emitter EventEmitter, log *logger.Logger) *PurchaseService {
	return &PurchaseService{
		DB:        ledger,
		Templates: templates,
		Payments:  payments,
		Dedup:     dedup,
		Kafka:     kafka,
		Emitter:   emitter,
		logger:    log,
	}
}

// ---------------- CHECKOUT ----------------

// Checkout validates the bundle, creates a hosted payment session and
// persists a pending ledger row keyed by the provider's session ID. The
// download token is minted here, exactly once. If persisting fails after
// the remote session was created, the session is left orphaned on the
// provider side; re-initiating checkout is the recovery path.
func (s *PurchaseService) Checkout(ctx context.Context, bundleID, email string) (string, error) {
	bundle, err := catalog.Lookup(bundleID)
	if err != nil {
		return "", err
	}

	if s.Payments == nil {
		s.logger.Warn("CHECKOUT", "Checkout attempted but payment system is not configured")
		return "", ErrStripeNotConfigured
	}

	downloadToken, err := utils.GenerateDownloadToken()
	if err != nil {
		return "", err
	}

	session, err := s.Payments.CreateCheckoutSession(ctx, bundle, email, downloadToken)
	if err != nil {
		return "", err
	}

	customerEmail := email
	if customerEmail == "" {
		customerEmail = "unknown"
	}

	purchase := &models.Purchase{
		ID:              uuid.New().String(),
		StripeSessionID: session.ID,
		BundleType:      bundle.ID,
		Amount:          bundle.Amount,
		CustomerEmail:   customerEmail,
		DownloadToken:   downloadToken,
		Status:          models.PurchasePending,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.CreatePurchase(ctx, purchase); err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to persist purchase for session %s: %v", session.ID, err))
		return "", fmt.Errorf("failed to persist purchase: %w", err)
	}

	s.logger.LogPurchase("CREATE", purchase.ID,
		fmt.Sprintf("bundle=%s amount=%d token=%s", bundle.ID, bundle.Amount, utils.TruncateToken(downloadToken)))

	if s.Kafka != nil {
		if err := s.Kafka.PublishPurchaseCreated(*purchase); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish purchase created event: %v", err))
		}
	}

	return session.URL, nil
}

// ---------------- WEBHOOK RECONCILER ----------------

// HandleStripeWebhook processes payment-provider events. Deliveries are
// at-least-once and unordered relative to the buyer's browser redirect.
// The returned error is non-nil only for signature or configuration
// failures; every verified event is acknowledged so the provider stops
// redelivering messages that will never need a retry.
func (s *PurchaseService) HandleStripeWebhook(r *http.Request) error {
	if s.Payments == nil {
		s.logger.Error("WEBHOOK", "Webhook received but payment system is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusServiceUnavailable,
			PublicError:   "Payment system not configured",
			InternalError: "Webhook received but payment system is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	event, werr := s.Payments.VerifyWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if werr != nil {
		return werr
	}

	ctx := r.Context()

	// Fast-path dedup on the event ID. Best effort: if Redis is down we
	// fall through to the ledger's conditional update.
	if s.Dedup != nil && event.ID != "" {
		first, derr := s.Dedup.MarkEventSeen(ctx, event.ID)
		if derr != nil {
			s.logger.Warn("WEBHOOK", fmt.Sprintf("Event dedup unavailable, continuing: %v", derr))
		} else if !first {
			s.logger.Info("WEBHOOK", fmt.Sprintf("Duplicate event %s, already processed", event.ID))
			return nil
		}
	}

	s.logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
			return nil
		}
		s.handleCheckoutCompleted(ctx, event.ID, session.ID)

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
			return nil
		}
		s.handleCheckoutExpired(ctx, event.ID, session.ID)

	default:
		s.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

// handleCheckoutCompleted binds templates to the purchase and completes it.
// Unknown sessions are acknowledged silently; the event may belong to a
// different deployment or a provider test delivery.
func (s *PurchaseService) handleCheckoutCompleted(ctx context.Context, eventID, sessionID string) {
	purchase, err := s.DB.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrPurchaseNotFound) {
			s.logger.Info("WEBHOOK", fmt.Sprintf("No purchase for session %s, acknowledging", sessionID))
			return
		}
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to look up session %s: %v", sessionID, err))
		s.forgetEvent(ctx, eventID)
		return
	}

	if purchase.Status == models.PurchaseCompleted {
		s.logger.Info("WEBHOOK", fmt.Sprintf("Purchase %s already completed, duplicate delivery", purchase.ID))
		return
	}

	bundle, err := catalog.Lookup(purchase.BundleType)
	if err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Purchase %s references unknown bundle %s", purchase.ID, purchase.BundleType))
		return
	}

	templateIDs, err := s.selectTemplatesForBundle(ctx, bundle)
	if err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to select templates for purchase %s: %v", purchase.ID, err))
		s.forgetEvent(ctx, eventID)
		return
	}

	if err := s.DB.CompletePurchase(ctx, purchase.ID, templateIDs); err != nil {
		if errors.Is(err, db.ErrInvalidTransition) {
			// Ledger corruption signal: a terminal row with different data.
			s.logger.Error("WEBHOOK", fmt.Sprintf("Invalid transition completing purchase %s for session %s", purchase.ID, sessionID))
			return
		}
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to complete purchase %s: %v", purchase.ID, err))
		s.forgetEvent(ctx, eventID)
		return
	}

	s.logger.LogPurchase("COMPLETE", purchase.ID,
		fmt.Sprintf("session=%s templates=%d", sessionID, len(templateIDs)))

	purchase.Status = models.PurchaseCompleted
	purchase.TemplateIDs = templateIDs

	if s.Kafka != nil {
		if err := s.Kafka.PublishPurchaseCompleted(*purchase); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish purchase completed event: %v", err))
		}
	}
	if s.Emitter != nil {
		s.Emitter.EmitPurchaseEvent(models.PurchaseEvent{
			Type:       "purchase_completed",
			PurchaseID: purchase.ID,
			SessionID:  purchase.StripeSessionID,
			BundleType: purchase.BundleType,
			Timestamp:  time.Now().UTC(),
		})
	}
}

func (s *PurchaseService) handleCheckoutExpired(ctx context.Context, eventID, sessionID string) {
	purchase, err := s.DB.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrPurchaseNotFound) {
			return
		}
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to look up session %s: %v", sessionID, err))
		s.forgetEvent(ctx, eventID)
		return
	}

	if purchase.Status != models.PurchasePending {
		return
	}

	if err := s.DB.MarkFailed(ctx, purchase.ID); err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to mark purchase %s failed: %v", purchase.ID, err))
		s.forgetEvent(ctx, eventID)
		return
	}

	s.logger.LogPurchase("FAIL", purchase.ID, fmt.Sprintf("session=%s checkout expired", sessionID))

	if s.Kafka != nil {
		if err := s.Kafka.PublishPurchaseFailed(*purchase); err != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish purchase failed event: %v", err))
		}
	}
}

// selectTemplatesForBundle takes an unreserved slice of the catalog,
// most-recently-updated first. Concurrent fulfilments may bind overlapping
// template sets; there is no per-template exclusivity.
func (s *PurchaseService) selectTemplatesForBundle(ctx context.Context, bundle catalog.BundleDefinition) ([]string, error) {
	templates, err := s.Templates.GetAllTemplates(ctx)
	if err != nil {
		return nil, err
	}

	count := bundle.Count
	if len(templates) < count {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Only %d templates available for bundle %s (wants %d)", len(templates), bundle.ID, count))
		count = len(templates)
	}

	templateIDs := make([]string, 0, count)
	for _, t := range templates[:count] {
		templateIDs = append(templateIDs, t.ID)
	}
	return templateIDs, nil
}

func (s *PurchaseService) forgetEvent(ctx context.Context, eventID string) {
	if s.Dedup == nil || eventID == "" {
		return
	}
	if err := s.Dedup.ForgetEvent(ctx, eventID); err != nil {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Failed to release event %s from dedup: %v", eventID, err))
	}
}

// ---------------- PURCHASE SUMMARY ----------------

// GetPurchaseSummary reports the state of one checkout session to the
// success page. The download token is only released once the purchase is
// completed.
func (s *PurchaseService) GetPurchaseSummary(ctx context.Context, sessionID string) (*models.PurchaseSummary, error) {
	purchase, err := s.DB.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if purchase.Status != models.PurchaseCompleted {
		return nil, ErrPurchaseNotReady
	}

	bundleName := purchase.BundleType
	if bundle, err := catalog.Lookup(purchase.BundleType); err == nil {
		bundleName = bundle.Name
	}

	return &models.PurchaseSummary{
		BundleType:    purchase.BundleType,
		BundleName:    bundleName,
		Amount:        purchase.Amount,
		DownloadToken: purchase.DownloadToken,
		Status:        purchase.Status,
		CreatedAt:     purchase.CreatedAt,
	}, nil
}

// ---------------- DOWNLOAD GATE ----------------

// ResolveDownload authorizes a download token and resolves its bound
// templates. Template IDs that no longer resolve are dropped from the
// response; templates are deletable independent of purchases. Read-only and
// safe to call repeatedly.
func (s *PurchaseService) ResolveDownload(ctx context.Context, token string) (*models.DownloadBundle, error) {
	purchase, err := s.DB.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if purchase.Status != models.PurchaseCompleted {
		s.logger.Warn("DOWNLOAD", fmt.Sprintf("Download attempt for %s purchase with token %s",
			purchase.Status, utils.TruncateToken(token)))
		return nil, ErrPurchaseNotReady
	}

	if len(purchase.TemplateIDs) == 0 {
		s.logger.Error("DOWNLOAD", fmt.Sprintf("Completed purchase %s has no bound templates", purchase.ID))
		return nil, ErrNoTemplatesBound
	}

	resolved := make([]models.Template, 0, len(purchase.TemplateIDs))
	for _, id := range purchase.TemplateIDs {
		template, err := s.Templates.GetTemplateByID(ctx, id)
		if err != nil {
			if errors.Is(err, templatedb.ErrTemplateNotFound) {
				s.logger.Warn("DOWNLOAD", fmt.Sprintf("Bound template %s no longer exists, dropping", id))
				continue
			}
			return nil, err
		}
		resolved = append(resolved, *template)
	}

	bundleName := purchase.BundleType
	if bundle, err := catalog.Lookup(purchase.BundleType); err == nil {
		bundleName = bundle.Name
	}

	s.logger.Info("DOWNLOAD", fmt.Sprintf("Serving %d templates for token %s",
		len(resolved), utils.TruncateToken(token)))

	return &models.DownloadBundle{
		BundleType:   purchase.BundleType,
		BundleName:   bundleName,
		PurchaseDate: purchase.CreatedAt,
		Templates:    resolved,
	}, nil
}

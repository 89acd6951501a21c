package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"template-store/internal/catalog"
	"template-store/internal/config"
	"template-store/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrStripeNotConfigured = errors.New("payment system not configured")
	ErrStripeAPIError      = errors.New("stripe API error")
)

// PaymentClient wraps the Stripe API for hosted checkout sessions and
// webhook verification. It is constructed once at process start and passed
// into the purchase service; there is no package-level client state.
type PaymentClient struct {
	client        *client.API
	webhookSecret string
	baseURL       string
	log           *logger.Logger
}

// NewPaymentClient builds a Stripe client from configuration. A missing
// secret key returns ErrStripeNotConfigured so the caller can degrade
// checkout instead of crashing.
func NewPaymentClient(cfg config.StripeConfig, baseURL string, log *logger.Logger) (*PaymentClient, error) {
	if cfg.SecretKey == "" {
		log.Warn("STRIPE", "STRIPE_SECRET_KEY not set, checkout disabled")
		return nil, ErrStripeNotConfigured
	}

	sc := client.New(cfg.SecretKey, nil)

	if cfg.WebhookSecret == "" {
		log.Warn("STRIPE", "STRIPE_WEBHOOK_SECRET not set, webhook processing disabled")
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &PaymentClient{
		client:        sc,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		log:           log,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session for a
// bundle. The download token travels in the session metadata so the record
// can be reconciled even if the local insert is lost.
func (p *PaymentClient) CreateCheckoutSession(ctx context.Context, bundle catalog.BundleDefinition, email, downloadToken string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("Amphetamemes %s", bundle.Name)),
						Description: stripe.String(fmt.Sprintf("%d psychedelic art templates with energetic metadata", bundle.Count)),
					},
					UnitAmount: stripe.Int64(bundle.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.baseURL + "/store"),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("bundle_type", bundle.ID)
	params.AddMetadata("download_token", downloadToken)

	session, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	p.log.Info("STRIPE", fmt.Sprintf("Created checkout session %s for bundle %s", session.ID, bundle.ID))
	return session, nil
}

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// VerifyWebhookEvent checks the Stripe-Signature header against the raw
// request body. Verification failure is a security boundary: the event is
// never inspected further.
func (p *PaymentClient) VerifyWebhookEvent(payload []byte, sigHeader string) (stripe.Event, *WebhookError) {
	if p.webhookSecret == "" {
		p.log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return stripe.Event{}, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusServiceUnavailable,
			PublicError:   "Webhook processing not configured",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.webhookSecret, opts)
	if err != nil {
		p.log.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return stripe.Event{}, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	return event, nil
}

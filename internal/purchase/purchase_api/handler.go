package purchase_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"template-store/internal/catalog"
	"template-store/internal/logger"
	"template-store/internal/models"
	"template-store/internal/purchase"
	"template-store/internal/purchase/db"
	"template-store/internal/purchase/qr"
	templatedb "template-store/internal/templates/db"
	"template-store/internal/templates/export"
	"template-store/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	PurchaseService *purchase.PurchaseService
	QR              *qr.Generator
	Logger          *logger.Logger
}

func NewHandler(purchaseService *purchase.PurchaseService, qrGen *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{
		PurchaseService: purchaseService,
		QR:              qrGen,
		Logger:          log,
	}
}

// Checkout starts a hosted payment session for one bundle.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	checkoutURL, err := h.PurchaseService.Checkout(r.Context(), req.BundleID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownBundle):
			h.Logger.Warn("API", fmt.Sprintf("Checkout: unknown bundle %q", req.BundleID))
			http.Error(w, "Invalid bundle type", http.StatusBadRequest)
		case errors.Is(err, purchase.ErrStripeNotConfigured):
			h.Logger.Error("API", "Checkout: payment provider not configured")
			http.Error(w, "Payment processing not configured", http.StatusServiceUnavailable)
		default:
			h.Logger.Error("API", fmt.Sprintf("Checkout: failed to create session: %v", err))
			http.Error(w, "Failed to create checkout session", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(models.CheckoutResponse{CheckoutURL: checkoutURL}); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", "Checkout: session created successfully")
}

// PaymentWebhook receives asynchronous payment events from Stripe. Every
// verified event is acknowledged with 200 so the provider stops retrying;
// only signature and configuration failures are rejected.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	err := h.PurchaseService.HandleStripeWebhook(r)
	if err != nil {
		var werr *purchase.WebhookError
		if errors.As(err, &werr) {
			h.Logger.Error("WEBHOOK", fmt.Sprintf("PaymentWebhook: %s error: %s", werr.Category, werr.InternalError))
			http.Error(w, werr.PublicError, werr.StatusCode)
			return
		}
		h.Logger.Error("WEBHOOK", fmt.Sprintf("PaymentWebhook: %v", err))
		http.Error(w, "Webhook processing failed", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"received":true}`))
}

// GetPurchase serves the success page lookup. The download token is only
// released once the webhook reconciler has completed the purchase.
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	h.Logger.Info("API", fmt.Sprintf("GetPurchase: sessionId=%s", sessionID))

	summary, err := h.PurchaseService.GetPurchaseSummary(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrPurchaseNotFound):
			http.Error(w, "Purchase not found", http.StatusNotFound)
		case errors.Is(err, purchase.ErrPurchaseNotReady):
			http.Error(w, "Purchase not completed yet", http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("GetPurchase: %v", err))
			http.Error(w, "Failed to fetch purchase", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetPurchase: failed to encode response: %v", err))
	}
}

// Download serves the purchased templates behind the bearer token. The
// optional format query selects json, csv or text rendering.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.Logger.Info("API", fmt.Sprintf("Download: token=%s", utils.TruncateToken(token)))

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, "Unknown format, expected json, csv or text", http.StatusBadRequest)
		return
	}

	bundle, err := h.PurchaseService.ResolveDownload(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrPurchaseNotFound):
			http.Error(w, "Invalid download token", http.StatusNotFound)
		case errors.Is(err, purchase.ErrPurchaseNotReady):
			http.Error(w, "Purchase not completed", http.StatusForbidden)
		case errors.Is(err, purchase.ErrNoTemplatesBound):
			h.Logger.Error("API", "Download: completed purchase has no templates bound")
			http.Error(w, "No templates found for purchase", http.StatusNotFound)
		default:
			h.Logger.Error("API", fmt.Sprintf("Download: %v", err))
			http.Error(w, "Failed to resolve download", http.StatusInternalServerError)
		}
		return
	}

	body, err := export.Render(bundle, format)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Download: failed to render bundle: %v", err))
		http.Error(w, "Failed to render bundle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Write(body)
}

// DownloadQR renders the download link for a token as a PNG QR code.
func (h *Handler) DownloadQR(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	// The gate checks run before anything is rendered so the QR endpoint
	// cannot be used to probe token validity differently from the download.
	if _, err := h.PurchaseService.ResolveDownload(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, db.ErrPurchaseNotFound):
			http.Error(w, "Invalid download token", http.StatusNotFound)
		case errors.Is(err, purchase.ErrPurchaseNotReady):
			http.Error(w, "Purchase not completed", http.StatusForbidden)
		case errors.Is(err, purchase.ErrNoTemplatesBound):
			http.Error(w, "No templates found for purchase", http.StatusNotFound)
		default:
			h.Logger.Error("API", fmt.Sprintf("DownloadQR: %v", err))
			http.Error(w, "Failed to resolve download", http.StatusInternalServerError)
		}
		return
	}

	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 64 || parsed > 1024 {
			http.Error(w, "Size must be between 64 and 1024", http.StatusBadRequest)
			return
		}
		size = parsed
	}

	png, err := h.QR.DownloadLinkPNG(token, size)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DownloadQR: failed to generate QR code: %v", err))
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// ListBundles exposes the static bundle catalog to the storefront.
func (h *Handler) ListBundles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(catalog.All()); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBundles: failed to encode response: %v", err))
	}
}

// ListTemplates is the public storefront read of the template catalog,
// optionally filtered by category.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var templates []models.Template
	var err error
	if category := r.URL.Query().Get("category"); category != "" {
		templates, err = h.PurchaseService.Templates.GetTemplatesByCategory(r.Context(), category)
	} else {
		templates, err = h.PurchaseService.Templates.GetAllTemplates(r.Context())
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTemplates: %v", err))
		http.Error(w, "Failed to fetch templates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(templates); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTemplates: failed to encode response: %v", err))
	}
}

// GetTemplate returns one template by ID for the storefront detail view.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "templateId")

	template, err := h.PurchaseService.Templates.GetTemplateByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, templatedb.ErrTemplateNotFound) {
			http.Error(w, "Template not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetTemplate: %v", err))
		http.Error(w, "Failed to fetch template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(template); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTemplate: failed to encode response: %v", err))
	}
}

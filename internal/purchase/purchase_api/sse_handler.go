package purchase_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"template-store/internal/logger"
	"template-store/internal/models"
	"template-store/internal/sse"

	"github.com/go-chi/chi/v5"
)

// SSEHandler streams purchase fulfilment events to the success page while
// it waits for the webhook reconciler to confirm payment.
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.PurchaseEventEmitter
}

func NewSSEHandler(log *logger.Logger, emitter *sse.PurchaseEventEmitter) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
	}
}

// HandleSessionEvents streams purchase events for one checkout session.
func (h *SSEHandler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)

	// Context cancels when the client disconnects
	ctx := r.Context()

	eventChan := h.EventEmitter.SubscribeToSession(ctx, sessionID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"sessionId\":\"%s\"}\n\n", sessionID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to purchase events for session: %s", sessionID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for session: %s", sessionID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize purchase event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: purchase\ndata: %s\n\n", jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from purchase events for session: %s", sessionID))
			return
		}
	}
}

// EmitPurchaseEvent broadcasts a purchase event to all subscribed clients.
func (h *SSEHandler) EmitPurchaseEvent(event models.PurchaseEvent) {
	h.EventEmitter.EmitPurchaseEvent(event)
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

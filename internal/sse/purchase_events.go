package sse

import (
	"context"
	"sync"

	"template-store/internal/models"
)

// PurchaseEventEmitter manages SSE connections and event broadcasting for
// purchase fulfilment. The success page subscribes by checkout session ID
// and is told the moment the webhook reconciler completes the purchase.
type PurchaseEventEmitter struct {
	// key: stripe session ID, value: slice of client channels
	sessionClients     map[string][]chan models.PurchaseEvent
	sessionClientMutex sync.RWMutex
}

// NewPurchaseEventEmitter creates a new SSE event emitter for purchase events
func NewPurchaseEventEmitter() *PurchaseEventEmitter {
	return &PurchaseEventEmitter{
		sessionClients: make(map[string][]chan models.PurchaseEvent),
	}
}

// SubscribeToSession adds a client waiting on one checkout session
func (e *PurchaseEventEmitter) SubscribeToSession(ctx context.Context, sessionID string) chan models.PurchaseEvent {
	clientChan := make(chan models.PurchaseEvent, 10)

	e.sessionClientMutex.Lock()
	if e.sessionClients[sessionID] == nil {
		e.sessionClients[sessionID] = []chan models.PurchaseEvent{}
	}
	e.sessionClients[sessionID] = append(e.sessionClients[sessionID], clientChan)
	e.sessionClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeSessionClient(sessionID, clientChan)
	}()

	return clientChan
}

// EmitPurchaseEvent broadcasts a purchase event to all clients watching its
// session
func (e *PurchaseEventEmitter) EmitPurchaseEvent(event models.PurchaseEvent) {
	e.sessionClientMutex.RLock()
	clients := e.sessionClients[event.SessionID]
	e.sessionClientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send so a slow client cannot stall the reconciler
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *PurchaseEventEmitter) removeSessionClient(sessionID string, clientChan chan models.PurchaseEvent) {
	e.sessionClientMutex.Lock()
	defer e.sessionClientMutex.Unlock()

	clients := e.sessionClients[sessionID]
	for i, ch := range clients {
		if ch == clientChan {
			e.sessionClients[sessionID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.sessionClients[sessionID]) == 0 {
		delete(e.sessionClients, sessionID)
	}
}

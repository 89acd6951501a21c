package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Dedup remembers which payment-provider event IDs have already been
// handled. It is a best-effort fast path for redelivered webhooks; the
// ledger's conditional update remains the correctness mechanism, so a Redis
// outage degrades to slightly more database work, never to double
// fulfilment.
type Dedup struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewDedup(client *redis.Client) *Dedup {
	return &Dedup{
		Client: client,
		Logger: log.Default(),
	}
}

// getEventTTL returns how long processed event IDs are remembered. Stripe
// retries webhooks for up to three days, so the window defaults to four.
func (d *Dedup) getEventTTL() time.Duration {
	defaultTTL := 96 * time.Hour

	ttlStr := os.Getenv("WEBHOOK_DEDUP_TTL_HOURS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlHours, err := strconv.Atoi(ttlStr)
	if err != nil {
		d.Logger.Println("REDIS: Invalid WEBHOOK_DEDUP_TTL_HOURS value '" + ttlStr + "', using default 96 hours")
		return defaultTTL
	}

	return time.Duration(ttlHours) * time.Hour
}

// MarkEventSeen records an event ID and reports whether this is the first
// sighting. SetNX makes the claim atomic across concurrent deliveries.
func (d *Dedup) MarkEventSeen(ctx context.Context, eventID string) (bool, error) {
	key := "webhook_event:" + eventID
	first, err := d.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), d.getEventTTL()).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup error: %w", err)
	}
	return first, nil
}

// ForgetEvent releases an event ID so a redelivery can be reprocessed.
// Used when handling failed after the ID was claimed.
func (d *Dedup) ForgetEvent(ctx context.Context, eventID string) error {
	key := "webhook_event:" + eventID
	_, err := d.Client.Del(ctx, key).Result()
	return err
}

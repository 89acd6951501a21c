package kafka

import (
	"context"
	"encoding/json"
	"time"

	"template-store/internal/models"

	kafkago "github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafkago.NewWriter(kafkago.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(eventType string, purchase models.Purchase) error {
	event := models.PurchaseEvent{
		Type:       eventType,
		PurchaseID: purchase.ID,
		SessionID:  purchase.StripeSessionID,
		BundleType: purchase.BundleType,
		Timestamp:  time.Now().UTC(),
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafkago.Message{
			Key:   []byte(purchase.ID),
			Value: msgBytes,
		},
	)
}

// PublishPurchaseCreated streams the pending-ledger-row event to Kafka
func (p *Producer) PublishPurchaseCreated(purchase models.Purchase) error {
	return p.publish("purchase_created", purchase)
}

// PublishPurchaseCompleted streams the fulfilment event to Kafka
func (p *Producer) PublishPurchaseCompleted(purchase models.Purchase) error {
	return p.publish("purchase_completed", purchase)
}

// PublishPurchaseFailed streams the payment-failure event to Kafka
func (p *Producer) PublishPurchaseFailed(purchase models.Purchase) error {
	return p.publish("purchase_failed", purchase)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

package queue

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"order_admin/internal/model"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// Consumer turns Kafka lifecycle events into notification rows. The
// unique event_id index makes redelivered messages no-ops.
type Consumer struct {
	r  *kafka.Reader
	db *gorm.DB
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db: db,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / broken connection
		}

		var event OrderEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Printf("consumer unmarshal: %v", err)
			continue
		}
		if err := event.Validate(); err != nil {
			log.Printf("consumer invalid event: %v", err)
			continue
		}

		payload, _ := json.Marshal(event)
		notification := &model.Notification{
			EventID:  event.EventID,
			OrderID:  event.OrderID,
			Kind:     event.Kind,
			StatusID: event.StatusID,
			Payload:  string(payload),
		}

		if err := c.db.Create(notification).Error; err != nil {
			// Idempotency: a redelivered event hits the UNIQUE index,
			// which counts as done.
			if errorsLikeUnique(err) {
				continue
			}
			log.Printf("consumer db create: %v", err)
			continue
		}
	}
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}

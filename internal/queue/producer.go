package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer wraps the Kafka writer.
type Producer struct {
	w *kafka.Writer
}

// NewProducer configures the writer for reliability:
// - Hash + key: events of one order land on one partition, keeping order.
// - RequireAll: wait for ISR acks to lower loss risk.
// - MaxAttempts/timeouts bound retries.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Close releases the writer.
func (p *Producer) Close() error { return p.w.Close() }

// Publish writes one lifecycle event, keyed by event id.
func (p *Producer) Publish(ctx context.Context, event OrderEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventID),
		Value: b,
	})
}

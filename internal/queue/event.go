package queue

import (
	"context"
	"fmt"
)

// Event kinds published on the order lifecycle stream.
const (
	EventOrderCreated  = "order_created"
	EventStatusChanged = "status_changed"
)

// OrderEvent is one order lifecycle notification. EventID is the
// idempotency key across outbox, Kafka and the notification table.
type OrderEvent struct {
	EventID     string `json:"event_id"`
	OrderID     uint   `json:"order_id"`
	Kind        string `json:"kind"`
	StatusID    uint   `json:"status_id"`
	UserID      string `json:"user_id"`
	Observation string `json:"observation"`
	OccurredAt  int64  `json:"occurred_at"`
}

// Validate does minimal field checks so consumers never process dirty
// messages.
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if e.Kind != EventOrderCreated && e.Kind != EventStatusChanged {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.StatusID == 0 {
		return fmt.Errorf("status_id is required")
	}
	return nil
}

// Sink receives lifecycle events. The HTTP path writes to the Redis
// Stream outbox; tests plug in a recorder.
type Sink interface {
	Publish(ctx context.Context, event OrderEvent) error
}

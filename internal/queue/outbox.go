package queue

import (
	"context"

	rd "github.com/redis/go-redis/v9"
)

// Outbox appends lifecycle events to a Redis Stream. The HTTP request
// only pays for one XADD; the relay forwards to Kafka asynchronously.
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

func (o *Outbox) Publish(ctx context.Context, event OrderEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]interface{}{
			"event_id":    event.EventID,
			"order_id":    uint64(event.OrderID),
			"kind":        event.Kind,
			"status_id":   uint64(event.StatusID),
			"user_id":     event.UserID,
			"observation": event.Observation,
			"occurred_at": event.OccurredAt,
		},
	}).Err()
}

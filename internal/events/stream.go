package events

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wisetech/rras/pkg/logger"
	"github.com/wisetech/rras/pkg/redis"
)

// StreamNotifier appends events to a Redis stream. XADD preserves insertion
// order, which gives consumers the per-run ordering guarantee; at-least-once
// delivery comes from consumer-group acknowledgement on the reading side.
type StreamNotifier struct {
	rdb    *goredis.Client
	stream string
	logger *logger.Logger
}

// NewStreamNotifier builds a notifier over the shared Redis client. A
// disabled client degrades to the nop notifier so callers never branch on
// transport availability.
func NewStreamNotifier(client *redis.Client, stream string, log *logger.Logger) Notifier {
	if !client.Enabled() {
		log.Warn("Event transport disabled, lifecycle events will not be published")
		return NopNotifier{}
	}
	return &StreamNotifier{
		rdb:    client.Redis(),
		stream: stream,
		logger: log,
	}
}

// Publish appends the event to the stream. A transport failure is returned
// to the caller; the event is not buffered or retried here.
func (n *StreamNotifier) Publish(ctx context.Context, event Event) error {
	body, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	id, err := n.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"event_type":     event.Type,
			"routing_key":    event.RoutingKey(),
			"snapshot_id":    event.SnapshotID,
			"correlation_id": event.CorrelationID,
			"body":           body,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish event %s for snapshot %d: %w", event.Type, event.SnapshotID, err)
	}

	n.logger.WithFields(map[string]interface{}{
		"event_type":  event.Type,
		"snapshot_id": event.SnapshotID,
		"stream_id":   id,
	}).Debug("Published lifecycle event")
	return nil
}

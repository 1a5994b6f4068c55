// Package events publishes lifecycle notifications for downstream reporting
// consumers. Delivery is ordered, at-least-once, over a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Event types emitted over the run lifecycle.
const (
	TypeSnapshotCreated      = "SNAPSHOT_CREATED"
	TypeSnapshotValidated    = "SNAPSHOT_VALIDATED"
	TypeCalculationCompleted = "CALCULATION_COMPLETED"
	TypeSnapshotCompleted    = "SNAPSHOT_COMPLETED"
	TypeCalculationFailed    = "CALCULATION_FAILED"
)

// Event is one lifecycle notification. CorrelationID ties every event of a
// single run together; KeyMetrics carries headline figures on completion
// events so consumers can avoid a read-back.
type Event struct {
	Type          string                     `json:"event_type"`
	SnapshotID    int64                      `json:"snapshot_id"`
	ReportingDate string                     `json:"reporting_date"`
	Frequency     string                     `json:"frequency"`
	CorrelationID string                     `json:"correlation_id"`
	Stage         string                     `json:"stage,omitempty"`
	Reason        string                     `json:"reason,omitempty"`
	KeyMetrics    map[string]decimal.Decimal `json:"key_metrics,omitempty"`
	OccurredAt    time.Time                  `json:"occurred_at"`
}

// RoutingKey derives the hierarchical subject consumers filter stream
// entries on, e.g. snapshot.created or calculation.rwa.
func (e Event) RoutingKey() string {
	switch e.Type {
	case TypeSnapshotCreated:
		return "snapshot.created"
	case TypeSnapshotValidated:
		return "snapshot.validated"
	case TypeSnapshotCompleted:
		return "snapshot.completed"
	case TypeCalculationFailed:
		return "calculation.failed"
	case TypeCalculationCompleted:
		return "calculation." + strings.ToLower(strings.TrimSuffix(e.Stage, "_CALCULATION"))
	default:
		return strings.ToLower(e.Type)
	}
}

// Notifier publishes lifecycle events. Implementations must preserve publish
// order for events of the same snapshot.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// NopNotifier discards every event. Used when the event transport is
// disabled and in tests.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) error { return nil }

func marshalEvent(event Event) ([]byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(event)
}

// Package audit records an immutable trail of rule-engine invocations so a
// supervisor can reconstruct how every figure in a filing was produced.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/pkg/logger"
)

// Store persists audit entries.
type Store interface {
	InsertAudit(ctx context.Context, entry *domain.CalculationAudit) error
}

// Trail writes one audit entry per stage invocation. Audit persistence is
// best effort: a failed write is logged and never fails the stage that
// produced the figures.
type Trail struct {
	store  Store
	logger *logger.Logger
}

// NewTrail creates an audit trail backed by the given store.
func NewTrail(store Store, log *logger.Logger) *Trail {
	return &Trail{store: store, logger: log}
}

// Record serializes the stage's input and output summaries and persists the
// entry. Marshal failures degrade to a null payload rather than dropping the
// entry entirely.
func (t *Trail) Record(ctx context.Context, snapshotID int64, stage, rule string, input, output interface{}, started time.Time) {
	entry := &domain.CalculationAudit{
		SnapshotID:      snapshotID,
		Stage:           stage,
		InputData:       t.marshal(snapshotID, stage, "input", input),
		OutputData:      t.marshal(snapshotID, stage, "output", output),
		CalculationRule: rule,
		ExecutedAt:      started,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}

	if err := t.store.InsertAudit(ctx, entry); err != nil {
		t.logger.WithError(err).WithFields(map[string]interface{}{
			"snapshot_id": snapshotID,
			"stage":       stage,
		}).Warn("Failed to persist calculation audit entry")
	}
}

func (t *Trail) marshal(snapshotID int64, stage, side string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.WithError(err).WithFields(map[string]interface{}{
			"snapshot_id": snapshotID,
			"stage":       stage,
			"side":        side,
		}).Warn("Failed to serialize audit payload")
		return []byte("null")
	}
	return data
}

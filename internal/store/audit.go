package store

import (
	"context"
	"fmt"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/pkg/database"
)

// AuditRepository persists the immutable calculation audit trail.
type AuditRepository struct {
	base
}

// NewAuditRepository creates an audit repository over the shared pool.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{base{db: db}}
}

// InsertAudit appends one audit entry. The table has no update or delete
// path; history is only ever added to.
func (r *AuditRepository) InsertAudit(ctx context.Context, entry *domain.CalculationAudit) error {
	err := r.querier(ctx).QueryRow(ctx, `
		INSERT INTO calculation_audit (
			snapshot_id, stage, input_data, output_data,
			calculation_rule, executed_at, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING audit_id`,
		entry.SnapshotID, entry.Stage, entry.InputData, entry.OutputData,
		entry.CalculationRule, entry.ExecutedAt, entry.ExecutionTimeMs,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry for snapshot %d stage %s: %w", entry.SnapshotID, entry.Stage, err)
	}
	return nil
}

// ListAudit returns the audit entries of a snapshot in execution order.
func (r *AuditRepository) ListAudit(ctx context.Context, snapshotID int64) ([]domain.CalculationAudit, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT audit_id, snapshot_id, stage, input_data, output_data,
			calculation_rule, executed_at, execution_time_ms
		FROM calculation_audit
		WHERE snapshot_id = $1
		ORDER BY audit_id`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var entries []domain.CalculationAudit
	for rows.Next() {
		var e domain.CalculationAudit
		err := rows.Scan(&e.ID, &e.SnapshotID, &e.Stage, &e.InputData, &e.OutputData,
			&e.CalculationRule, &e.ExecutedAt, &e.ExecutionTimeMs)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

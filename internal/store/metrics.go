package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/pkg/database"
)

// MetricRepository persists per-loan metric components and snapshot-level
// regulatory metrics.
type MetricRepository struct {
	base
}

// NewMetricRepository creates a metric repository over the shared pool.
func NewMetricRepository(db *database.DB) *MetricRepository {
	return &MetricRepository{base{db: db}}
}

// InsertComponents bulk-loads the per-loan rows produced by the RWA stage.
// ECL columns start NULL; the ECL stage fills them in place later.
func (r *MetricRepository) InsertComponents(ctx context.Context, components []domain.MetricComponent) error {
	if len(components) == 0 {
		return nil
	}

	_, err := r.querier(ctx).CopyFrom(ctx,
		pgx.Identifier{"metric_components"},
		[]string{"snapshot_id", "loan_id", "exposure_amount", "risk_weight", "rwa_value"},
		pgx.CopyFromSlice(len(components), func(i int) ([]any, error) {
			c := components[i]
			return []any{c.SnapshotID, c.LoanID, c.ExposureAmount, c.RiskWeight, c.RWAValue}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("insert metric components: %w", err)
	}
	return nil
}

// UpdateComponentECL writes the ECL stage's fields onto an existing
// component row. Only ECL-owned columns are touched.
func (r *MetricRepository) UpdateComponentECL(ctx context.Context, snapshotID, loanID int64, ecl decimal.Decimal, stage int) error {
	tag, err := r.querier(ctx).Exec(ctx, `
		UPDATE metric_components
		SET ecl_amount = $1, ecl_stage = $2, provision_amount = $1
		WHERE snapshot_id = $3 AND loan_id = $4`,
		ecl, stage, snapshotID, loanID)
	if err != nil {
		return fmt.Errorf("update ECL for loan %d in snapshot %d: %w", loanID, snapshotID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no component row for loan %d in snapshot %d", loanID, snapshotID)
	}
	return nil
}

// SaveMetrics appends the stage's metric rows. Metrics are append-only;
// a conflicting (snapshot, code) pair indicates a relaunched stage and the
// insert fails rather than overwriting history.
func (r *MetricRepository) SaveMetrics(ctx context.Context, metrics []domain.RegulatoryMetric) error {
	for _, m := range metrics {
		_, err := r.querier(ctx).Exec(ctx, `
			INSERT INTO regulatory_metrics (snapshot_id, metric_code, value, unit, metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			m.SnapshotID, m.Code, m.Value, m.Unit, m.Metadata)
		if err != nil {
			return fmt.Errorf("save metric %s for snapshot %d: %w", m.Code, m.SnapshotID, err)
		}
	}
	return nil
}

// ListMetrics returns every metric of a snapshot ordered by code.
func (r *MetricRepository) ListMetrics(ctx context.Context, snapshotID int64) ([]domain.RegulatoryMetric, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT metric_id, snapshot_id, metric_code, value, unit, metadata, calculated_at
		FROM regulatory_metrics
		WHERE snapshot_id = $1
		ORDER BY metric_code`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list metrics for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	var metrics []domain.RegulatoryMetric
	for rows.Next() {
		var m domain.RegulatoryMetric
		if err := rows.Scan(&m.ID, &m.SnapshotID, &m.Code, &m.Value, &m.Unit, &m.Metadata, &m.CalculatedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// MetricValue fetches a single metric value by code. Stages use this to read
// prerequisite aggregates.
func (r *MetricRepository) MetricValue(ctx context.Context, snapshotID int64, code string) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT value
		FROM regulatory_metrics
		WHERE snapshot_id = $1 AND metric_code = $2`,
		snapshotID, code).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrMetricNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read metric %s for snapshot %d: %w", code, snapshotID, err)
	}
	return value, nil
}

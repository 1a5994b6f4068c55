package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/pkg/database"
)

// RunRepository persists snapshot run lifecycle rows.
type RunRepository struct {
	base
}

// NewRunRepository creates a run repository over the shared pool.
func NewRunRepository(db *database.DB) *RunRepository {
	return &RunRepository{base{db: db}}
}

const runColumns = `snapshot_id, reporting_date, frequency, status, initiated_by,
	COALESCE(failure_reason, ''), created_at, validated_at, calculated_at, approved_at`

func scanRun(row pgx.Row) (*domain.SnapshotRun, error) {
	var run domain.SnapshotRun
	err := row.Scan(
		&run.ID, &run.ReportingDate, &run.Frequency, &run.Status, &run.InitiatedBy,
		&run.FailureReason, &run.CreatedAt, &run.ValidatedAt, &run.CalculatedAt, &run.ApprovedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Create inserts a new DRAFT run and fills in the generated id and creation
// timestamp.
func (r *RunRepository) Create(ctx context.Context, run *domain.SnapshotRun) error {
	err := r.querier(ctx).QueryRow(ctx, `
		INSERT INTO snapshot_runs (reporting_date, frequency, status, initiated_by)
		VALUES ($1, $2, $3, $4)
		RETURNING snapshot_id, created_at`,
		run.ReportingDate, run.Frequency, domain.StatusDraft, run.InitiatedBy,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create snapshot run: %w", err)
	}
	run.Status = domain.StatusDraft
	return nil
}

// GetByID fetches one run.
func (r *RunRepository) GetByID(ctx context.Context, id int64) (*domain.SnapshotRun, error) {
	run, err := scanRun(r.querier(ctx).QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM snapshot_runs
		WHERE snapshot_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot run %d: %w", id, err)
	}
	return run, nil
}

// FindActive returns the non-terminal run for a reporting date and frequency,
// or nil when none is in flight. Used as the duplicate-launch guard.
func (r *RunRepository) FindActive(ctx context.Context, reportingDate time.Time, frequency domain.Frequency) (*domain.SnapshotRun, error) {
	run, err := scanRun(r.querier(ctx).QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM snapshot_runs
		WHERE reporting_date = $1
		  AND frequency = $2
		  AND status NOT IN ($3, $4)
		ORDER BY snapshot_id DESC
		LIMIT 1`,
		reportingDate, frequency, domain.StatusApproved, domain.StatusFailed))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active run for %s/%s: %w", reportingDate.Format("2006-01-02"), frequency, err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.SnapshotRun, error) {
	rows, err := r.querier(ctx).Query(ctx, `
		SELECT `+runColumns+`
		FROM snapshot_runs
		ORDER BY snapshot_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshot runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SnapshotRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Transition moves a run from one status to another. The move is validated
// against the status graph and guarded with a compare-and-set on the current
// status so concurrent transitions cannot both win.
func (r *RunRepository) Transition(ctx context.Context, id int64, from, to domain.RunStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s for snapshot %d", from, to, id)
	}

	stampColumn := ""
	switch to {
	case domain.StatusValidated:
		stampColumn = ", validated_at = now()"
	case domain.StatusCalculated:
		stampColumn = ", calculated_at = now()"
	case domain.StatusApproved:
		stampColumn = ", approved_at = now()"
	}

	tag, err := r.querier(ctx).Exec(ctx, `
		UPDATE snapshot_runs
		SET status = $1`+stampColumn+`
		WHERE snapshot_id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("transition snapshot %d to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

// MarkFailed moves a run to FAILED with the cause. Terminal rows are left
// untouched.
func (r *RunRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	tag, err := r.querier(ctx).Exec(ctx, `
		UPDATE snapshot_runs
		SET status = $1, failure_reason = $2
		WHERE snapshot_id = $3 AND status NOT IN ($4, $5)`,
		domain.StatusFailed, reason, id, domain.StatusApproved, domain.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark snapshot %d failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

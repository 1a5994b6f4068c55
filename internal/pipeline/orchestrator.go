// Package pipeline coordinates the regulatory calculation run: snapshot
// creation, source copies, validation, the five rule engines and
// finalization. Stage ordering and run status transitions live here and
// nowhere else.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/events"
	"github.com/wisetech/rras/internal/regerrors"
	"github.com/wisetech/rras/internal/rules"
	"github.com/wisetech/rras/internal/store"
	"github.com/wisetech/rras/pkg/logger"
)

// ErrRunInFlight is returned when a launch is rejected because a run for the
// same reporting date and frequency has not reached a terminal state.
var ErrRunInFlight = errors.New("a run for this reporting date and frequency is already in flight")

// Stage names used in logs, audit entries and failure reasons.
const (
	StageCreateSnapshot = "CREATE_SNAPSHOT"
	StageCopyLoans      = "COPY_LOANS"
	StageCopyCapital    = "COPY_CAPITAL"
	StageCopyLiquidity  = "COPY_LIQUIDITY"
	StageCopyCashFlows  = "COPY_CASH_FLOWS"
	StageValidate       = "VALIDATE_SNAPSHOT"
	StageFinalize       = "FINALIZE"
)

// RunStore is the run lifecycle persistence the orchestrator depends on.
type RunStore interface {
	Create(ctx context.Context, run *domain.SnapshotRun) error
	GetByID(ctx context.Context, id int64) (*domain.SnapshotRun, error)
	FindActive(ctx context.Context, reportingDate time.Time, frequency domain.Frequency) (*domain.SnapshotRun, error)
	Transition(ctx context.Context, id int64, from, to domain.RunStatus) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Copier freezes source-system data into the snapshot tables.
type Copier interface {
	CopyLoans(ctx context.Context, snapshotID int64, reportingDate time.Time) (int64, error)
	CopyCapital(ctx context.Context, snapshotID int64, reportingDate time.Time) (int64, error)
	CopyLiquidity(ctx context.Context, snapshotID int64, reportingDate time.Time) (int64, error)
	CopyCashFlows(ctx context.Context, snapshotID int64, reportingDate time.Time) (int64, error)
}

// SnapshotReader reads frozen snapshot data for the rule engines.
type SnapshotReader interface {
	LoanExposures(ctx context.Context, snapshotID int64) ([]domain.LoanExposure, error)
	CapitalComponents(ctx context.Context, snapshotID int64) ([]domain.CapitalComponent, error)
	LiquidityAssets(ctx context.Context, snapshotID int64) ([]domain.LiquidityAsset, error)
	CashFlows(ctx context.Context, snapshotID int64) ([]domain.CashFlow, error)
}

// MetricStore persists engine output and serves prerequisite aggregates.
type MetricStore interface {
	InsertComponents(ctx context.Context, components []domain.MetricComponent) error
	UpdateComponentECL(ctx context.Context, snapshotID, loanID int64, ecl decimal.Decimal, stage int) error
	SaveMetrics(ctx context.Context, metrics []domain.RegulatoryMetric) error
	MetricValue(ctx context.Context, snapshotID int64, code string) (decimal.Decimal, error)
}

// TxRunner wraps a unit of work in a database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Recorder writes audit trail entries. Implementations never fail the stage.
type Recorder interface {
	Record(ctx context.Context, snapshotID int64, stage, rule string, input, output interface{}, started time.Time)
}

// Orchestrator runs the regulatory calculation pipeline end to end.
type Orchestrator struct {
	runs      RunStore
	copier    Copier
	snapshots SnapshotReader
	metrics   MetricStore
	tx        TxRunner
	trail     Recorder
	notifier  events.Notifier

	rwa *rules.RWAEngine
	npl *rules.NPLEngine
	ecl *rules.ECLEngine
	car *rules.CAREngine
	lcr *rules.LCREngine

	logger *logger.Logger
}

// RunConfig holds the parameters of one pipeline launch.
type RunConfig struct {
	ReportingDate time.Time
	Frequency     domain.Frequency
	InitiatedBy   string
	CorrelationID string
}

// RunResult holds the outcome of a completed pipeline run.
type RunResult struct {
	SnapshotID      int64
	CorrelationID   string
	CompletedStages []string
	KeyMetrics      map[string]decimal.Decimal
	Duration        time.Duration
}

// NewOrchestrator wires the pipeline dependencies together.
func NewOrchestrator(
	runs RunStore,
	copier Copier,
	snapshots SnapshotReader,
	metrics MetricStore,
	tx TxRunner,
	trail Recorder,
	notifier events.Notifier,
	params rules.Parameters,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		runs:      runs,
		copier:    copier,
		snapshots: snapshots,
		metrics:   metrics,
		tx:        tx,
		trail:     trail,
		notifier:  notifier,
		rwa:       rules.NewRWAEngine(params, log),
		npl:       rules.NewNPLEngine(params, log),
		ecl:       rules.NewECLEngine(params, log),
		car:       rules.NewCAREngine(params, log),
		lcr:       rules.NewLCREngine(params, log),
		logger:    log,
	}
}

// LaunchRun executes the full pipeline for one reporting date. A failed run
// stays FAILED and is superseded by launching again; it is never resumed.
func (o *Orchestrator) LaunchRun(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	o.logger.WithFields(map[string]interface{}{
		"reporting_date": config.ReportingDate.Format("2006-01-02"),
		"frequency":      config.Frequency,
		"initiated_by":   config.InitiatedBy,
		"correlation_id": config.CorrelationID,
	}).Info("Starting regulatory calculation run")

	active, err := o.runs.FindActive(ctx, config.ReportingDate, config.Frequency)
	if err != nil {
		return nil, fmt.Errorf("launch guard: %w", err)
	}
	if active != nil {
		o.logger.WithFields(map[string]interface{}{
			"snapshot_id": active.ID,
			"status":      active.Status,
		}).Warn("Rejecting duplicate launch")
		return nil, fmt.Errorf("%w (snapshot %d, status %s)", ErrRunInFlight, active.ID, active.Status)
	}

	result := &RunResult{
		CorrelationID:   config.CorrelationID,
		CompletedStages: make([]string, 0),
		KeyMetrics:      make(map[string]decimal.Decimal),
	}

	run, err := o.createSnapshot(ctx, config)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", StageCreateSnapshot, err)
	}
	result.SnapshotID = run.ID
	result.CompletedStages = append(result.CompletedStages, StageCreateSnapshot)

	if err := o.publish(ctx, run, config, events.Event{Type: events.TypeSnapshotCreated}); err != nil {
		return result, err
	}

	if err := o.copySourceData(ctx, run, config); err != nil {
		return result, o.fail(ctx, run, config, "copy source data", err)
	}
	result.CompletedStages = append(result.CompletedStages, StageCopyLoans, StageCopyCapital, StageCopyLiquidity)

	if err := o.validateSnapshot(ctx, run); err != nil {
		return result, o.fail(ctx, run, config, StageValidate, err)
	}
	result.CompletedStages = append(result.CompletedStages, StageValidate)

	if err := o.publish(ctx, run, config, events.Event{Type: events.TypeSnapshotValidated}); err != nil {
		return result, err
	}

	if err := o.runs.Transition(ctx, run.ID, domain.StatusValidated, domain.StatusCalculating); err != nil {
		return result, o.fail(ctx, run, config, "start calculation", err)
	}

	calcStages := []struct {
		name string
		fn   func(context.Context, *domain.SnapshotRun) (map[string]decimal.Decimal, error)
	}{
		{rules.StageRWA, o.runRWA},
		{rules.StageNPL, o.runNPL},
		{rules.StageECL, o.runECL},
		{rules.StageCAR, o.runCAR},
		{rules.StageLCR, o.runLCR},
	}

	for _, stage := range calcStages {
		headline, err := stage.fn(ctx, run)
		if err != nil {
			return result, o.fail(ctx, run, config, stage.name, err)
		}
		result.CompletedStages = append(result.CompletedStages, stage.name)
		for code, value := range headline {
			result.KeyMetrics[code] = value
		}

		event := events.Event{Type: events.TypeCalculationCompleted, Stage: stage.name, KeyMetrics: headline}
		if err := o.publish(ctx, run, config, event); err != nil {
			return result, err
		}
	}

	if err := o.finalize(ctx, run); err != nil {
		return result, o.fail(ctx, run, config, StageFinalize, err)
	}
	result.CompletedStages = append(result.CompletedStages, StageFinalize)

	event := events.Event{Type: events.TypeSnapshotCompleted, KeyMetrics: result.KeyMetrics}
	if err := o.publish(ctx, run, config, event); err != nil {
		return result, err
	}

	result.Duration = time.Since(startTime)
	o.logger.WithFields(map[string]interface{}{
		"snapshot_id": run.ID,
		"duration":    result.Duration.Seconds(),
		"stages":      len(result.CompletedStages),
	}).Info("Regulatory calculation run completed")

	return result, nil
}

// Approve moves a CALCULATED run to APPROVED. Approval is the only
// transition triggered by a human rather than the pipeline.
func (o *Orchestrator) Approve(ctx context.Context, snapshotID int64, approvedBy string) error {
	if err := o.runs.Transition(ctx, snapshotID, domain.StatusCalculated, domain.StatusApproved); err != nil {
		return fmt.Errorf("approve snapshot %d: %w", snapshotID, err)
	}

	o.logger.WithFields(map[string]interface{}{
		"snapshot_id": snapshotID,
		"approved_by": approvedBy,
	}).Info("Snapshot run approved")
	return nil
}

// fail marks the run FAILED and publishes the failure event. The original
// stage error is always the one returned; failures of the failure path
// itself are logged and swallowed.
func (o *Orchestrator) fail(ctx context.Context, run *domain.SnapshotRun, config RunConfig, stage string, cause error) error {
	wrapped := fmt.Errorf("%s failed: %w", stage, cause)

	if err := o.runs.MarkFailed(ctx, run.ID, wrapped.Error()); err != nil {
		o.logger.WithError(err).WithField("snapshot_id", run.ID).Error("Failed to mark run as failed")
	}

	event := events.Event{Type: events.TypeCalculationFailed, Stage: stage, Reason: cause.Error()}
	o.decorate(&event, run, config)
	if err := o.notifier.Publish(ctx, event); err != nil {
		o.logger.WithError(err).WithField("snapshot_id", run.ID).Warn("Failed to publish failure event")
	}

	return wrapped
}

// publish decorates and sends a lifecycle event. A transport failure aborts
// the run without marking it FAILED: the snapshot data is consistent and the
// run is safe to relaunch once the transport recovers.
func (o *Orchestrator) publish(ctx context.Context, run *domain.SnapshotRun, config RunConfig, event events.Event) error {
	o.decorate(&event, run, config)
	if err := o.notifier.Publish(ctx, event); err != nil {
		return fmt.Errorf("event transport: %w", err)
	}
	return nil
}

func (o *Orchestrator) decorate(event *events.Event, run *domain.SnapshotRun, config RunConfig) {
	event.SnapshotID = run.ID
	event.ReportingDate = run.ReportingDate.Format("2006-01-02")
	event.Frequency = string(run.Frequency)
	event.CorrelationID = config.CorrelationID
	event.OccurredAt = time.Now().UTC()
}

// createSnapshot inserts the DRAFT run row.
func (o *Orchestrator) createSnapshot(ctx context.Context, config RunConfig) (*domain.SnapshotRun, error) {
	run := &domain.SnapshotRun{
		ReportingDate: config.ReportingDate,
		Frequency:     config.Frequency,
		InitiatedBy:   config.InitiatedBy,
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	o.logger.WithFields(map[string]interface{}{
		"snapshot_id":    run.ID,
		"reporting_date": run.ReportingDate.Format("2006-01-02"),
	}).Info("Snapshot run created")
	return run, nil
}

// copySourceData freezes all four source datasets in one transaction, so a
// partial copy never survives a crash.
func (o *Orchestrator) copySourceData(ctx context.Context, run *domain.SnapshotRun, config RunConfig) error {
	return o.tx.WithinTx(ctx, func(ctx context.Context) error {
		copies := []struct {
			stage string
			fn    func(context.Context, int64, time.Time) (int64, error)
		}{
			{StageCopyLoans, o.copier.CopyLoans},
			{StageCopyCapital, o.copier.CopyCapital},
			{StageCopyLiquidity, o.copier.CopyLiquidity},
			{StageCopyCashFlows, o.copier.CopyCashFlows},
		}

		for _, step := range copies {
			started := time.Now()
			count, err := step.fn(ctx, run.ID, config.ReportingDate)
			if err != nil {
				return fmt.Errorf("%s: %w", step.stage, err)
			}

			o.trail.Record(ctx, run.ID, step.stage, "transactional source freeze",
				map[string]interface{}{"reporting_date": config.ReportingDate.Format("2006-01-02")},
				map[string]interface{}{"rows_copied": count},
				started)

			o.logger.WithFields(map[string]interface{}{
				"snapshot_id": run.ID,
				"stage":       step.stage,
				"rows":        count,
			}).Info("Source data copied")
		}
		return nil
	})
}

// validateSnapshot checks the frozen data is complete enough to calculate
// on, then moves the run to VALIDATED. Validation only reads; running it
// again over an already VALIDATED run is a no-op.
func (o *Orchestrator) validateSnapshot(ctx context.Context, run *domain.SnapshotRun) error {
	started := time.Now()

	loans, err := o.snapshots.LoanExposures(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		return &regerrors.ValidationError{SnapshotID: run.ID, Stage: StageValidate, Reason: "snapshot contains no loan exposures"}
	}

	capital, err := o.snapshots.CapitalComponents(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(capital) == 0 {
		return &regerrors.ValidationError{SnapshotID: run.ID, Stage: StageValidate, Reason: "snapshot contains no capital components"}
	}

	assets, err := o.snapshots.LiquidityAssets(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		return &regerrors.ValidationError{SnapshotID: run.ID, Stage: StageValidate, Reason: "snapshot contains no liquidity positions"}
	}

	if err := o.runs.Transition(ctx, run.ID, domain.StatusDraft, domain.StatusValidated); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			current, getErr := o.runs.GetByID(ctx, run.ID)
			if getErr == nil && current.Status == domain.StatusValidated {
				return nil
			}
		}
		return err
	}

	o.trail.Record(ctx, run.ID, StageValidate, "snapshot completeness checks",
		map[string]interface{}{"snapshot_id": run.ID},
		map[string]interface{}{"loans": len(loans), "capital_components": len(capital), "liquidity_assets": len(assets)},
		started)

	o.logger.WithFields(map[string]interface{}{
		"snapshot_id": run.ID,
		"loans":       len(loans),
	}).Info("Snapshot validated")
	return nil
}

// finalize moves the run to CALCULATED.
func (o *Orchestrator) finalize(ctx context.Context, run *domain.SnapshotRun) error {
	started := time.Now()
	if err := o.runs.Transition(ctx, run.ID, domain.StatusCalculating, domain.StatusCalculated); err != nil {
		return err
	}
	o.trail.Record(ctx, run.ID, StageFinalize, "run completion",
		map[string]interface{}{"snapshot_id": run.ID},
		map[string]interface{}{"status": domain.StatusCalculated},
		started)
	return nil
}

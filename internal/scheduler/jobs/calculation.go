// Package jobs defines the scheduled regulatory calculation launches.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/pipeline"
	"github.com/wisetech/rras/pkg/logger"
)

// Launcher starts a pipeline run. Satisfied by the pipeline orchestrator.
type Launcher interface {
	LaunchRun(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error)
}

// CalculationJob launches one calculation run per scheduled firing. The
// reporting date is derived from the firing time and the frequency: the
// period that just closed, never the current one.
type CalculationJob struct {
	name      string
	schedule  string
	frequency domain.Frequency
	launcher  Launcher
	logger    *logger.Logger
	now       func() time.Time
}

// NewCalculationJob creates a calculation job for one frequency.
func NewCalculationJob(name, schedule string, frequency domain.Frequency, launcher Launcher, log *logger.Logger) *CalculationJob {
	return &CalculationJob{
		name:      name,
		schedule:  schedule,
		frequency: frequency,
		launcher:  launcher,
		logger:    log,
		now:       time.Now,
	}
}

func (j *CalculationJob) Name() string     { return j.name }
func (j *CalculationJob) Schedule() string { return j.schedule }

// Run launches the pipeline for the closed period. A run already in flight
// for the same date is not an error worth retrying; it is logged and
// swallowed so the scheduler's retry loop stays quiet.
func (j *CalculationJob) Run(ctx context.Context) error {
	reportingDate := j.ReportingDate(j.now())

	config := pipeline.RunConfig{
		ReportingDate: reportingDate,
		Frequency:     j.frequency,
		InitiatedBy:   "scheduler",
		CorrelationID: uuid.NewString(),
	}

	result, err := j.launcher.LaunchRun(ctx, config)
	if errors.Is(err, pipeline.ErrRunInFlight) {
		j.logger.WithFields(map[string]interface{}{
			"job":            j.name,
			"reporting_date": reportingDate.Format("2006-01-02"),
		}).Warn("Skipping scheduled launch, run already in flight")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"job":         j.name,
		"snapshot_id": result.SnapshotID,
		"duration":    result.Duration.Seconds(),
	}).Info("Scheduled calculation run completed")
	return nil
}

// ReportingDate maps a firing time to the reporting date of the period that
// just closed.
func (j *CalculationJob) ReportingDate(firedAt time.Time) time.Time {
	fired := firedAt.UTC()
	switch j.frequency {
	case domain.FrequencyMonthly:
		// Last day of the previous month.
		firstOfMonth := time.Date(fired.Year(), fired.Month(), 1, 0, 0, 0, 0, time.UTC)
		return firstOfMonth.AddDate(0, 0, -1)
	case domain.FrequencyAnnual:
		// 31 December of the previous year.
		return time.Date(fired.Year()-1, time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		// Periodic runs report on the day that just ended.
		day := time.Date(fired.Year(), fired.Month(), fired.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -1)
	}
}

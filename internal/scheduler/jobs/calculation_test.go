package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/pipeline"
	"github.com/wisetech/rras/pkg/logger"
)

type fakeLauncher struct {
	configs []pipeline.RunConfig
	err     error
}

func (f *fakeLauncher) LaunchRun(_ context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.configs = append(f.configs, config)
	return &pipeline.RunResult{SnapshotID: 1, CorrelationID: config.CorrelationID}, nil
}

func TestCalculationJob_ReportingDate(t *testing.T) {
	tests := []struct {
		name      string
		frequency domain.Frequency
		firedAt   time.Time
		want      time.Time
	}{
		{
			name:      "periodic run on the 15th reports the 14th",
			frequency: domain.FrequencyPeriodic,
			firedAt:   time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC),
			want:      time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "periodic run on the 1st reports month end",
			frequency: domain.FrequencyPeriodic,
			firedAt:   time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC),
			want:      time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly run reports the last day of the previous month",
			frequency: domain.FrequencyMonthly,
			firedAt:   time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC),
			want:      time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly run in January crosses the year boundary",
			frequency: domain.FrequencyMonthly,
			firedAt:   time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
			want:      time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "annual run reports the previous year end",
			frequency: domain.FrequencyAnnual,
			firedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			want:      time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewCalculationJob("test", "@daily", tt.frequency, &fakeLauncher{}, logger.NewNop())
			assert.True(t, job.ReportingDate(tt.firedAt).Equal(tt.want))
		})
	}
}

func TestCalculationJob_Run(t *testing.T) {
	launcher := &fakeLauncher{}
	job := NewCalculationJob("periodic-calculation", "0 0 2 1,15 * *", domain.FrequencyPeriodic, launcher, logger.NewNop())
	job.now = func() time.Time { return time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, launcher.configs, 1)

	config := launcher.configs[0]
	assert.Equal(t, domain.FrequencyPeriodic, config.Frequency)
	assert.Equal(t, "scheduler", config.InitiatedBy)
	assert.NotEmpty(t, config.CorrelationID)
	assert.True(t, config.ReportingDate.Equal(time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)))
}

func TestCalculationJob_Run_SwallowsInFlight(t *testing.T) {
	launcher := &fakeLauncher{err: fmt.Errorf("%w (snapshot 3)", pipeline.ErrRunInFlight)}
	job := NewCalculationJob("periodic-calculation", "@daily", domain.FrequencyPeriodic, launcher, logger.NewNop())

	assert.NoError(t, job.Run(context.Background()))
}

func TestCalculationJob_Run_PropagatesOtherErrors(t *testing.T) {
	launcher := &fakeLauncher{err: fmt.Errorf("database unavailable")}
	job := NewCalculationJob("monthly-calculation", "@monthly", domain.FrequencyMonthly, launcher, logger.NewNop())

	assert.Error(t, job.Run(context.Background()))
}

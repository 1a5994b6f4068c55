package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a calculation run",
	Long: `Launch a regulatory calculation run for one reporting date.

The pipeline freezes the source data into a snapshot, validates it and
computes RWA, NPL, ECL, capital adequacy and liquidity coverage.

Example:
  go run ./cmd/rras run --date 2026-06-30 --frequency PERIODIC
  go run ./cmd/rras run --date 2026-12-31 --frequency ANNUAL`,
	RunE: launchRun,
}

var (
	runDate      string
	runFrequency string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "reporting date (YYYY-MM-DD, required)")
	runCmd.Flags().StringVar(&runFrequency, "frequency", "PERIODIC", "calculation frequency (PERIODIC|MONTHLY|ANNUAL)")
	_ = runCmd.MarkFlagRequired("date")
}

func launchRun(cmd *cobra.Command, args []string) error {
	reportingDate, err := time.Parse("2006-01-02", runDate)
	if err != nil {
		return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", runDate)
	}

	frequency, ok := domain.ParseFrequency(runFrequency)
	if !ok {
		return fmt.Errorf("invalid --frequency %q (valid: PERIODIC, MONTHLY, ANNUAL)", runFrequency)
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Printf("=== RRAS Calculation Run: %s (%s) ===\n", runDate, frequency)

	result, err := d.orch.LaunchRun(context.Background(), pipeline.RunConfig{
		ReportingDate: reportingDate,
		Frequency:     frequency,
		InitiatedBy:   "cli",
		CorrelationID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Printf("\nRun completed: snapshot %d in %.1fs\n", result.SnapshotID, result.Duration.Seconds())
	fmt.Println("\nStages:")
	for _, stage := range result.CompletedStages {
		fmt.Printf("  - %s\n", stage)
	}
	fmt.Println("\nKey metrics:")
	for code, value := range result.KeyMetrics {
		fmt.Printf("  %-12s %s\n", code, value)
	}

	return nil
}

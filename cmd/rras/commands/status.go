package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and system health",
	Long: `Show database health and the most recent calculation runs.

Example:
  go run ./cmd/rras status
  go run ./cmd/rras status --limit 5`,
	RunE: showStatus,
}

var statusLimit int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to show")
}

func showStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== RRAS Status ===")

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := d.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	fmt.Printf("\nDatabase: healthy (%s, %d/%d conns)\n",
		health.ResponseTime, health.Stats.AcquiredConns, health.Stats.MaxConns)

	runs, err := d.runs.List(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("\nNo calculation runs yet")
		return nil
	}

	fmt.Println("\nRecent runs:")
	for _, run := range runs {
		line := fmt.Sprintf("  #%-5d %s  %-8s  %-11s  by %s",
			run.ID, run.ReportingDate.Format("2006-01-02"), run.Frequency, run.Status, run.InitiatedBy)
		if run.FailureReason != "" {
			line += fmt.Sprintf("  (%s)", run.FailureReason)
		}
		fmt.Println(line)
	}

	return nil
}

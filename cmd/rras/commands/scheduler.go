package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/scheduler"
	"github.com/wisetech/rras/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the calculation scheduler",
	Long: `Start the scheduler daemon or manage its jobs.

Registered jobs:
  periodic-calculation - 02:00 on the 1st and 15th
  monthly-calculation  - 01:00 on the 1st
  annual-calculation   - 00:00 on 1 January

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - trigger a job immediately
  status  - show job execution statistics

Example:
  go run ./cmd/rras scheduler start
  go run ./cmd/rras scheduler run periodic-calculation`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Trigger a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job execution statistics",
		RunE:  showJobStats,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== RRAS Scheduler ===")

	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	sched.Start()

	fmt.Println("\nScheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.JobNames() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.JobNames() {
		fmt.Printf("  - %s\n", jobName)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Println("Job started (running in background)")
	return nil
}

func showJobStats(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	stats := sched.Stats()

	fmt.Println("Job Statistics:")
	fmt.Println()
	for jobName, stat := range stats {
		fmt.Printf("%s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

func initScheduler() (*deps, *scheduler.Scheduler, error) {
	d, err := initDeps()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.log)

	calcJobs := []*jobs.CalculationJob{
		jobs.NewCalculationJob("periodic-calculation", d.cfg.Scheduler.PeriodicCron, domain.FrequencyPeriodic, d.orch, d.log),
		jobs.NewCalculationJob("monthly-calculation", d.cfg.Scheduler.MonthlyCron, domain.FrequencyMonthly, d.orch, d.log),
		jobs.NewCalculationJob("annual-calculation", d.cfg.Scheduler.AnnualCron, domain.FrequencyAnnual, d.orch, d.log),
	}
	for _, job := range calcJobs {
		if err := sched.AddJob(job); err != nil {
			d.close()
			return nil, nil, err
		}
	}

	return d, sched, nil
}

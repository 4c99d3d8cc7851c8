package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/payroll-admin/internal/jobs"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	jobDays  int
	jobForce bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background jobs on demand",
}

var runJobCmd = &cobra.Command{
	Use:   "run [job-name]",
	Short: "Run one background job once",
	Long: fmt.Sprintf("Run one job immediately. Available jobs: %s", strings.Join([]string{
		jobs.NameScheduledSync,
		jobs.NameRetryFailed,
		jobs.NameSyncPending,
		jobs.NameCleanupLogs,
		jobs.NameSyncDevices,
	}, ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd.Context(), args[0])
	},
}

func runJob(ctx context.Context, name string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	app, err := newApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("dependency close error", "error", err)
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	runner := app.runner()

	days := jobDays
	if days <= 0 {
		days = cfg.Sync.CleanupDays
	}

	var summary string
	switch name {
	case jobs.NameScheduledSync:
		summary, err = runner.ScheduledSync(ctx)
	case jobs.NameRetryFailed:
		summary, err = runner.RetryFailedSyncs(ctx)
	case jobs.NameSyncPending:
		summary, err = runner.SyncPendingItems(ctx)
	case jobs.NameCleanupLogs:
		summary, err = runner.CleanupOldSyncLogs(ctx, days)
	case jobs.NameSyncDevices:
		summary, err = runner.SyncDevices(ctx, jobForce)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}

	fmt.Fprintln(os.Stdout, summary)
	return nil
}

func init() {
	runJobCmd.Flags().IntVar(&jobDays, "days", 0, "age in days for cleanup-sync-logs (defaults to sync.cleanup_days)")
	runJobCmd.Flags().BoolVar(&jobForce, "force", false, "ignore the minimum device sync interval")

	jobsCmd.AddCommand(runJobCmd)
	rootCmd.AddCommand(jobsCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/service"
	"github.com/jmylchreest/reelarr/internal/startup"
)

var syncFlags struct {
	backfill  bool
	reconcile bool
	repair    bool
	force     bool
	channels  []string
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one-shot sync passes",
	Long: `Run sync passes against the configured channels and exit.

Without flags an incremental pass walks the most recent sync.incremental_window
messages of every channel. The flags select other passes, which run in the
order backfill, reconcile, repair:

  reelarr sync --backfill            # walk up to sync.limit messages
  reelarr sync --backfill --force    # walk the whole history
  reelarr sync --reconcile --repair  # drop deleted posts, then repair
  reelarr sync --channel @name       # limit to one channel`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncFlags.backfill, "backfill", false, "walk history up to sync.limit messages")
	syncCmd.Flags().BoolVar(&syncFlags.reconcile, "reconcile", false, "remove episodes whose posts were deleted")
	syncCmd.Flags().BoolVar(&syncFlags.repair, "repair", false, "remove empty series and retype multi-episode movies")
	syncCmd.Flags().BoolVar(&syncFlags.force, "force", false, "backfill the whole history regardless of sync.limit")
	syncCmd.Flags().StringSliceVar(&syncFlags.channels, "channel", nil, "channel to sync (repeatable, overrides sync.channels)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(syncFlags.channels) > 0 {
		cfg.Sync.Channels = syncFlags.channels
	}
	if syncFlags.force {
		cfg.Sync.ForceSync = true
	}
	logger := slog.Default()

	lock, err := startup.AcquireLock(cfg.Sync.LockFile, logger)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	source, channels, err := a.openSource()
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return errors.New("no channels configured, set sync.channels or pass --channel")
	}
	syncSvc := a.syncService(source, channels)

	var (
		rows [][]string
		errs []error
	)
	record := func(name string, stats ingestor.IngestStats, err error) {
		rows = append(rows, passRow(name, stats))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	maintenanceOnly := !syncFlags.backfill && (syncFlags.reconcile || syncFlags.repair)
	switch {
	case syncFlags.backfill:
		stats, err := syncSvc.SyncAll(ctx, service.SyncModeBackfill)
		record(string(service.SyncModeBackfill), stats, err)
	case !maintenanceOnly:
		stats, err := syncSvc.SyncAll(ctx, service.SyncModeIncremental)
		record(string(service.SyncModeIncremental), stats, err)
	}

	if syncFlags.reconcile && ctx.Err() == nil {
		stats, err := syncSvc.ReconcileAll(ctx)
		record(string(ingestor.PassReconcile), stats, err)
	}

	renderTable(cmd.OutOrStdout(), passHeaders, rows, 1, 2, 3, 4, 5, 6)

	if syncFlags.repair && ctx.Err() == nil {
		result, err := syncSvc.Repair(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("repair: %w", err))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "repair: %d empty series removed, %d movies retyped\n",
				result.OrphansDeleted, result.Retyped)
		}
	}

	return errors.Join(errs...)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	internalhttp "github.com/jmylchreest/reelarr/internal/http"
	"github.com/jmylchreest/reelarr/internal/http/handlers"
	"github.com/jmylchreest/reelarr/internal/observability"
	"github.com/jmylchreest/reelarr/internal/scheduler"
	"github.com/jmylchreest/reelarr/internal/service"
	"github.com/jmylchreest/reelarr/internal/startup"
	"github.com/jmylchreest/reelarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reelarr sync engine and server",
	Long: `Start the sync engine, the maintenance scheduler and the HTTP API.

On startup every configured channel gets an incremental pass, followed by a
history backfill when sync.import_history or sync.force_sync is set. A repair
sweep follows, then reconciliation of deleted posts when sync.check_deleted is
set. Live events are applied until the process is stopped.

The server provides:
- Read-only catalog API under /api/v1
- Sync status and manual reconcile/repair triggers
- Health checks at /health, /livez and /readyz
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().StringSlice("channel", nil, "Channel to sync (repeatable, overrides sync.channels)")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("sync.channels", serveCmd.Flags().Lookup("channel"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	if cfg.Sync.ResetDatabase {
		if err := startup.ResetCatalog(ctx, a.catalog, logger); err != nil {
			return err
		}
		if err := a.tracker.Load(ctx); err != nil {
			return fmt.Errorf("reloading channel contexts: %w", err)
		}
	}

	source, channels, err := a.openSource()
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		logger.Warn("no channels configured, set sync.channels or CHANNELS")
	}
	syncSvc := a.syncService(source, channels)

	sched := scheduler.NewScheduler().WithLogger(observability.WithComponent(logger, "scheduler"))
	if err := addMaintenanceJobs(sched, syncSvc, cfg.Sync.IncrementalSchedule, cfg.Sync.ReconcileSchedule, cfg.Sync.RepairSchedule); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	logger.Info("starting reelarr",
		slog.String("version", version.Version),
		slog.String("database", a.db.Driver()),
		slog.String("source", source.Name()),
		slog.Any("channels", channels),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := syncSvc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sync engine: %w", err)
		}
		return nil
	})

	if cfg.Server.Enabled {
		server := internalhttp.NewServer(internalhttp.ServerConfigFrom(cfg.Server), observability.WithComponent(logger, "http"), version.Version)
		server.Register(
			handlers.NewHealthHandler(version.Version).
				WithDB(a.db.DB).
				WithClientRegistry(a.clients).
				WithPasses(syncSvc.StateManager()),
			handlers.NewCatalogHandler(service.NewCatalogService(a.catalog).
				WithLogger(observability.WithComponent(logger, "catalog"))),
			handlers.NewSyncHandler(syncSvc).WithScheduler(sched),
		)
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}

	err = g.Wait()
	logger.Info("reelarr stopped")
	return err
}

// addMaintenanceJobs schedules the periodic passes. An empty schedule
// disables the job.
func addMaintenanceJobs(sched *scheduler.Scheduler, syncSvc *service.SyncService, incremental, reconcile, repair string) error {
	if err := sched.Add("incremental", incremental, func(ctx context.Context) error {
		_, err := syncSvc.SyncAll(ctx, service.SyncModeIncremental)
		return err
	}); err != nil {
		return fmt.Errorf("scheduling incremental sync: %w", err)
	}
	if err := sched.Add("reconcile", reconcile, func(ctx context.Context) error {
		_, err := syncSvc.ReconcileAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("scheduling reconcile: %w", err)
	}
	if err := sched.Add("repair", repair, func(ctx context.Context) error {
		_, err := syncSvc.Repair(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("scheduling repair: %w", err)
	}
	return nil
}

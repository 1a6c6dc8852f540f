package cmd

import (
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

var importFlags struct {
	file    string
	channel string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a channel export file",
	Long: `Backfill the catalog from a channel history export (result.json).

Every message in the export is ingested, then a repair sweep runs. Messages
already in the catalog are counted as duplicates, so an export can be imported
again safely. Without --channel the channel is addressed as -100<id> using the
numeric id recorded in the export.

  reelarr import --file result.json --channel @name`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFlags.file, "file", "", "path to the export file (required)")
	importCmd.Flags().StringVar(&importFlags.channel, "channel", "", "channel id to store episodes under")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	export, err := ingestor.OpenExportSource(importFlags.file, importFlags.channel)
	if err != nil {
		return err
	}

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

	cfg.Sync.Limit = 0
	cfg.Sync.ForceSync = true
	syncSvc := a.syncService(export, []string{export.ChannelID()})

	logger.Info("importing channel export",
		slog.String("file", importFlags.file),
		slog.String("channel_id", export.ChannelID()),
		slog.String("title", export.Title()),
	)

	stats, err := syncSvc.SyncChannel(ctx, export.ChannelID(), service.SyncModeBackfill)
	renderTable(cmd.OutOrStdout(), passHeaders, [][]string{passRow("import", stats)}, 1, 2, 3, 4, 5, 6)
	if err != nil {
		return fmt.Errorf("importing %s: %w", importFlags.file, err)
	}

	result, err := syncSvc.Repair(ctx)
	if err != nil {
		return fmt.Errorf("repairing catalog: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "repair: %d empty series removed, %d movies retyped\n",
		result.OrphansDeleted, result.Retyped)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/reelarr/internal/classifier"
	"github.com/jmylchreest/reelarr/internal/config"
	"github.com/jmylchreest/reelarr/internal/database"
	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/observability"
	"github.com/jmylchreest/reelarr/internal/repository"
	"github.com/jmylchreest/reelarr/internal/service"
	"github.com/jmylchreest/reelarr/internal/version"
	"github.com/jmylchreest/reelarr/pkg/httpclient"
)

// app holds the components shared by the commands that touch the catalog.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *database.DB
	catalog    repository.Catalog
	classifier *classifier.Classifier
	tracker    *ingestor.ContextTracker
	ingest     *service.IngestService
	clients    *httpclient.Registry
}

// newApp opens and migrates the database and builds the ingest pipeline.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"), nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	catalog := repository.NewCatalog(db.DB)
	c := classifier.New().WithLogger(observability.WithComponent(logger, "classifier"))

	tracker := ingestor.NewContextTracker(c, catalog.Contexts()).
		WithLogger(observability.WithComponent(logger, "context"))
	if err := tracker.Load(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading channel contexts: %w", err)
	}

	policy := classifier.TypePolicy{
		Enabled:           cfg.Classifier.UseEpisodeCount,
		MovieMaxEpisodes:  cfg.Classifier.MovieMaxEpisodes,
		SeriesMinEpisodes: cfg.Classifier.SeriesMinEpisodes,
	}
	ingest := service.NewIngestService(catalog, c, tracker, service.NewResolver()).
		WithLogger(observability.WithComponent(logger, "ingest")).
		WithTypePolicy(policy).
		WithMinBinaryVideoSize(cfg.Classifier.MinBinaryVideoSize)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		catalog:    catalog,
		classifier: c,
		tracker:    tracker,
		ingest:     ingest,
		clients:    httpclient.NewRegistry(),
	}, nil
}

// close releases the database connection.
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", slog.String("error", err.Error()))
	}
}

// openSource builds the configured message source. For an export source the
// returned channel list is the channel the export describes.
func (a *app) openSource() (ingestor.Source, []string, error) {
	src := a.cfg.Source
	channels := a.cfg.Sync.Channels

	switch src.Kind {
	case "export":
		if src.ExportFile == "" {
			return nil, nil, errors.New("source.export_file is required for the export source")
		}
		var channelID string
		if len(channels) == 1 {
			channelID = channels[0]
		}
		export, err := ingestor.OpenExportSource(src.ExportFile, channelID)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("opened channel export",
			slog.String("file", src.ExportFile),
			slog.String("channel_id", export.ChannelID()),
			slog.String("title", export.Title()),
		)
		return export, []string{export.ChannelID()}, nil

	default:
		bridge, err := ingestor.NewBridgeSource(ingestor.BridgeConfig{
			BaseURL:       src.BaseURL,
			Token:         src.Token,
			Timeout:       src.Timeout,
			RetryAttempts: src.RetryAttempts,
			RateLimit:     src.RateLimit,
			Burst:         src.Burst,
			PollTimeout:   src.PollTimeout,
			UserAgent:     version.UserAgent(),
			Logger:        observability.WithComponent(a.logger, "bridge"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating bridge source: %w", err)
		}
		a.clients.Register(bridge.Name(), bridge.Client())
		return bridge, channels, nil
	}
}

// syncService builds the sync engine over source and channels.
func (a *app) syncService(source ingestor.Source, channels []string) *service.SyncService {
	cfg := syncConfigFrom(a.cfg.Sync)
	cfg.Channels = channels
	return service.NewSyncService(a.catalog, a.ingest, source, ingestor.NewStateManager(), cfg).
		WithLogger(observability.WithComponent(a.logger, "sync"))
}

func syncConfigFrom(cfg config.SyncConfig) service.SyncConfig {
	return service.SyncConfig{
		Channels:              cfg.Channels,
		Limit:                 cfg.Limit,
		IncrementalWindow:     cfg.IncrementalWindow,
		ReconcileWindow:       cfg.ReconcileWindow,
		ImportHistory:         cfg.ImportHistory,
		ForceSync:             cfg.ForceSync,
		CheckDeleted:          cfg.CheckDeleted,
		PassTimeout:           cfg.PassTimeout,
		MaxConcurrentChannels: cfg.MaxConcurrentChannels,
	}
}

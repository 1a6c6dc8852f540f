package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/observability"
	"github.com/jmylchreest/reelarr/internal/repository"
)

// SyncMode selects how much history a channel pass walks.
type SyncMode string

const (
	// SyncModeIncremental walks the most recent IncrementalWindow messages.
	SyncModeIncremental SyncMode = "incremental"
	// SyncModeBackfill walks up to Limit messages, or everything with ForceSync.
	SyncModeBackfill SyncMode = "backfill"
)

// Sync defaults.
const (
	DefaultSyncLimit             = 10000
	DefaultIncrementalWindow     = 200
	DefaultReconcileWindow       = 1000
	DefaultPassTimeout           = 30 * time.Minute
	DefaultMaxConcurrentChannels = 4

	// siblingCaptionWindow is how many recent messages are searched for the
	// caption of a live album member.
	siblingCaptionWindow = 20

	progressInterval = 100
)

// SyncConfig controls the sync engine.
type SyncConfig struct {
	Channels []string

	// Limit caps backfill passes; zero means the whole history.
	Limit             int
	IncrementalWindow int
	ReconcileWindow   int

	// ImportHistory runs a backfill after the startup incremental pass.
	ImportHistory bool
	// ForceSync makes backfill walk the whole history regardless of Limit.
	ForceSync bool
	// CheckDeleted runs reconciliation at startup.
	CheckDeleted bool

	PassTimeout           time.Duration
	MaxConcurrentChannels int
}

// DefaultSyncConfig returns the sync defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Limit:                 DefaultSyncLimit,
		IncrementalWindow:     DefaultIncrementalWindow,
		ReconcileWindow:       DefaultReconcileWindow,
		PassTimeout:           DefaultPassTimeout,
		MaxConcurrentChannels: DefaultMaxConcurrentChannels,
	}
}

// RepairResult reports what a consistency repair sweep changed.
type RepairResult struct {
	OrphansDeleted int64 `json:"orphans_deleted"`
	Retyped        int   `json:"retyped"`
}

// SyncService drives the per-channel sync state machine: an incremental pass
// and optional backfill at startup, live event handling, windowed
// reconciliation against the source and consistency repair.
type SyncService struct {
	catalog       repository.Catalog
	ingest        *IngestService
	source        ingestor.Source
	state         *ingestor.StateManager
	cfg           SyncConfig
	minBinarySize int64
	logger        *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(
	catalog repository.Catalog,
	ingest *IngestService,
	source ingestor.Source,
	state *ingestor.StateManager,
	cfg SyncConfig,
) *SyncService {
	return &SyncService{
		catalog:       catalog,
		ingest:        ingest,
		source:        source,
		state:         state,
		cfg:           cfg,
		minBinarySize: ingest.minBinarySize,
		logger:        slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *SyncService) WithLogger(logger *slog.Logger) *SyncService {
	s.logger = logger
	return s
}

// Channels returns the configured channels.
func (s *SyncService) Channels() []string {
	return slices.Clone(s.cfg.Channels)
}

// StateManager returns the pass state tracker.
func (s *SyncService) StateManager() *ingestor.StateManager {
	return s.state
}

// passContext starts a pass in the state manager and returns the context and
// logger it should run with.
func (s *SyncService) passContext(ctx context.Context, channelID string, kind ingestor.PassKind) (context.Context, context.CancelFunc, *slog.Logger, error) {
	passID := uuid.NewString()
	if err := s.state.Start(passID, channelID, kind); err != nil {
		return nil, nil, nil, err
	}

	logger := observability.WithOperation(s.logger, string(kind)).With(slog.String("pass_id", passID))
	if channelID != "" {
		logger = observability.WithChannel(logger, channelID)
	}

	if s.cfg.PassTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
		return ctx, cancel, logger, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, logger, nil
}

// SyncChannel runs one incremental or backfill pass over a channel. History
// is fetched newest first, albums are merged, and messages are ingested
// oldest first so channel context announcements precede their episodes.
// Messages already in the catalog are skipped. A fetch failure aborts the
// pass; per-message storage failures are counted and the pass continues.
func (s *SyncService) SyncChannel(ctx context.Context, channelID string, mode SyncMode) (ingestor.IngestStats, error) {
	kind := ingestor.PassIncremental
	opts := ingestor.HistoryOptions{Limit: s.cfg.IncrementalWindow}
	if mode == SyncModeBackfill {
		kind = ingestor.PassBackfill
		opts.Limit = s.cfg.Limit
		if s.cfg.ForceSync {
			opts.Limit = 0
		}
	}

	var stats ingestor.IngestStats
	ctx, cancel, logger, err := s.passContext(ctx, channelID, kind)
	if err != nil {
		return stats, err
	}
	defer cancel()

	start := time.Now()
	logger.InfoContext(ctx, "sync pass started", slog.Int("limit", opts.Limit))

	msgs, err := s.source.History(ctx, channelID, opts)
	if err != nil {
		err = fmt.Errorf("fetching history for %s: %w", channelID, err)
		s.state.Fail(channelID, kind, stats, err)
		observability.WithError(logger, err).ErrorContext(ctx, "sync pass aborted")
		return stats, err
	}
	stats.Fetched = len(msgs)

	slices.Reverse(msgs)
	msgs = ingestor.GroupAlbums(msgs, s.minBinarySize)

	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			s.state.Fail(channelID, kind, stats, err)
			return stats, fmt.Errorf("sync pass for %s interrupted: %w", channelID, err)
		}

		if msg.HasPlayableVideo(s.minBinarySize) {
			known, err := s.catalog.Episodes().Exists(ctx, channelID, msg.ID)
			if err != nil {
				stats.RecordError(err)
				continue
			}
			if known {
				stats.Duplicates++
				continue
			}
		}

		res, err := s.ingest.Ingest(ctx, msg)
		if err != nil {
			stats.RecordError(err)
			observability.WithError(logger, err).WarnContext(ctx, "failed to ingest message",
				slog.Int64("message_id", msg.ID),
			)
			continue
		}
		countResult(&stats, res)

		if (i+1)%progressInterval == 0 {
			s.state.UpdateProgress(channelID, kind, stats)
		}
	}

	s.state.Complete(channelID, kind, stats)
	logger.InfoContext(ctx, "sync pass completed",
		slog.Int("fetched", stats.Fetched),
		slog.Int("inserted", stats.Inserted),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.ErrorCount),
		slog.Duration("duration", time.Since(start)),
	)
	return stats, nil
}

func countResult(stats *ingestor.IngestStats, res IngestResult) {
	switch res.Status {
	case IngestInserted:
		stats.Inserted++
	case IngestDuplicate:
		stats.Duplicates++
	default:
		stats.Skipped++
	}
}

// Reconcile deletes stored episodes whose source messages are gone. It
// fetches the latest ReconcileWindow messages and removes every stored id
// between the oldest and newest fetched ids that the window no longer
// contains. Ids above the window are left alone since they may have arrived
// live after the fetch. Series left empty are removed with their last
// episode. An empty window skips the pass rather than deleting everything.
func (s *SyncService) Reconcile(ctx context.Context, channelID string) (stats ingestor.IngestStats, err error) {
	ctx, cancel, logger, err := s.passContext(ctx, channelID, ingestor.PassReconcile)
	if err != nil {
		return stats, err
	}
	defer cancel()
	done := observability.TimedOperationWithError(ctx, logger, "reconcile", &err)
	defer done()

	window := s.cfg.ReconcileWindow
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	msgs, err := s.source.History(ctx, channelID, ingestor.HistoryOptions{Limit: window})
	if err != nil {
		err = fmt.Errorf("fetching reconcile window for %s: %w", channelID, err)
		s.state.Fail(channelID, ingestor.PassReconcile, stats, err)
		return stats, err
	}
	stats.Fetched = len(msgs)
	if len(msgs) == 0 {
		logger.WarnContext(ctx, "reconcile window is empty, skipping")
		s.state.Complete(channelID, ingestor.PassReconcile, stats)
		return stats, nil
	}

	present := make(map[int64]struct{}, len(msgs))
	oldest, newest := msgs[0].ID, msgs[0].ID
	for _, m := range msgs {
		present[m.ID] = struct{}{}
		oldest = min(oldest, m.ID)
		newest = max(newest, m.ID)
	}

	stored, err := s.catalog.Episodes().MessageIDs(ctx, channelID, oldest, newest)
	if err != nil {
		err = fmt.Errorf("listing stored messages for %s: %w", channelID, err)
		s.state.Fail(channelID, ingestor.PassReconcile, stats, err)
		return stats, err
	}

	for _, id := range stored {
		if _, ok := present[id]; ok {
			continue
		}
		res, delErr := s.catalog.Episodes().DeleteByMessage(ctx, channelID, id)
		if delErr != nil {
			stats.RecordError(delErr)
			observability.WithError(logger, delErr).WarnContext(ctx, "failed to remove deleted message",
				slog.Int64("message_id", id),
			)
			continue
		}
		if res.EpisodeDeleted {
			stats.Deleted++
			logger.DebugContext(ctx, "removed deleted message",
				slog.Int64("message_id", id),
				slog.Bool("series_deleted", res.SeriesDeleted),
			)
		}
	}

	s.state.Complete(channelID, ingestor.PassReconcile, stats)
	logger.InfoContext(ctx, "reconcile pass completed",
		slog.Int("window", len(msgs)),
		slog.Int64("oldest", oldest),
		slog.Int64("newest", newest),
		slog.Int("checked", len(stored)),
		slog.Int("deleted", stats.Deleted),
	)
	return stats, nil
}

// Repair removes series without episodes and retypes movie series that hold
// more than one episode as series. It is idempotent.
func (s *SyncService) Repair(ctx context.Context) (result RepairResult, err error) {
	ctx, cancel, logger, err := s.passContext(ctx, "", ingestor.PassRepair)
	if err != nil {
		return result, err
	}
	defer cancel()
	done := observability.TimedOperationWithError(ctx, logger, "repair", &err)
	defer done()

	fail := func(cause error) (RepairResult, error) {
		s.state.Fail("", ingestor.PassRepair, ingestor.IngestStats{}, cause)
		return result, fmt.Errorf("repairing catalog: %w", cause)
	}

	orphans, err := s.catalog.Series().DeleteOrphans(ctx)
	if err != nil {
		return fail(err)
	}
	result.OrphansDeleted = orphans

	movies, err := s.catalog.Series().FindMisclassifiedMovies(ctx)
	if err != nil {
		return fail(err)
	}
	for _, m := range movies {
		survivor, err := s.catalog.Series().Retype(ctx, m.SeriesID, models.ContentTypeSeries)
		if err != nil {
			return fail(err)
		}
		result.Retyped++
		logger.InfoContext(ctx, "retyped movie as series",
			slog.String("series_id", m.SeriesID.String()),
			slog.String("name", m.Name),
			slog.Int64("episode_count", m.EpisodeCount),
			slog.Bool("merged", survivor != m.SeriesID),
		)
	}

	s.state.Complete("", ingestor.PassRepair, ingestor.IngestStats{})
	logger.InfoContext(ctx, "repair pass completed",
		slog.Int64("orphans_deleted", result.OrphansDeleted),
		slog.Int("retyped", result.Retyped),
	)
	return result, nil
}

// Startup runs the startup sequence: per channel an incremental pass, then a
// backfill when history import or a forced sync is configured; channels run
// concurrently up to MaxConcurrentChannels. A repair sweep follows, then
// reconciliation when CheckDeleted is set. Channel failures are logged and
// do not stop the other channels.
func (s *SyncService) Startup(ctx context.Context) (ingestor.IngestStats, error) {
	var total ingestor.IngestStats
	results := make([]ingestor.IngestStats, len(s.cfg.Channels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.MaxConcurrentChannels, 1))
	for i, channelID := range s.cfg.Channels {
		g.Go(func() error {
			stats, err := s.SyncChannel(gctx, channelID, SyncModeIncremental)
			results[i] = stats
			if err == nil && (s.cfg.ImportHistory || s.cfg.ForceSync) {
				stats, _ = s.SyncChannel(gctx, channelID, SyncModeBackfill)
				results[i].Add(stats)
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, r := range results {
		total.Add(r)
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}

	if _, err := s.Repair(ctx); err != nil {
		observability.WithError(s.logger, err).ErrorContext(ctx, "startup repair failed")
	}

	if s.cfg.CheckDeleted {
		for _, channelID := range s.cfg.Channels {
			stats, err := s.Reconcile(ctx, channelID)
			total.Deleted += stats.Deleted
			if err != nil && ctx.Err() != nil {
				return total, ctx.Err()
			}
		}
	}
	return total, nil
}

// SyncAll runs a pass of the given mode over every channel, bounded by
// MaxConcurrentChannels. It returns the joined channel errors.
func (s *SyncService) SyncAll(ctx context.Context, mode SyncMode) (ingestor.IngestStats, error) {
	return s.eachChannel(ctx, func(ctx context.Context, channelID string) (ingestor.IngestStats, error) {
		return s.SyncChannel(ctx, channelID, mode)
	})
}

// ReconcileAll reconciles every channel in turn.
func (s *SyncService) ReconcileAll(ctx context.Context) (ingestor.IngestStats, error) {
	return s.eachChannel(ctx, s.Reconcile)
}

func (s *SyncService) eachChannel(ctx context.Context, fn func(context.Context, string) (ingestor.IngestStats, error)) (ingestor.IngestStats, error) {
	results := make([]ingestor.IngestStats, len(s.cfg.Channels))
	errs := make([]error, len(s.cfg.Channels))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.MaxConcurrentChannels, 1))
	for i, channelID := range s.cfg.Channels {
		g.Go(func() error {
			results[i], errs[i] = fn(ctx, channelID)
			return nil
		})
	}
	_ = g.Wait()

	var total ingestor.IngestStats
	for _, r := range results {
		total.Add(r)
	}
	return total, errors.Join(errs...)
}

// Run applies live events while the startup sequence runs, then keeps
// applying them until ctx is done. A startup failure stops the live loop.
func (s *SyncService) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.Startup(gctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.logger.InfoContext(gctx, "startup sync finished",
			slog.Int("channels", len(s.cfg.Channels)),
			slog.Int("inserted", stats.Inserted),
			slog.Int("deleted", stats.Deleted),
			slog.Int("errors", stats.ErrorCount),
		)
		return nil
	})
	g.Go(func() error {
		return s.Live(gctx)
	})
	return g.Wait()
}

// Live subscribes to the source and applies events until ctx is done.
func (s *SyncService) Live(ctx context.Context) error {
	s.logger.InfoContext(ctx, "listening for live events",
		slog.String("source", s.source.Name()),
		slog.Int("channels", len(s.cfg.Channels)),
	)
	if err := s.source.Subscribe(ctx, s.cfg.Channels, s.HandleEvent); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.source.Name(), err)
	}
	return nil
}

// HandleEvent dispatches a live event.
func (s *SyncService) HandleEvent(ctx context.Context, ev ingestor.Event) error {
	switch ev.Kind {
	case ingestor.EventNewMessage:
		if ev.Message == nil {
			return nil
		}
		_, err := s.HandleNewMessage(ctx, *ev.Message)
		return err
	case ingestor.EventDeleted:
		_, err := s.HandleDeleted(ctx, ev.ChannelID, ev.MessageIDs)
		return err
	default:
		s.logger.DebugContext(ctx, "ignoring live event", slog.String("kind", string(ev.Kind)))
		return nil
	}
}

// HandleNewMessage ingests a live message. An uncaptioned video that belongs
// to an album borrows the caption of a sibling from the recent history.
func (s *SyncService) HandleNewMessage(ctx context.Context, msg ingestor.Message) (IngestResult, error) {
	if msg.GroupID != 0 && strings.TrimSpace(msg.Text) == "" && msg.HasPlayableVideo(s.minBinarySize) {
		recent, err := s.source.History(ctx, msg.ChannelID, ingestor.HistoryOptions{Limit: siblingCaptionWindow})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to fetch album siblings",
				slog.String("channel_id", msg.ChannelID),
				slog.Int64("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
		} else if caption := ingestor.SiblingCaption(recent, msg.GroupID, msg.ID); caption != "" {
			msg.Text = caption
		}
	}

	res, err := s.ingest.Ingest(ctx, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to ingest live message",
			slog.String("channel_id", msg.ChannelID),
			slog.Int64("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return res, err
	}
	if res.Status == IngestInserted {
		s.logger.InfoContext(ctx, "live episode added",
			slog.String("channel_id", msg.ChannelID),
			slog.Int64("message_id", msg.ID),
			slog.String("series_id", res.SeriesID.String()),
		)
	}
	return res, nil
}

// HandleDeleted removes the episodes of deleted messages and returns how many
// were removed.
func (s *SyncService) HandleDeleted(ctx context.Context, channelID string, messageIDs []int64) (int, error) {
	deleted := 0
	var errs []error
	for _, id := range messageIDs {
		res, err := s.catalog.Episodes().DeleteByMessage(ctx, channelID, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.EpisodeDeleted {
			deleted++
			s.logger.InfoContext(ctx, "live episode removed",
				slog.String("channel_id", channelID),
				slog.Int64("message_id", id),
				slog.Bool("series_deleted", res.SeriesDeleted),
			)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return deleted, fmt.Errorf("deleting messages from %s: %w", channelID, err)
	}
	return deleted, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/testutil"
)

func testSyncConfig(channels ...string) SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.Channels = channels
	cfg.PassTimeout = 10 * time.Second
	return cfg
}

func TestSyncChannel_IngestsOldestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	h.source.Add(
		testutil.TextMessage("@harbor", 1, "Show Name"),
		testutil.VideoMessage("@harbor", 2, "7"),
		testutil.VideoMessage("@harbor", 3, "8"),
	)

	stats, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 1, stats.Skipped)

	for msgID, want := range map[int64]int{2: 7, 3: 8} {
		ep, series := h.episode(t, "@harbor", msgID)
		assert.Equal(t, "Show Name", series.Name)
		assert.Equal(t, want, ep.EpisodeNumber)
	}

	state, ok := h.sync.StateManager().GetState("@harbor", ingestor.PassIncremental)
	require.True(t, ok)
	assert.Equal(t, ingestor.StatusCompleted, state.Status)
	assert.NotEmpty(t, state.PassID)
	assert.Equal(t, 2, state.Stats.Inserted)
}

func TestSyncChannel_SkipsKnownMessages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	gen := testutil.NewSampleDataGeneratorWithSeed(7)
	h.source.Add(testutil.Messages("@harbor", 100, gen.GenerateSeries("Blue Harbor", 2, 3, testutil.StyleSxxExx))...)

	stats, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Inserted)

	stats, err = h.sync.SyncChannel(ctx, "@harbor", SyncModeBackfill)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 6, stats.Duplicates)

	series, episodes := h.counts(t)
	assert.Equal(t, int64(1), series)
	assert.Equal(t, int64(6), episodes)
}

func TestSyncChannel_HistoryLimits(t *testing.T) {
	ctx := context.Background()
	cfg := testSyncConfig("@harbor")
	cfg.IncrementalWindow = 50
	cfg.Limit = 500
	h := newHarness(t, cfg)
	h.source.Add(testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"))

	_, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)
	_, err = h.sync.SyncChannel(ctx, "@harbor", SyncModeBackfill)
	require.NoError(t, err)

	cfg.ForceSync = true
	forced := NewSyncService(h.catalog, h.ingest, h.source, ingestor.NewStateManager(), cfg)
	_, err = forced.SyncChannel(ctx, "@harbor", SyncModeBackfill)
	require.NoError(t, err)

	calls := h.source.HistoryCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, 50, calls[0].Limit)
	assert.Equal(t, 500, calls[1].Limit)
	assert.Equal(t, 0, calls[2].Limit)
}

func TestSyncChannel_AlbumCaption(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))

	caption := testutil.PhotoMessage("@harbor", 10, "Blue Harbor S01E04")
	caption.GroupID = 77
	video := testutil.VideoMessage("@harbor", 11, "")
	video.GroupID = 77
	h.source.Add(caption, video)

	stats, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	ep, series := h.episode(t, "@harbor", 11)
	assert.Equal(t, "Blue Harbor", series.Name)
	assert.Equal(t, 4, ep.EpisodeNumber)
}

func TestSyncChannel_SourceFailureAbortsPass(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	h.source.Err = fmt.Errorf("%w: connection reset", ingestor.ErrSourceUnavailable)

	_, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.ErrorIs(t, err, ingestor.ErrSourceUnavailable)

	state, ok := h.sync.StateManager().GetState("@harbor", ingestor.PassIncremental)
	require.True(t, ok)
	assert.Equal(t, ingestor.StatusFailed, state.Status)

	// The next run retries.
	h.source.Err = nil
	h.source.Add(testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"))
	stats, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
}

func TestReconcile_DeletesMissingMessages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	h.source.Add(
		testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"),
		testutil.VideoMessage("@harbor", 2, "Blue Harbor S01E02"),
		testutil.VideoMessage("@harbor", 3, "Night Ferry S01E01"),
	)
	_, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)
	_, ferry := h.episode(t, "@harbor", 3)

	h.source.Delete("@harbor", 2, 3)
	stats, err := h.sync.Reconcile(ctx, "@harbor")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Deleted)

	series, episodes := h.counts(t)
	assert.Equal(t, int64(1), series)
	assert.Equal(t, int64(1), episodes)

	gone, err := h.catalog.Series().GetByID(ctx, ferry.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestReconcile_OnlyWithinWindow(t *testing.T) {
	ctx := context.Background()
	cfg := testSyncConfig("@harbor")
	cfg.ReconcileWindow = 2
	h := newHarness(t, cfg)
	for id := int64(1); id <= 4; id++ {
		h.source.Add(testutil.VideoMessage("@harbor", id, fmt.Sprintf("Blue Harbor S01E%02d", id)))
	}
	_, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)

	// Window is {4, 2}: 3 is gone, 1 is older than the window and kept.
	h.source.Delete("@harbor", 3)
	stats, err := h.sync.Reconcile(ctx, "@harbor")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	ids, err := h.catalog.Episodes().MessageIDs(ctx, "@harbor", 0, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, ids)
}

// liveDuringFetchSource delivers a live message after serving the first
// History call, between a reconcile window fetch and its diff.
type liveDuringFetchSource struct {
	*testutil.FakeSource
	once   sync.Once
	arrive func(ctx context.Context)
}

func (s *liveDuringFetchSource) History(ctx context.Context, channelID string, opts ingestor.HistoryOptions) ([]ingestor.Message, error) {
	msgs, err := s.FakeSource.History(ctx, channelID, opts)
	if err == nil {
		s.once.Do(func() { s.arrive(ctx) })
	}
	return msgs, err
}

func TestReconcile_KeepsMessagesNewerThanWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	for id := int64(1); id <= 5; id++ {
		msg := testutil.VideoMessage("@harbor", id, fmt.Sprintf("Blue Harbor S01E%02d", id))
		h.source.Add(msg)
		_, err := h.ingest.Ingest(ctx, msg)
		require.NoError(t, err)
	}

	src := &liveDuringFetchSource{FakeSource: h.source}
	svc := NewSyncService(h.catalog, h.ingest, src, ingestor.NewStateManager(), testSyncConfig("@harbor"))
	src.arrive = func(ctx context.Context) {
		live := testutil.VideoMessage("@harbor", 6, "Blue Harbor S01E06")
		src.Add(live)
		res, err := svc.HandleNewMessage(ctx, live)
		require.NoError(t, err)
		require.Equal(t, IngestInserted, res.Status)
	}

	stats, err := svc.Reconcile(ctx, "@harbor")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Fetched)
	assert.Zero(t, stats.Deleted)

	ep, _ := h.episode(t, "@harbor", 6)
	assert.Equal(t, 6, ep.EpisodeNumber)
	_, episodes := h.counts(t)
	assert.Equal(t, int64(6), episodes)
}

func TestReconcile_EmptyWindowSkips(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	h.source.Add(testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"))
	_, err := h.sync.SyncChannel(ctx, "@harbor", SyncModeIncremental)
	require.NoError(t, err)

	h.source.Delete("@harbor", 1)
	stats, err := h.sync.Reconcile(ctx, "@harbor")
	require.NoError(t, err)
	assert.Zero(t, stats.Deleted)

	_, episodes := h.counts(t)
	assert.Equal(t, int64(1), episodes)
}

func TestReconcile_SourceFailure(t *testing.T) {
	h := newHarness(t, testSyncConfig("@harbor"))
	_, err := h.sync.Reconcile(context.Background(), "@missing")
	assert.ErrorIs(t, err, ingestor.ErrChannelNotFound)
}

func TestRepair(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@amber"))

	seedSeries(t, h.catalog.Series(), "Announced But Empty", models.ContentTypeSeries)
	for id := int64(1); id <= 2; id++ {
		res, err := h.ingest.Ingest(ctx, testutil.VideoMessage("@amber", id, "Amber Signal"))
		require.NoError(t, err)
		require.Equal(t, IngestInserted, res.Status)
	}
	_, movie := h.episode(t, "@amber", 2)
	require.Equal(t, models.ContentTypeMovie, movie.ContentType)

	result, err := h.sync.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.OrphansDeleted)
	assert.Equal(t, 1, result.Retyped)

	_, retyped := h.episode(t, "@amber", 2)
	assert.Equal(t, movie.ID, retyped.ID)
	assert.Equal(t, models.ContentTypeSeries, retyped.ContentType)

	// A second sweep has nothing left to do.
	result, err = h.sync.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, RepairResult{}, result)
}

func TestHandleNewMessage_BorrowsAlbumCaption(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@ferry"))

	caption := testutil.PhotoMessage("@ferry", 20, "Night Ferry S01E02")
	caption.GroupID = 5
	video := testutil.VideoMessage("@ferry", 21, "")
	video.GroupID = 5
	h.source.Add(caption, video)

	res, err := h.sync.HandleNewMessage(ctx, video)
	require.NoError(t, err)
	assert.Equal(t, IngestInserted, res.Status)

	ep, series := h.episode(t, "@ferry", 21)
	assert.Equal(t, "Night Ferry", series.Name)
	assert.Equal(t, 2, ep.EpisodeNumber)
}

func TestHandleDeleted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSyncConfig("@harbor"))
	_, err := h.sync.HandleNewMessage(ctx, testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"))
	require.NoError(t, err)

	n, err := h.sync.HandleDeleted(ctx, "@harbor", []int64{1, 99})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	series, episodes := h.counts(t)
	assert.Zero(t, series)
	assert.Zero(t, episodes)
}

func TestStartup_IsolatesChannelFailures(t *testing.T) {
	ctx := context.Background()
	cfg := testSyncConfig("@harbor", "@missing")
	cfg.ImportHistory = true
	cfg.CheckDeleted = true
	h := newHarness(t, cfg)
	h.source.Add(
		testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"),
		testutil.VideoMessage("@harbor", 2, "Blue Harbor S01E02"),
	)

	stats, err := h.sync.Startup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)

	state, ok := h.sync.StateManager().GetState("@missing", ingestor.PassIncremental)
	require.True(t, ok)
	assert.Equal(t, ingestor.StatusFailed, state.Status)

	_, ok = h.sync.StateManager().GetState("@harbor", ingestor.PassBackfill)
	assert.True(t, ok)
	_, ok = h.sync.StateManager().GetState("", ingestor.PassRepair)
	assert.True(t, ok)
	_, ok = h.sync.StateManager().GetState("@harbor", ingestor.PassReconcile)
	assert.True(t, ok)
}

func TestSyncAll_JoinsErrors(t *testing.T) {
	h := newHarness(t, testSyncConfig("@harbor", "@missing"))
	h.source.Add(testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"))

	stats, err := h.sync.SyncAll(context.Background(), SyncModeIncremental)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ingestor.ErrChannelNotFound))
	assert.Equal(t, 1, stats.Inserted)
}

func TestRun_AppliesLiveEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, testSyncConfig("@harbor"))
	h.source.Add(testutil.VideoMessage("@harbor", 1, "Blue Harbor S01E01"))

	done := make(chan error, 1)
	go func() { done <- h.sync.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.episodeCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	live := testutil.VideoMessage("@harbor", 2, "Blue Harbor S01E02")
	h.source.Emit(ingestor.Event{Kind: ingestor.EventNewMessage, ChannelID: "@harbor", Message: &live})
	require.Eventually(t, func() bool {
		return h.episodeCount() == 2
	}, 5*time.Second, 20*time.Millisecond)

	h.source.Emit(ingestor.Event{Kind: ingestor.EventDeleted, ChannelID: "@harbor", MessageIDs: []int64{1}})
	require.Eventually(t, func() bool {
		return h.episodeCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// stalledHistorySource blocks every History call until release is closed.
type stalledHistorySource struct {
	*testutil.FakeSource
	release chan struct{}
}

func (s *stalledHistorySource) History(ctx context.Context, channelID string, opts ingestor.HistoryOptions) ([]ingestor.Message, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.FakeSource.History(ctx, channelID, opts)
}

func TestRun_LiveEventsDoNotWaitForStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, testSyncConfig("@harbor"))
	for id := int64(1); id <= 2; id++ {
		msg := testutil.VideoMessage("@harbor", id, fmt.Sprintf("Blue Harbor S01E%02d", id))
		h.source.Add(msg)
		_, err := h.ingest.Ingest(ctx, msg)
		require.NoError(t, err)
	}

	src := &stalledHistorySource{FakeSource: h.source, release: make(chan struct{})}
	svc := NewSyncService(h.catalog, h.ingest, src, ingestor.NewStateManager(), testSyncConfig("@harbor"))

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc.StateManager().IsRunning("@harbor", ingestor.PassIncremental)
	}, 5*time.Second, 10*time.Millisecond)

	h.source.Delete("@harbor", 1)
	h.source.Emit(ingestor.Event{Kind: ingestor.EventDeleted, ChannelID: "@harbor", MessageIDs: []int64{1}})
	require.Eventually(t, func() bool {
		return h.episodeCount() == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, svc.StateManager().IsRunning("@harbor", ingestor.PassIncremental))

	close(src.release)
	require.Eventually(t, func() bool {
		state, ok := svc.StateManager().GetState("@harbor", ingestor.PassIncremental)
		return ok && state.Status == ingestor.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

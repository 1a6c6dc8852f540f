package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/reelarr/internal/classifier"
	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/repository"
	"github.com/jmylchreest/reelarr/internal/testutil"
)

// harness wires the services over an in-memory catalog and a fake source.
type harness struct {
	catalog repository.Catalog
	source  *testutil.FakeSource
	tracker *ingestor.ContextTracker
	ingest  *IngestService
	sync    *SyncService
	reads   *CatalogService
}

func newHarness(t *testing.T, cfg SyncConfig) *harness {
	t.Helper()
	catalog := repository.NewCatalog(testutil.NewTestDB(t))
	c := classifier.New()
	tracker := ingestor.NewContextTracker(c, catalog.Contexts())
	ingest := NewIngestService(catalog, c, tracker, NewResolver())
	source := testutil.NewFakeSource()

	return &harness{
		catalog: catalog,
		source:  source,
		tracker: tracker,
		ingest:  ingest,
		sync:    NewSyncService(catalog, ingest, source, ingestor.NewStateManager(), cfg),
		reads:   NewCatalogService(catalog),
	}
}

func (h *harness) episode(t *testing.T, channelID string, messageID int64) (*models.Episode, *models.Series) {
	t.Helper()
	ctx := context.Background()
	ep, err := h.catalog.Episodes().GetByMessage(ctx, channelID, messageID)
	require.NoError(t, err)
	require.NotNil(t, ep, "episode for message %d", messageID)
	series, err := h.catalog.Series().GetByID(ctx, ep.SeriesID)
	require.NoError(t, err)
	require.NotNil(t, series)
	return ep, series
}

func (h *harness) counts(t *testing.T) (series, episodes int64) {
	t.Helper()
	ctx := context.Background()
	series, err := h.catalog.Series().Count(ctx, "")
	require.NoError(t, err)
	episodes, err = h.catalog.Episodes().Count(ctx)
	require.NoError(t, err)
	return series, episodes
}

// episodeCount is safe to call from require.Eventually conditions.
func (h *harness) episodeCount() int64 {
	n, err := h.catalog.Episodes().Count(context.Background())
	if err != nil {
		return -1
	}
	return n
}

func TestIngest_InsertsEpisode(t *testing.T) {
	h := newHarness(t, DefaultSyncConfig())

	res, err := h.ingest.Ingest(context.Background(), testutil.VideoMessage("@harbor", 10, "Blue Harbor Season 2 Episode 5"))
	require.NoError(t, err)
	assert.Equal(t, IngestInserted, res.Status)
	assert.True(t, res.SeriesCreated)
	assert.Equal(t, "season_episode_words", res.Rule)

	ep, series := h.episode(t, "@harbor", 10)
	assert.Equal(t, res.EpisodeID, ep.ID)
	assert.Equal(t, "Blue Harbor", series.Name)
	assert.Equal(t, models.ContentTypeSeries, series.ContentType)
	assert.Equal(t, 2, ep.SeasonNumber)
	assert.Equal(t, 5, ep.EpisodeNumber)
}

func TestIngest_MoviePart(t *testing.T) {
	h := newHarness(t, DefaultSyncConfig())

	_, err := h.ingest.Ingest(context.Background(), testutil.VideoMessage("@amber", 3, "movie Amber Signal 3"))
	require.NoError(t, err)

	ep, series := h.episode(t, "@amber", 3)
	assert.Equal(t, "Amber Signal", series.Name)
	assert.Equal(t, models.ContentTypeMovie, series.ContentType)
	assert.Equal(t, 3, ep.SeasonNumber)
	assert.Equal(t, 1, ep.EpisodeNumber)
}

func TestIngest_DuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())
	msg := testutil.VideoMessage("@harbor", 10, "Blue Harbor S01E01")

	first, err := h.ingest.Ingest(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, IngestInserted, first.Status)

	second, err := h.ingest.Ingest(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, IngestDuplicate, second.Status)

	series, episodes := h.counts(t)
	assert.Equal(t, int64(1), series)
	assert.Equal(t, int64(1), episodes)
}

func TestIngest_DuplicateDoesNotCreateSeries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())

	_, err := h.ingest.Ingest(ctx, testutil.VideoMessage("@harbor", 10, "Blue Harbor S01E01"))
	require.NoError(t, err)

	// The same message seen again with an edited caption.
	res, err := h.ingest.Ingest(ctx, testutil.VideoMessage("@harbor", 10, "Night Ferry S01E01"))
	require.NoError(t, err)
	assert.Equal(t, IngestDuplicate, res.Status)

	series, _ := h.counts(t)
	assert.Equal(t, int64(1), series)
}

func TestIngest_ChannelContext(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())

	res, err := h.ingest.Ingest(ctx, testutil.TextMessage("@harbor", 1, "Show Name"))
	require.NoError(t, err)
	assert.Equal(t, IngestSkipped, res.Status)

	res, err = h.ingest.Ingest(ctx, testutil.VideoMessage("@harbor", 2, "7"))
	require.NoError(t, err)
	require.Equal(t, IngestInserted, res.Status)
	assert.Equal(t, "channel_context", res.Rule)

	ep, series := h.episode(t, "@harbor", 2)
	assert.Equal(t, "Show Name", series.Name)
	assert.Equal(t, models.ContentTypeSeries, series.ContentType)
	assert.Equal(t, 1, ep.SeasonNumber)
	assert.Equal(t, 7, ep.EpisodeNumber)

	// The announcement is persisted for restarts.
	stored, err := h.catalog.Contexts().Get(ctx, "@harbor")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Show Name", stored.SeriesName)
}

func TestIngest_ContextIsPerChannel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())

	_, err := h.ingest.Ingest(ctx, testutil.TextMessage("@harbor", 1, "Show Name"))
	require.NoError(t, err)
	_, err = h.ingest.Ingest(ctx, testutil.VideoMessage("@ferry", 2, "7"))
	require.NoError(t, err)

	_, series := h.episode(t, "@ferry", 2)
	assert.Equal(t, "Unnamed_2", series.Name)
	assert.Equal(t, models.ContentTypeMovie, series.ContentType)
}

func TestIngest_Placeholders(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())

	_, err := h.ingest.Ingest(ctx, testutil.VideoMessage("@harbor", 55, ""))
	require.NoError(t, err)
	_, series := h.episode(t, "@harbor", 55)
	assert.Equal(t, "Unnamed_55", series.Name)

	grouped := testutil.VideoMessage("@harbor", 56, "")
	grouped.GroupID = 9001
	_, err = h.ingest.Ingest(ctx, grouped)
	require.NoError(t, err)
	_, series = h.episode(t, "@harbor", 56)
	assert.Equal(t, "Unnamed_Group_9001", series.Name)
}

func TestIngest_SkipsMessagesWithoutVideo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())

	res, err := h.ingest.Ingest(ctx, testutil.PhotoMessage("@harbor", 1, "Blue Harbor S01E01"))
	require.NoError(t, err)
	assert.Equal(t, IngestSkipped, res.Status)

	// Text with numbers is not an announcement.
	res, err = h.ingest.Ingest(ctx, testutil.TextMessage("@harbor", 2, "Blue Harbor episode 4 tonight"))
	require.NoError(t, err)
	assert.Equal(t, IngestSkipped, res.Status)
	_, ok := h.tracker.Lookup("@harbor")
	assert.False(t, ok)

	_, episodes := h.counts(t)
	assert.Zero(t, episodes)
}

func TestIngest_TypePolicyUsesEpisodeCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())

	existing := seedSeries(t, h.catalog.Series(), "Night Ferry", models.ContentTypeSeries)
	for i := range int64(5) {
		_, err := h.reads.UpsertEpisode(ctx, existing.ID, 1, int(i)+1, "@ferry", 100+i)
		require.NoError(t, err)
	}

	// No numbering or markers: the fallback would make this a movie, but five
	// stored episodes under the name make it a series.
	res, err := h.ingest.Ingest(ctx, testutil.VideoMessage("@ferry", 200, "Night Ferry"))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.SeriesID)
}

func TestIngest_TypePolicyDisabled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSyncConfig())
	h.ingest.WithTypePolicy(classifier.TypePolicy{})

	existing := seedSeries(t, h.catalog.Series(), "Night Ferry", models.ContentTypeSeries)
	for i := range int64(5) {
		_, err := h.reads.UpsertEpisode(ctx, existing.ID, 1, int(i)+1, "@ferry", 100+i)
		require.NoError(t, err)
	}

	res, err := h.ingest.Ingest(ctx, testutil.VideoMessage("@ferry", 200, "Night Ferry"))
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, res.SeriesID)

	_, series := h.episode(t, "@ferry", 200)
	assert.Equal(t, models.ContentTypeMovie, series.ContentType)
}

func TestPlaceholderName(t *testing.T) {
	assert.Equal(t, "Unnamed_12", placeholderName(ingestor.Message{ID: 12}))
	assert.Equal(t, "Unnamed_Group_7", placeholderName(ingestor.Message{ID: 12, GroupID: 7}))
}

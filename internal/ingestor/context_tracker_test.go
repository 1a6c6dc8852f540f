package ingestor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/reelarr/internal/classifier"
	"github.com/jmylchreest/reelarr/internal/models"
)

type memoryContextStore struct {
	rows      map[string]string
	upserts   int
	upsertErr error
}

func newMemoryContextStore() *memoryContextStore {
	return &memoryContextStore{rows: make(map[string]string)}
}

func (s *memoryContextStore) Upsert(_ context.Context, channelID, seriesName string) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.rows[channelID] = seriesName
	return nil
}

func (s *memoryContextStore) List(context.Context) ([]*models.ChannelContext, error) {
	out := make([]*models.ChannelContext, 0, len(s.rows))
	for ch, name := range s.rows {
		out = append(out, &models.ChannelContext{ChannelID: ch, SeriesName: name})
	}
	return out, nil
}

func (s *memoryContextStore) Delete(_ context.Context, channelID string) error {
	delete(s.rows, channelID)
	return nil
}

func TestContextTracker_ObserveAndSynthesize(t *testing.T) {
	ctx := context.Background()
	store := newMemoryContextStore()
	tracker := NewContextTracker(classifier.New(), store)

	name, ok, err := tracker.Observe(ctx, "@harbor", "Show Name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Show Name", name)
	assert.Equal(t, "Show Name", store.rows["@harbor"])

	c, ok := tracker.Synthesize("@harbor", "7")
	require.True(t, ok)
	assert.Equal(t, "Show Name", c.Name)
	assert.Equal(t, models.ContentTypeSeries, c.Type)
	assert.Equal(t, 1, c.Season)
	assert.Equal(t, 7, c.Episode)
	assert.True(t, c.Evidence)
	assert.Equal(t, "channel_context", c.Rule)

	_, ok = tracker.Synthesize("@other", "7")
	assert.False(t, ok)
}

func TestContextTracker_IgnoresNonAnnouncements(t *testing.T) {
	tracker := NewContextTracker(classifier.New(), nil)

	_, ok, err := tracker.Observe(context.Background(), "@harbor", "Show 2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = tracker.Lookup("@harbor")
	assert.False(t, ok)
}

func TestContextTracker_PersistsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	store := newMemoryContextStore()
	tracker := NewContextTracker(classifier.New(), store)

	_, _, _ = tracker.Observe(ctx, "@harbor", "Show Name")
	_, _, _ = tracker.Observe(ctx, "@harbor", "Show Name")
	assert.Equal(t, 1, store.upserts)

	_, _, _ = tracker.Observe(ctx, "@harbor", "Other Show")
	assert.Equal(t, 2, store.upserts)

	name, _ := tracker.Lookup("@harbor")
	assert.Equal(t, "Other Show", name)
}

func TestContextTracker_KeepsMemoryWhenStoreFails(t *testing.T) {
	store := newMemoryContextStore()
	store.upsertErr = errors.New("disk full")
	tracker := NewContextTracker(classifier.New(), store)

	name, ok, err := tracker.Observe(context.Background(), "@harbor", "Show Name")
	require.Error(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Show Name", name)

	got, found := tracker.Lookup("@harbor")
	assert.True(t, found)
	assert.Equal(t, "Show Name", got)
}

func TestContextTracker_LoadAndClear(t *testing.T) {
	ctx := context.Background()
	store := newMemoryContextStore()
	store.rows["@harbor"] = "Blue Harbor"

	tracker := NewContextTracker(classifier.New(), store)
	require.NoError(t, tracker.Load(ctx))

	name, ok := tracker.Lookup("@harbor")
	require.True(t, ok)
	assert.Equal(t, "Blue Harbor", name)

	require.NoError(t, tracker.Clear(ctx, "@harbor"))
	_, ok = tracker.Lookup("@harbor")
	assert.False(t, ok)
	assert.Empty(t, store.rows)
}

func TestContextTracker_LoadDropsStaleNames(t *testing.T) {
	ctx := context.Background()
	store := newMemoryContextStore()

	tracker := NewContextTracker(classifier.New(), store)
	_, ok, err := tracker.Observe(ctx, "@harbor", "Blue Harbor")
	require.NoError(t, err)
	require.True(t, ok)

	delete(store.rows, "@harbor")
	require.NoError(t, tracker.Load(ctx))

	_, ok = tracker.Lookup("@harbor")
	assert.False(t, ok)
}

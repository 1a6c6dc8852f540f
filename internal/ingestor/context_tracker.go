package ingestor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/reelarr/internal/classifier"
	"github.com/jmylchreest/reelarr/internal/models"
)

// ContextStore persists channel contexts across restarts.
type ContextStore interface {
	Upsert(ctx context.Context, channelID, seriesName string) error
	List(ctx context.Context) ([]*models.ChannelContext, error)
	Delete(ctx context.Context, channelID string) error
}

// ContextTracker remembers, per channel, the series name announced by the
// latest caption-only post. A later attachment whose caption carries only
// numbers is attributed to that series.
//
// Observe must see a channel's messages oldest first.
type ContextTracker struct {
	mu         sync.RWMutex
	names      map[string]string
	store      ContextStore
	classifier *classifier.Classifier
	logger     *slog.Logger
}

// NewContextTracker creates a tracker. store may be nil for a memory-only tracker.
func NewContextTracker(c *classifier.Classifier, store ContextStore) *ContextTracker {
	return &ContextTracker{
		names:      make(map[string]string),
		store:      store,
		classifier: c,
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger.
func (t *ContextTracker) WithLogger(logger *slog.Logger) *ContextTracker {
	t.logger = logger
	return t
}

// Load replaces the in-memory contexts with the stored ones.
func (t *ContextTracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	rows, err := t.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading channel contexts: %w", err)
	}

	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.ChannelID] = row.SeriesName
	}
	t.mu.Lock()
	t.names = names
	t.mu.Unlock()
	t.logger.DebugContext(ctx, "channel contexts loaded", slog.Int("count", len(rows)))
	return nil
}

// Observe records a caption-only post if it is a title announcement and
// returns the recorded name. The in-memory context is updated even when
// persisting it fails.
func (t *ContextTracker) Observe(ctx context.Context, channelID, caption string) (string, bool, error) {
	name, ok := t.classifier.TitleAnnouncement(caption)
	if !ok {
		return "", false, nil
	}

	t.mu.Lock()
	prev := t.names[channelID]
	t.names[channelID] = name
	t.mu.Unlock()

	if prev == name {
		return name, true, nil
	}
	t.logger.DebugContext(ctx, "channel context updated",
		slog.String("channel_id", channelID),
		slog.String("series_name", name),
	)

	if t.store != nil {
		if err := t.store.Upsert(ctx, channelID, name); err != nil {
			return name, true, fmt.Errorf("persisting channel context: %w", err)
		}
	}
	return name, true, nil
}

// Lookup returns the announced series name for a channel.
func (t *ContextTracker) Lookup(channelID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.names[channelID]
	return name, ok
}

// Synthesize builds a series candidate from the channel context and up to two
// numbers found in the caption.
func (t *ContextTracker) Synthesize(channelID, caption string) (classifier.Candidate, bool) {
	name, ok := t.Lookup(channelID)
	if !ok {
		return classifier.Candidate{}, false
	}
	season, episode := classifier.Numbers(caption)
	return classifier.Candidate{
		Name:     name,
		Type:     models.ContentTypeSeries,
		Season:   season,
		Episode:  episode,
		Evidence: true,
		Rule:     "channel_context",
	}, true
}

// Clear forgets the context for a channel.
func (t *ContextTracker) Clear(ctx context.Context, channelID string) error {
	t.mu.Lock()
	delete(t.names, channelID)
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	return t.store.Delete(ctx, channelID)
}

package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jmylchreest/reelarr/internal/ingestor"
)

// FakeSource is an in-memory ingestor.Source. History is served newest
// first; live events are delivered through Emit.
type FakeSource struct {
	mu       sync.Mutex
	channels map[string][]ingestor.Message
	events   chan ingestor.Event
	calls    []ingestor.HistoryOptions

	// Err is returned by History when set.
	Err error
}

// NewFakeSource creates an empty fake source.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		channels: make(map[string][]ingestor.Message),
		events:   make(chan ingestor.Event, 64),
	}
}

// Name implements ingestor.Source.
func (s *FakeSource) Name() string { return "fake" }

// Add appends messages to their channels.
func (s *FakeSource) Add(msgs ...ingestor.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.channels[m.ChannelID] = append(s.channels[m.ChannelID], m)
	}
}

// Delete removes messages from a channel.
func (s *FakeSource) Delete(channelID string, ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.channels[channelID][:0]
	for _, m := range s.channels[channelID] {
		if _, ok := drop[m.ID]; !ok {
			kept = append(kept, m)
		}
	}
	s.channels[channelID] = kept
}

// HistoryCalls returns the options of every History call so far.
func (s *FakeSource) HistoryCalls() []ingestor.HistoryOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ingestor.HistoryOptions(nil), s.calls...)
}

// History implements ingestor.Source.
func (s *FakeSource) History(ctx context.Context, channelID string, opts ingestor.HistoryOptions) ([]ingestor.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)

	if s.Err != nil {
		return nil, s.Err
	}
	msgs, ok := s.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ingestor.ErrChannelNotFound, channelID)
	}

	sorted := append([]ingestor.Message(nil), msgs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	var out []ingestor.Message
	for _, m := range sorted {
		if m.ID <= opts.MinID {
			break
		}
		out = append(out, m)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Emit queues a live event for Subscribe.
func (s *FakeSource) Emit(ev ingestor.Event) {
	s.events <- ev
}

// Subscribe implements ingestor.Source.
func (s *FakeSource) Subscribe(ctx context.Context, channelIDs []string, handler ingestor.EventHandler) error {
	watched := make(map[string]struct{}, len(channelIDs))
	for _, ch := range channelIDs {
		watched[ch] = struct{}{}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			if _, ok := watched[ev.ChannelID]; !ok {
				continue
			}
			_ = handler(ctx, ev)
		}
	}
}

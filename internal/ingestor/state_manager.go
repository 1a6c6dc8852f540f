package ingestor

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PassKind names a sync pass.
type PassKind string

const (
	PassBackfill    PassKind = "backfill"
	PassIncremental PassKind = "incremental"
	PassReconcile   PassKind = "reconcile"
	PassRepair      PassKind = "repair"
)

// Pass statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PassState is the state of the latest pass of one kind for one channel.
// Repair passes are catalog-wide and use an empty ChannelID.
type PassState struct {
	PassID      string      `json:"pass_id"`
	ChannelID   string      `json:"channel_id,omitempty"`
	Kind        PassKind    `json:"kind"`
	Status      string      `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	LastUpdated time.Time   `json:"last_updated"`
	Stats       IngestStats `json:"stats"`
	Error       string      `json:"error,omitempty"`
}

// StateManager tracks sync passes. Only one pass of a kind may run per
// channel at a time; the last finished state is kept for status reporting.
type StateManager struct {
	mu     sync.RWMutex
	states map[string]*PassState
}

// NewStateManager creates a new state manager.
func NewStateManager() *StateManager {
	return &StateManager{
		states: make(map[string]*PassState),
	}
}

func stateKey(channelID string, kind PassKind) string {
	return string(kind) + "|" + channelID
}

// Start marks a pass as running. It fails if the same pass is already running.
func (m *StateManager) Start(passID, channelID string, kind PassKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stateKey(channelID, kind)
	if s, exists := m.states[key]; exists && s.Status == StatusRunning {
		return fmt.Errorf("%w: %s for channel %q", ErrPassRunning, kind, channelID)
	}

	now := time.Now()
	m.states[key] = &PassState{
		PassID:      passID,
		ChannelID:   channelID,
		Kind:        kind,
		Status:      StatusRunning,
		StartedAt:   now,
		LastUpdated: now,
	}
	return nil
}

// UpdateProgress records intermediate statistics of a running pass.
func (m *StateManager) UpdateProgress(channelID string, kind PassKind, stats IngestStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.states[stateKey(channelID, kind)]; exists {
		s.Stats = stats
		s.LastUpdated = time.Now()
	}
}

// Complete marks a pass as completed.
func (m *StateManager) Complete(channelID string, kind PassKind, stats IngestStats) {
	m.finish(channelID, kind, stats, nil)
}

// Fail marks a pass as failed.
func (m *StateManager) Fail(channelID string, kind PassKind, stats IngestStats, err error) {
	m.finish(channelID, kind, stats, err)
}

func (m *StateManager) finish(channelID string, kind PassKind, stats IngestStats, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.states[stateKey(channelID, kind)]
	if !exists {
		return
	}
	s.Stats = stats
	s.LastUpdated = time.Now()
	if err != nil {
		s.Status = StatusFailed
		s.Error = err.Error()
		return
	}
	s.Status = StatusCompleted
}

// GetState returns a copy of the latest state of a pass.
func (m *StateManager) GetState(channelID string, kind PassKind) (*PassState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.states[stateKey(channelID, kind)]
	if !exists {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// IsRunning reports whether a pass is in progress.
func (m *StateManager) IsRunning(channelID string, kind PassKind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.states[stateKey(channelID, kind)]
	return exists && s.Status == StatusRunning
}

// ActiveCount returns the number of running passes.
func (m *StateManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.states {
		if s.Status == StatusRunning {
			count++
		}
	}
	return count
}

// GetAllStates returns copies of all known pass states, newest first.
func (m *StateManager) GetAllStates() []*PassState {
	m.mu.RLock()
	states := make([]*PassState, 0, len(m.states))
	for _, s := range m.states {
		cp := *s
		states = append(states, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.After(states[j].StartedAt)
	})
	return states
}

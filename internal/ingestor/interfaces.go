// Package ingestor reads channel messages from a transport and prepares them
// for cataloguing: media detection, album grouping and per-channel context.
package ingestor

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable wraps transport failures. A sync pass that sees it
	// aborts for the affected channel and is retried on the next run.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrChannelNotFound is returned when the transport does not know a channel.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrPassRunning is returned when the same pass is started twice.
	ErrPassRunning = errors.New("pass already in progress")
)

// MediaKind is the declared kind of a message attachment.
type MediaKind string

const (
	MediaKindNone     MediaKind = ""
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
	MediaKindPhoto    MediaKind = "photo"
	MediaKindAudio    MediaKind = "audio"
	MediaKindOther    MediaKind = "other"
)

// Media describes a message attachment as reported by the transport.
type Media struct {
	Kind              MediaKind `json:"kind"`
	MimeType          string    `json:"mime_type,omitempty"`
	FileName          string    `json:"file_name,omitempty"`
	Size              int64     `json:"size,omitempty"`
	HasVideoAttribute bool      `json:"video_attribute,omitempty"`
}

// Message is one channel post.
type Message struct {
	ChannelID string    `json:"channel_id"`
	ID        int64     `json:"id"`
	Text      string    `json:"text,omitempty"`
	GroupID   int64     `json:"group_id,omitempty"`
	Date      time.Time `json:"date"`
	Media     *Media    `json:"media,omitempty"`
}

// HistoryOptions bounds a history fetch.
type HistoryOptions struct {
	// Limit caps the number of messages returned; zero means no cap.
	Limit int
	// MinID excludes messages with an ID at or below it.
	MinID int64
}

// EventKind distinguishes live events.
type EventKind string

const (
	EventNewMessage EventKind = "new_message"
	EventDeleted    EventKind = "deleted"
)

// Event is a live notification from the transport.
type Event struct {
	Kind      EventKind
	ChannelID string
	// Message is set for EventNewMessage.
	Message *Message
	// MessageIDs is set for EventDeleted.
	MessageIDs []int64
}

// EventHandler is called for each live event. Returning an error is logged
// by the source and does not stop the subscription.
type EventHandler func(ctx context.Context, ev Event) error

// Source supplies channel messages. Implementations must be safe for
// concurrent use by multiple channel passes.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// History returns channel messages newest first.
	History(ctx context.Context, channelID string, opts HistoryOptions) ([]Message, error)

	// Subscribe delivers live events for the channels until ctx is done.
	// Sources without a live feed return nil immediately.
	Subscribe(ctx context.Context, channelIDs []string, handler EventHandler) error
}

// maxRecordedErrors caps IngestStats.Errors.
const maxRecordedErrors = 10

// IngestStats contains statistics from a sync pass.
type IngestStats struct {
	// Fetched is the number of messages returned by the source.
	Fetched int `json:"fetched"`

	// Inserted is the number of new episodes.
	Inserted int `json:"inserted"`

	// Duplicates is the number of messages already in the catalog.
	Duplicates int `json:"duplicates"`

	// Skipped is the number of messages without a playable attachment or
	// without a usable classification.
	Skipped int `json:"skipped"`

	// Deleted is the number of episodes removed by reconciliation.
	Deleted int `json:"deleted"`

	// ErrorCount is the number of messages that failed to store.
	ErrorCount int `json:"error_count"`

	// Errors contains up to the first few errors encountered.
	Errors []error `json:"-"`
}

// RecordError counts err and keeps it if there is room.
func (s *IngestStats) RecordError(err error) {
	s.ErrorCount++
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, err)
	}
}

// Add folds other into s.
func (s *IngestStats) Add(other IngestStats) {
	s.Fetched += other.Fetched
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.Skipped += other.Skipped
	s.Deleted += other.Deleted
	for _, err := range other.Errors {
		if len(s.Errors) < maxRecordedErrors {
			s.Errors = append(s.Errors, err)
		}
	}
	s.ErrorCount += other.ErrorCount
}

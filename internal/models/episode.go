package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Episode is one ingested playable item: an episode of a series or a part of
// a movie. A source message is ingested at most once, so (channel, message)
// is unique. Episode numbers are not unique within a season.
type Episode struct {
	BaseModel

	SeriesID ULID `gorm:"type:varchar(26);not null;index:idx_episodes_series_season" json:"series_id"`

	// SeasonNumber holds the season for series and the part for movies.
	SeasonNumber int `gorm:"not null;default:1;index:idx_episodes_series_season" json:"season_number"`

	// EpisodeNumber is 1 for movie parts.
	EpisodeNumber int `gorm:"not null;default:1" json:"episode_number"`

	// ChannelID is "@username" for public channels or the numeric peer id.
	ChannelID string `gorm:"not null;size:255;uniqueIndex:idx_episodes_source_message" json:"channel_id"`

	MessageID int64 `gorm:"not null;uniqueIndex:idx_episodes_source_message" json:"message_id"`

	Series *Series `gorm:"foreignKey:SeriesID" json:"series,omitempty"`
}

// TableName returns the table name for Episode.
func (Episode) TableName() string {
	return "episodes"
}

// Validate performs basic validation on the episode.
func (e *Episode) Validate() error {
	if e.SeriesID.IsZero() {
		return ErrSeriesIDRequired
	}
	if e.ChannelID == "" {
		return ErrChannelIDRequired
	}
	if e.MessageID <= 0 {
		return ErrMessageIDRequired
	}
	if e.SeasonNumber <= 0 || e.EpisodeNumber <= 0 {
		return ErrInvalidNumbering
	}
	return nil
}

// BeforeCreate is a GORM hook that applies numbering defaults, validates the
// episode and generates its ULID.
func (e *Episode) BeforeCreate(tx *gorm.DB) error {
	if err := e.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if e.SeasonNumber == 0 {
		e.SeasonNumber = 1
	}
	if e.EpisodeNumber == 0 {
		e.EpisodeNumber = 1
	}
	return e.Validate()
}

// DeepLink returns the t.me link for the source message of the episode.
func (e *Episode) DeepLink() string {
	return MessageLink(e.ChannelID, e.MessageID)
}

// MessageLink builds a t.me link for a message in a channel. Public channels
// are addressed by username; private channels by their numeric id without
// the -100 peer prefix.
func MessageLink(channelID string, messageID int64) string {
	if name, ok := strings.CutPrefix(channelID, "@"); ok {
		return fmt.Sprintf("https://t.me/%s/%d", name, messageID)
	}
	id := strings.TrimPrefix(channelID, "-100")
	id = strings.TrimPrefix(id, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}

// ChannelStats summarizes what has been ingested from one channel.
type ChannelStats struct {
	ChannelID     string `json:"channel_id"`
	EpisodeCount  int64  `json:"episode_count"`
	LastMessageID int64  `json:"last_message_id"`
}

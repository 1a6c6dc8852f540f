package models

import (
	"strings"

	"gorm.io/gorm"
)

// ContentType distinguishes episodic series from movies split into parts.
type ContentType string

const (
	ContentTypeSeries ContentType = "series"
	ContentTypeMovie  ContentType = "movie"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == ContentTypeSeries || t == ContentTypeMovie
}

// ParseContentType parses a content type case-insensitively.
// The empty string parses to the empty type, which callers treat as "any".
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" || t.Valid() {
		return t, nil
	}
	return "", ErrInvalidContentType
}

// Series groups one or more episodes under a single name and content type.
// A series is unique per (normalized name, content type).
type Series struct {
	BaseModel

	// Name is the display name as first seen in a caption.
	Name string `gorm:"not null;size:512" json:"name"`

	// NormalizedName is the comparison key; it is never shown to users.
	NormalizedName string `gorm:"not null;size:512;uniqueIndex:idx_series_identity" json:"normalized_name"`

	// ContentType is either series or movie. Only the repair sweep changes it.
	ContentType ContentType `gorm:"not null;size:16;uniqueIndex:idx_series_identity;index" json:"content_type"`

	Episodes []Episode `gorm:"foreignKey:SeriesID;constraint:OnDelete:CASCADE" json:"episodes,omitempty"`
}

// TableName returns the table name for Series.
func (Series) TableName() string {
	return "series"
}

// Validate performs basic validation on the series.
func (s *Series) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrNameRequired
	}
	if s.NormalizedName == "" {
		return ErrNormalizedNameRequired
	}
	if !s.ContentType.Valid() {
		return ErrInvalidContentType
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the series and generates its ULID.
func (s *Series) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}

// SeriesSummary is a read-side projection of a series with episode statistics.
type SeriesSummary struct {
	Series
	EpisodeCount  int64 `json:"episode_count"`
	LastMessageID int64 `json:"last_message_id"`
}

// SeasonSummary is the number of episodes stored under one season or part.
type SeasonSummary struct {
	SeasonNumber int   `json:"season_number"`
	EpisodeCount int64 `json:"episode_count"`
}

// SeriesEpisodeCount pairs a series with how many episodes it owns.
type SeriesEpisodeCount struct {
	SeriesID     ULID
	Name         string
	EpisodeCount int64
}

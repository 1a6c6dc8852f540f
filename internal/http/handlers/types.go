// Package handlers provides the HTTP API handlers for reelarr.
package handlers

import (
	"time"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/service"
)

// PaginationMeta describes an offset page of series.
type PaginationMeta struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
}

// EpisodePaginationMeta describes a numbered page of episodes.
type EpisodePaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
}

// Series types

// SeriesResponse represents a series or movie in API responses.
type SeriesResponse struct {
	ID            models.ULID        `json:"id"`
	Name          string             `json:"name"`
	ContentType   models.ContentType `json:"content_type"`
	EpisodeCount  int64              `json:"episode_count,omitempty"`
	LastMessageID int64              `json:"last_message_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SeriesFromModel converts a model to a response.
func SeriesFromModel(s *models.Series) SeriesResponse {
	return SeriesResponse{
		ID:          s.ID,
		Name:        s.Name,
		ContentType: s.ContentType,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// SeriesFromSummary converts a summary projection to a response.
func SeriesFromSummary(s *models.SeriesSummary) SeriesResponse {
	resp := SeriesFromModel(&s.Series)
	resp.EpisodeCount = s.EpisodeCount
	resp.LastMessageID = s.LastMessageID
	return resp
}

// SeriesListResponse is the paginated response for series listings.
type SeriesListResponse struct {
	Pagination PaginationMeta   `json:"pagination"`
	Series     []SeriesResponse `json:"series"`
}

// Episode types

// EpisodeResponse represents an episode or movie part in API responses.
type EpisodeResponse struct {
	ID            models.ULID `json:"id"`
	SeriesID      models.ULID `json:"series_id"`
	SeasonNumber  int         `json:"season_number"`
	EpisodeNumber int         `json:"episode_number"`
	ChannelID     string      `json:"channel_id"`
	MessageID     int64       `json:"message_id"`
	DeepLink      string      `json:"deep_link"`
	CreatedAt     time.Time   `json:"created_at"`
}

// EpisodeFromModel converts a model to a response.
func EpisodeFromModel(e *models.Episode) EpisodeResponse {
	return EpisodeResponse{
		ID:            e.ID,
		SeriesID:      e.SeriesID,
		SeasonNumber:  e.SeasonNumber,
		EpisodeNumber: e.EpisodeNumber,
		ChannelID:     e.ChannelID,
		MessageID:     e.MessageID,
		DeepLink:      e.DeepLink(),
		CreatedAt:     e.CreatedAt,
	}
}

// EpisodeListResponse is the paginated response for episode listings.
type EpisodeListResponse struct {
	Pagination EpisodePaginationMeta `json:"pagination"`
	Episodes   []EpisodeResponse     `json:"episodes"`
}

// EpisodeLinkResponse locates an episode in its source channel.
type EpisodeLinkResponse struct {
	ID            models.ULID        `json:"id"`
	SeriesID      models.ULID        `json:"series_id"`
	SeriesName    string             `json:"series_name"`
	ContentType   models.ContentType `json:"content_type"`
	SeasonNumber  int                `json:"season_number"`
	EpisodeNumber int                `json:"episode_number"`
	ChannelID     string             `json:"channel_id"`
	MessageID     int64              `json:"message_id"`
	DeepLink      string             `json:"deep_link"`
}

// EpisodeLinkFromService converts a resolved link to a response.
func EpisodeLinkFromService(l *service.EpisodeLink) EpisodeLinkResponse {
	return EpisodeLinkResponse{
		ID:            l.EpisodeID,
		SeriesID:      l.SeriesID,
		SeriesName:    l.SeriesName,
		ContentType:   l.ContentType,
		SeasonNumber:  l.SeasonNumber,
		EpisodeNumber: l.EpisodeNumber,
		ChannelID:     l.ChannelID,
		MessageID:     l.MessageID,
		DeepLink:      l.DeepLink,
	}
}

// Stats types

// StatsResponse summarizes the catalog.
type StatsResponse struct {
	Series   int64                 `json:"series"`
	Movies   int64                 `json:"movies"`
	Episodes int64                 `json:"episodes"`
	Channels []models.ChannelStats `json:"channels"`
}

// Sync types

// PassStatsResponse reports the counters of a sync pass.
type PassStatsResponse struct {
	Fetched    int      `json:"fetched"`
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Skipped    int      `json:"skipped"`
	Deleted    int      `json:"deleted"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
}

// PassStatsFromIngestor converts pass counters to a response.
func PassStatsFromIngestor(s ingestor.IngestStats) PassStatsResponse {
	resp := PassStatsResponse{
		Fetched:    s.Fetched,
		Inserted:   s.Inserted,
		Duplicates: s.Duplicates,
		Skipped:    s.Skipped,
		Deleted:    s.Deleted,
		ErrorCount: s.ErrorCount,
	}
	for _, err := range s.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

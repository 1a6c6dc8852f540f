// Package repository defines data access interfaces for the reelarr catalog.
// All database access goes through these interfaces so services can be tested
// against an in-memory database and run unchanged on SQLite, PostgreSQL or MySQL.
package repository

import (
	"context"

	"github.com/jmylchreest/reelarr/internal/models"
)

// SeriesFilter narrows a series listing.
type SeriesFilter struct {
	// ContentType limits results to one type; empty means any.
	ContentType models.ContentType
	// Search matches display names by substring.
	Search string
	// SearchKey matches normalized names by substring.
	SearchKey string
	Offset    int
	Limit     int
}

// EpisodeFilter narrows an episode listing for one series.
type EpisodeFilter struct {
	// SeasonNumber limits results to one season or part; zero means all.
	SeasonNumber int
	Offset       int
	Limit        int
}

// SeriesRepository defines operations for series persistence.
type SeriesRepository interface {
	// Create inserts a series. If another writer created the same
	// (normalized name, type) first, series is filled with that row instead
	// and created is false.
	Create(ctx context.Context, series *models.Series) (created bool, err error)
	// GetByID retrieves a series by ID. Returns nil when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.Series, error)
	// GetByNormalizedName retrieves the series with the exact identity key.
	GetByNormalizedName(ctx context.Context, normalizedName string, contentType models.ContentType) (*models.Series, error)
	// FindByNameLike returns series of a type whose display or normalized name
	// contains the given fragments. Wildcards in the fragments are escaped.
	FindByNameLike(ctx context.Context, displayFragment, keyFragment string, contentType models.ContentType, limit int) ([]*models.Series, error)
	// List returns series with episode statistics, most recently updated first.
	List(ctx context.Context, filter SeriesFilter) ([]*models.SeriesSummary, int64, error)
	// Retype changes the content type of a series. When a series with the
	// target identity already exists the episodes are merged into it and the
	// source row is removed. Returns the ID of the surviving series.
	Retype(ctx context.Context, id models.ULID, contentType models.ContentType) (models.ULID, error)
	// DeleteOrphans removes every series that owns no episodes.
	DeleteOrphans(ctx context.Context) (int64, error)
	// FindMisclassifiedMovies returns movie-typed series with more than one episode.
	FindMisclassifiedMovies(ctx context.Context) ([]models.SeriesEpisodeCount, error)
	// CountEpisodesByNormalizedName counts episodes stored under a normalized
	// name across both content types.
	CountEpisodesByNormalizedName(ctx context.Context, normalizedName string) (int64, error)
	// Count returns the number of series of a type; empty type counts all.
	Count(ctx context.Context, contentType models.ContentType) (int64, error)
}

// EpisodeRepository defines operations for episode persistence.
type EpisodeRepository interface {
	// Insert stores an episode unless its (channel, message) is already known.
	// A conflict is reported as inserted=false with a nil error.
	Insert(ctx context.Context, episode *models.Episode) (inserted bool, err error)
	// DeleteByMessage removes the episode for a source message and, when its
	// series is left empty, the series as well.
	DeleteByMessage(ctx context.Context, channelID string, messageID int64) (DeleteResult, error)
	// GetByID retrieves an episode with its series. Returns nil when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.Episode, error)
	// GetByMessage retrieves the episode for a source message. Returns nil when absent.
	GetByMessage(ctx context.Context, channelID string, messageID int64) (*models.Episode, error)
	// ListBySeries returns episodes of a series ordered by season, then
	// episode number descending.
	ListBySeries(ctx context.Context, seriesID models.ULID, filter EpisodeFilter) ([]*models.Episode, int64, error)
	// Seasons returns the seasons or parts of a series with episode counts.
	Seasons(ctx context.Context, seriesID models.ULID) ([]models.SeasonSummary, error)
	// MessageIDs returns stored message IDs for a channel that are >= minID.
	MessageIDs(ctx context.Context, channelID string, minID, maxID int64) ([]int64, error)
	// MaxMessageID returns the highest stored message ID for a channel, or 0.
	MaxMessageID(ctx context.Context, channelID string) (int64, error)
	// Exists reports whether a source message has been ingested.
	Exists(ctx context.Context, channelID string, messageID int64) (bool, error)
	// ChannelStats returns per-channel ingestion statistics.
	ChannelStats(ctx context.Context) ([]models.ChannelStats, error)
	// Count returns the total number of episodes.
	Count(ctx context.Context) (int64, error)
}

// DeleteResult reports what a message deletion removed.
type DeleteResult struct {
	EpisodeDeleted bool
	SeriesDeleted  bool
	SeriesID       models.ULID
}

// ChannelContextRepository persists the per-channel announced series name.
type ChannelContextRepository interface {
	// Get returns the context for a channel. Returns nil when absent.
	Get(ctx context.Context, channelID string) (*models.ChannelContext, error)
	// Upsert stores the announced series name for a channel.
	Upsert(ctx context.Context, channelID, seriesName string) error
	// List returns all stored channel contexts.
	List(ctx context.Context) ([]*models.ChannelContext, error)
	// Delete removes the context for a channel.
	Delete(ctx context.Context, channelID string) error
}

// Catalog groups the catalog repositories so they can share a transaction.
type Catalog interface {
	Series() SeriesRepository
	Episodes() EpisodeRepository
	Contexts() ChannelContextRepository
	// Transaction runs fn with repositories bound to a single transaction.
	// Returning an error from fn rolls the transaction back.
	Transaction(ctx context.Context, fn func(tx Catalog) error) error
	// Reset removes all catalog rows.
	Reset(ctx context.Context) error
}

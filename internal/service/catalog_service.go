package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/repository"
	"github.com/jmylchreest/reelarr/internal/textnorm"
)

// Listing limits.
const (
	EpisodePageSize        = 50
	MaxEpisodePage         = 100000
	DefaultSeriesListLimit = 50
	MaxSeriesListLimit     = 500
)

// SeriesQuery narrows a series listing.
type SeriesQuery struct {
	Type   models.ContentType
	Search string
	Offset int
	Limit  int
}

// SeriesPage is one page of a series listing.
type SeriesPage struct {
	Items  []*models.SeriesSummary
	Total  int64
	Offset int
	Limit  int
}

// EpisodePage is one page of a series' episodes.
type EpisodePage struct {
	Items    []*models.Episode
	Total    int64
	Page     int
	PageSize int
}

// EpisodeLink locates the source message of an episode.
type EpisodeLink struct {
	EpisodeID     models.ULID
	SeriesID      models.ULID
	SeriesName    string
	ContentType   models.ContentType
	SeasonNumber  int
	EpisodeNumber int
	ChannelID     string
	MessageID     int64
	DeepLink      string
}

// CatalogStats summarizes the catalog.
type CatalogStats struct {
	Series   int64
	Movies   int64
	Episodes int64
	Channels []models.ChannelStats
}

// CatalogService provides the read side of the catalog and direct episode
// writes.
type CatalogService struct {
	catalog repository.Catalog
	logger  *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(catalog repository.Catalog) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *CatalogService) WithLogger(logger *slog.Logger) *CatalogService {
	s.logger = logger
	return s
}

// ListSeries returns series with episode counts, most recently posted first.
// Search matches the display name or, after normalization, the identity key,
// so spelling variants of Arabic names are found.
func (s *CatalogService) ListSeries(ctx context.Context, q SeriesQuery) (*SeriesPage, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, models.ErrInvalidContentType
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultSeriesListLimit
	case limit > MaxSeriesListLimit:
		limit = MaxSeriesListLimit
	}
	offset := max(q.Offset, 0)

	filter := repository.SeriesFilter{
		ContentType: q.Type,
		Offset:      offset,
		Limit:       limit,
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		filter.Search = search
		filter.SearchKey = textnorm.NormalizeSeriesName(search)
	}

	items, total, err := s.catalog.Series().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing series: %w", err)
	}
	return &SeriesPage{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// GetSeries returns a series by ID.
func (s *CatalogService) GetSeries(ctx context.Context, id models.ULID) (*models.Series, error) {
	series, err := s.catalog.Series().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting series: %w", err)
	}
	if series == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, id)
	}
	return series, nil
}

// ListSeasons returns the seasons, or parts for movies, of a series.
func (s *CatalogService) ListSeasons(ctx context.Context, id models.ULID) ([]models.SeasonSummary, error) {
	if _, err := s.GetSeries(ctx, id); err != nil {
		return nil, err
	}
	seasons, err := s.catalog.Episodes().Seasons(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing seasons: %w", err)
	}
	return seasons, nil
}

// ListEpisodes returns one page of episodes of a series, highest episode
// number first. season zero lists every season; page is 1-based and clamped
// to [1, MaxEpisodePage].
func (s *CatalogService) ListEpisodes(ctx context.Context, id models.ULID, season, page int) (*EpisodePage, error) {
	if _, err := s.GetSeries(ctx, id); err != nil {
		return nil, err
	}
	page = min(max(page, 1), MaxEpisodePage)

	items, total, err := s.catalog.Episodes().ListBySeries(ctx, id, repository.EpisodeFilter{
		SeasonNumber: max(season, 0),
		Offset:       (page - 1) * EpisodePageSize,
		Limit:        EpisodePageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	return &EpisodePage{Items: items, Total: total, Page: page, PageSize: EpisodePageSize}, nil
}

// ResolveEpisode returns where the source message of an episode lives.
func (s *CatalogService) ResolveEpisode(ctx context.Context, id models.ULID) (*EpisodeLink, error) {
	ep, err := s.catalog.Episodes().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting episode: %w", err)
	}
	if ep == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEpisodeNotFound, id)
	}

	link := &EpisodeLink{
		EpisodeID:     ep.ID,
		SeriesID:      ep.SeriesID,
		SeasonNumber:  ep.SeasonNumber,
		EpisodeNumber: ep.EpisodeNumber,
		ChannelID:     ep.ChannelID,
		MessageID:     ep.MessageID,
		DeepLink:      ep.DeepLink(),
	}
	if ep.Series != nil {
		link.SeriesName = ep.Series.Name
		link.ContentType = ep.Series.ContentType
	}
	return link, nil
}

// Stats returns catalog totals and per-channel counts.
func (s *CatalogService) Stats(ctx context.Context) (*CatalogStats, error) {
	var stats CatalogStats
	var err error

	if stats.Series, err = s.catalog.Series().Count(ctx, models.ContentTypeSeries); err != nil {
		return nil, fmt.Errorf("counting series: %w", err)
	}
	if stats.Movies, err = s.catalog.Series().Count(ctx, models.ContentTypeMovie); err != nil {
		return nil, fmt.Errorf("counting movies: %w", err)
	}
	if stats.Episodes, err = s.catalog.Episodes().Count(ctx); err != nil {
		return nil, fmt.Errorf("counting episodes: %w", err)
	}
	if stats.Channels, err = s.catalog.Episodes().ChannelStats(ctx); err != nil {
		return nil, fmt.Errorf("getting channel stats: %w", err)
	}
	return &stats, nil
}

// UpsertEpisode stores an episode of an existing series. A message already in
// the catalog is reported as inserted=false, not as an error.
func (s *CatalogService) UpsertEpisode(ctx context.Context, seriesID models.ULID, season, episode int, channelID string, messageID int64) (bool, error) {
	inserted, err := s.catalog.Episodes().Insert(ctx, &models.Episode{
		SeriesID:      seriesID,
		SeasonNumber:  season,
		EpisodeNumber: episode,
		ChannelID:     channelID,
		MessageID:     messageID,
	})
	if err != nil {
		return false, fmt.Errorf("upserting episode: %w", err)
	}
	if !inserted {
		s.logger.DebugContext(ctx, "episode already known",
			slog.String("channel_id", channelID),
			slog.Int64("message_id", messageID),
		)
	}
	return inserted, nil
}

// DeleteEpisode removes the episode of a source message, and its series when
// that leaves the series empty.
func (s *CatalogService) DeleteEpisode(ctx context.Context, channelID string, messageID int64) (repository.DeleteResult, error) {
	res, err := s.catalog.Episodes().DeleteByMessage(ctx, channelID, messageID)
	if err != nil {
		return res, fmt.Errorf("deleting episode: %w", err)
	}
	return res, nil
}

// Reset removes every catalog row.
func (s *CatalogService) Reset(ctx context.Context) error {
	if err := s.catalog.Reset(ctx); err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "catalog reset")
	return nil
}

package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/observability"
	"github.com/jmylchreest/reelarr/internal/service"
)

// CatalogHandler serves the read side of the catalog.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Register registers the catalog routes with the API.
func (h *CatalogHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSeries",
		Method:      "GET",
		Path:        "/api/v1/series",
		Summary:     "List series",
		Description: "Returns series and movies, most recently posted first",
		Tags:        []string{"Catalog"},
	}, h.ListSeries)

	huma.Register(api, huma.Operation{
		OperationID: "getSeries",
		Method:      "GET",
		Path:        "/api/v1/series/{id}",
		Summary:     "Get series",
		Description: "Returns a series or movie by ID",
		Tags:        []string{"Catalog"},
	}, h.GetSeries)

	huma.Register(api, huma.Operation{
		OperationID: "listSeasons",
		Method:      "GET",
		Path:        "/api/v1/series/{id}/seasons",
		Summary:     "List seasons",
		Description: "Returns the seasons of a series, or the parts of a movie, with episode counts",
		Tags:        []string{"Catalog"},
	}, h.ListSeasons)

	huma.Register(api, huma.Operation{
		OperationID: "listEpisodes",
		Method:      "GET",
		Path:        "/api/v1/series/{id}/episodes",
		Summary:     "List episodes",
		Description: "Returns a page of episodes, highest episode number first",
		Tags:        []string{"Catalog"},
	}, h.ListEpisodes)

	huma.Register(api, huma.Operation{
		OperationID: "getEpisode",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}",
		Summary:     "Get episode",
		Description: "Returns an episode with the link to its source message",
		Tags:        []string{"Catalog"},
	}, h.GetEpisode)

	huma.Register(api, huma.Operation{
		OperationID: "getStats",
		Method:      "GET",
		Path:        "/api/v1/stats",
		Summary:     "Catalog statistics",
		Description: "Returns series, movie and episode totals with per-channel counts",
		Tags:        []string{"Catalog"},
	}, h.GetStats)
}

// catalogError maps service errors to API errors.
// Unexpected failures are logged with the request logger.
func catalogError(ctx context.Context, msg string, err error) error {
	switch {
	case errors.Is(err, models.ErrSeriesNotFound), errors.Is(err, models.ErrEpisodeNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, models.ErrInvalidContentType):
		return huma.Error400BadRequest(err.Error())
	}
	observability.WithError(observability.LoggerFromContext(ctx), err).ErrorContext(ctx, msg)
	return huma.Error500InternalServerError(msg, err)
}

func parseID(id string) (models.ULID, error) {
	parsed, err := models.ParseULID(id)
	if err != nil {
		return parsed, huma.Error400BadRequest("invalid ID format", err)
	}
	return parsed, nil
}

// ListSeriesInput is the input for listing series.
type ListSeriesInput struct {
	Type   string `query:"type" doc:"Content type filter (series or movie)"`
	Search string `query:"search" doc:"Substring of the name; Arabic spelling variants match"`
	Offset int    `query:"offset" minimum:"0" doc:"Number of series to skip"`
	Limit  int    `query:"limit" minimum:"0" doc:"Page size (default 50, capped at 500)"`
}

// ListSeriesOutput is the output for listing series.
type ListSeriesOutput struct {
	Body SeriesListResponse
}

// ListSeries returns a page of series.
func (h *CatalogHandler) ListSeries(ctx context.Context, input *ListSeriesInput) (*ListSeriesOutput, error) {
	contentType, err := models.ParseContentType(input.Type)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid type, expected series or movie", err)
	}

	page, err := h.catalog.ListSeries(ctx, service.SeriesQuery{
		Type:   contentType,
		Search: input.Search,
		Offset: input.Offset,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, catalogError(ctx, "failed to list series", err)
	}

	resp := &ListSeriesOutput{}
	resp.Body.Pagination = PaginationMeta{Offset: page.Offset, Limit: page.Limit, Total: page.Total}
	resp.Body.Series = make([]SeriesResponse, 0, len(page.Items))
	for _, s := range page.Items {
		resp.Body.Series = append(resp.Body.Series, SeriesFromSummary(s))
	}
	return resp, nil
}

// GetSeriesInput is the input for getting a series.
type GetSeriesInput struct {
	ID string `path:"id" doc:"Series ID (ULID)"`
}

// GetSeriesOutput is the output for getting a series.
type GetSeriesOutput struct {
	Body SeriesResponse
}

// GetSeries returns a series by ID.
func (h *CatalogHandler) GetSeries(ctx context.Context, input *GetSeriesInput) (*GetSeriesOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	series, err := h.catalog.GetSeries(ctx, id)
	if err != nil {
		return nil, catalogError(ctx, "failed to get series", err)
	}
	return &GetSeriesOutput{Body: SeriesFromModel(series)}, nil
}

// ListSeasonsOutput is the output for listing seasons.
type ListSeasonsOutput struct {
	Body struct {
		Seasons []models.SeasonSummary `json:"seasons"`
	}
}

// ListSeasons returns the seasons of a series.
func (h *CatalogHandler) ListSeasons(ctx context.Context, input *GetSeriesInput) (*ListSeasonsOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	seasons, err := h.catalog.ListSeasons(ctx, id)
	if err != nil {
		return nil, catalogError(ctx, "failed to list seasons", err)
	}

	resp := &ListSeasonsOutput{}
	resp.Body.Seasons = seasons
	if resp.Body.Seasons == nil {
		resp.Body.Seasons = []models.SeasonSummary{}
	}
	return resp, nil
}

// ListEpisodesInput is the input for listing episodes.
type ListEpisodesInput struct {
	ID     string `path:"id" doc:"Series ID (ULID)"`
	Season int    `query:"season" minimum:"0" doc:"Season or part number; 0 lists all"`
	Page   int    `query:"page" minimum:"0" maximum:"100000" doc:"Page number (1-based)"`
}

// ListEpisodesOutput is the output for listing episodes.
type ListEpisodesOutput struct {
	Body EpisodeListResponse
}

// ListEpisodes returns a page of episodes of a series.
func (h *CatalogHandler) ListEpisodes(ctx context.Context, input *ListEpisodesInput) (*ListEpisodesOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	page, err := h.catalog.ListEpisodes(ctx, id, input.Season, input.Page)
	if err != nil {
		return nil, catalogError(ctx, "failed to list episodes", err)
	}

	totalPages := (page.Total + int64(page.PageSize) - 1) / int64(page.PageSize)
	resp := &ListEpisodesOutput{}
	resp.Body.Pagination = EpisodePaginationMeta{
		CurrentPage: page.Page,
		PageSize:    page.PageSize,
		TotalItems:  page.Total,
		TotalPages:  totalPages,
	}
	resp.Body.Episodes = make([]EpisodeResponse, 0, len(page.Items))
	for _, ep := range page.Items {
		resp.Body.Episodes = append(resp.Body.Episodes, EpisodeFromModel(ep))
	}
	return resp, nil
}

// GetEpisodeInput is the input for getting an episode.
type GetEpisodeInput struct {
	ID string `path:"id" doc:"Episode ID (ULID)"`
}

// GetEpisodeOutput is the output for getting an episode.
type GetEpisodeOutput struct {
	Body EpisodeLinkResponse
}

// GetEpisode resolves an episode to its source message.
func (h *CatalogHandler) GetEpisode(ctx context.Context, input *GetEpisodeInput) (*GetEpisodeOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	link, err := h.catalog.ResolveEpisode(ctx, id)
	if err != nil {
		return nil, catalogError(ctx, "failed to get episode", err)
	}
	return &GetEpisodeOutput{Body: EpisodeLinkFromService(link)}, nil
}

// GetStatsInput is the input for catalog statistics.
type GetStatsInput struct{}

// GetStatsOutput is the output for catalog statistics.
type GetStatsOutput struct {
	Body StatsResponse
}

// GetStats returns catalog statistics.
func (h *CatalogHandler) GetStats(ctx context.Context, _ *GetStatsInput) (*GetStatsOutput, error) {
	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		return nil, catalogError(ctx, "failed to get stats", err)
	}
	channels := stats.Channels
	if channels == nil {
		channels = []models.ChannelStats{}
	}
	return &GetStatsOutput{Body: StatsResponse{
		Series:   stats.Series,
		Movies:   stats.Movies,
		Episodes: stats.Episodes,
		Channels: channels,
	}}, nil
}

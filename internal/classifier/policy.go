package classifier

import (
	"fmt"

	"github.com/jmylchreest/reelarr/internal/models"
)

// Default episode-count thresholds.
const (
	DefaultMovieMaxEpisodes  = 3
	DefaultSeriesMinEpisodes = 5
)

// TypePolicy decides the content type of a candidate without type markers
// from how many episodes are already stored under its normalized name.
// Counts between the two thresholds resolve to series. The thresholds are a
// tunable heuristic.
type TypePolicy struct {
	Enabled           bool
	MovieMaxEpisodes  int
	SeriesMinEpisodes int
}

// DefaultTypePolicy returns the policy with the default thresholds.
func DefaultTypePolicy() TypePolicy {
	return TypePolicy{
		Enabled:           true,
		MovieMaxEpisodes:  DefaultMovieMaxEpisodes,
		SeriesMinEpisodes: DefaultSeriesMinEpisodes,
	}
}

// Validate checks the thresholds are usable.
func (p TypePolicy) Validate() error {
	if p.MovieMaxEpisodes < 0 {
		return fmt.Errorf("movie_max_episodes must be non-negative, got %d", p.MovieMaxEpisodes)
	}
	if p.SeriesMinEpisodes <= p.MovieMaxEpisodes {
		return fmt.Errorf("series_min_episodes (%d) must be greater than movie_max_episodes (%d)",
			p.SeriesMinEpisodes, p.MovieMaxEpisodes)
	}
	return nil
}

// Refine returns the content type for a candidate given the number of
// episodes already stored under its name. Candidates with type evidence are
// returned unchanged.
func (p TypePolicy) Refine(c Candidate, existing int64) models.ContentType {
	if !p.Enabled || c.Evidence {
		return c.Type
	}
	switch {
	case existing >= int64(p.SeriesMinEpisodes):
		return models.ContentTypeSeries
	case existing <= int64(p.MovieMaxEpisodes):
		return models.ContentTypeMovie
	default:
		return models.ContentTypeSeries
	}
}

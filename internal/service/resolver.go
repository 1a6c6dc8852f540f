package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/repository"
	"github.com/jmylchreest/reelarr/internal/textnorm"
)

const (
	// partialMatchWords is how many leading significant words form the
	// partial-match fragment.
	partialMatchWords = 3

	// minPartialMatchWords is the fewest significant words a name needs
	// before partial matching is attempted.
	minPartialMatchWords = 2

	partialMatchLimit = 20
)

// Resolver maps a classified name and type onto a catalog series, creating
// one when no existing series matches.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver() *Resolver {
	return &Resolver{logger: slog.Default()}
}

// WithLogger sets the logger for the resolver.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = logger
	return r
}

// Resolve returns the series for name and contentType. It tries, in order,
// the exact identity key, a partial match on the leading significant words
// ranked by fuzzy distance, and finally creates a new series. created is
// true only when this call inserted the row.
func (r *Resolver) Resolve(ctx context.Context, repo repository.SeriesRepository, name string, contentType models.ContentType) (*models.Series, bool, error) {
	display := textnorm.CollapseSpace(name)
	key := SeriesKey(display)
	if key == "" {
		return nil, false, models.ErrNameRequired
	}

	series, err := repo.GetByNormalizedName(ctx, key, contentType)
	if err != nil {
		return nil, false, fmt.Errorf("resolving %q: %w", display, err)
	}
	if series != nil {
		return series, false, nil
	}

	series, err = r.partialMatch(ctx, repo, display, key, contentType)
	if err != nil {
		return nil, false, fmt.Errorf("resolving %q: %w", display, err)
	}
	if series != nil {
		r.logger.DebugContext(ctx, "series resolved by partial match",
			slog.String("name", display),
			slog.String("series_id", series.ID.String()),
			slog.String("series_name", series.Name),
		)
		return series, false, nil
	}

	series = &models.Series{
		Name:           display,
		NormalizedName: key,
		ContentType:    contentType,
	}
	created, err := repo.Create(ctx, series)
	if err != nil {
		return nil, false, fmt.Errorf("resolving %q: %w", display, err)
	}
	if created {
		r.logger.DebugContext(ctx, "series created",
			slog.String("series_id", series.ID.String()),
			slog.String("name", series.Name),
			slog.String("content_type", string(contentType)),
		)
	}
	return series, created, nil
}

func (r *Resolver) partialMatch(ctx context.Context, repo repository.SeriesRepository, display, key string, contentType models.ContentType) (*models.Series, error) {
	words := significantWords(display, partialMatchWords)
	if len(words) < minPartialMatchWords {
		return nil, nil
	}
	fragment := strings.Join(words, " ")

	candidates, err := repo.FindByNameLike(ctx, fragment, SeriesKey(fragment), contentType, partialMatchLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return closest(key, candidates), nil
}

// closest picks the candidate whose key is nearest to key. Candidates whose
// key contains key as a fuzzy subsequence win over the rest.
func closest(key string, candidates []*models.Series) *models.Series {
	targets := make([]string, len(candidates))
	for i, c := range candidates {
		targets[i] = c.NormalizedName
	}

	ranks := fuzzy.RankFindNormalizedFold(key, targets)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		return candidates[ranks[0].OriginalIndex]
	}

	best, bestDist := 0, -1
	for i, t := range targets {
		d := fuzzy.LevenshteinDistance(key, t)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return candidates[best]
}

// significantWords returns up to n leading words of name that carry the
// title: at least two runes, not a number and not a type, numbering or
// noise word.
func significantWords(name string, n int) []string {
	var words []string
	for _, field := range strings.Fields(textnorm.CleanDisplayName(name)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		switch {
		case utf8.RuneCountInString(word) < 2,
			textnorm.HasDigits(word),
			textnorm.IsTypeWord(word),
			textnorm.IsTrailingWord(word),
			textnorm.IsNoiseWord(word):
			continue
		}
		words = append(words, word)
		if len(words) == n {
			break
		}
	}
	return words
}

// SeriesKey returns the identity key for a display name. Names that reduce
// to nothing under NormalizeSeriesName, such as bare numbers, fall back to
// their folded, space-collapsed lowercase form.
func SeriesKey(name string) string {
	if key := textnorm.NormalizeSeriesName(name); key != "" {
		return key
	}
	return strings.ToLower(textnorm.CollapseSpace(textnorm.FoldDigits(name)))
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/reelarr/internal/models"
)

// likeEscape is the escape character for LIKE patterns. Backslash is avoided
// because MySQL treats it specially inside string literals.
const likeEscape = "!"

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern matching s anywhere, with wildcards in s escaped.
func containsPattern(s string) string {
	return "%" + likeReplacer.Replace(s) + "%"
}

// seriesRepo implements SeriesRepository using GORM.
type seriesRepo struct {
	db *gorm.DB
}

// NewSeriesRepository creates a new SeriesRepository.
func NewSeriesRepository(db *gorm.DB) *seriesRepo {
	return &seriesRepo{db: db}
}

// Create inserts a series or loads the row that already holds its identity.
func (r *seriesRepo) Create(ctx context.Context, series *models.Series) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "normalized_name"}, {Name: "content_type"}},
			DoNothing: true,
		}).
		Create(series)
	if res.Error != nil {
		return false, fmt.Errorf("creating series: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	existing, err := r.GetByNormalizedName(ctx, series.NormalizedName, series.ContentType)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("creating series %q: conflicting row vanished", series.NormalizedName)
	}
	*series = *existing
	return false, nil
}

// GetByID retrieves a series by ID.
func (r *seriesRepo) GetByID(ctx context.Context, id models.ULID) (*models.Series, error) {
	var series models.Series
	res := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&series)
	if res.Error != nil {
		return nil, fmt.Errorf("getting series by ID: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &series, nil
}

// GetByNormalizedName retrieves a series by its identity key.
func (r *seriesRepo) GetByNormalizedName(ctx context.Context, normalizedName string, contentType models.ContentType) (*models.Series, error) {
	var series models.Series
	res := r.db.WithContext(ctx).
		Where("normalized_name = ? AND content_type = ?", normalizedName, contentType).
		Limit(1).
		Find(&series)
	if res.Error != nil {
		return nil, fmt.Errorf("getting series by normalized name: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &series, nil
}

// FindByNameLike returns partial-name candidates of the given type, oldest first.
func (r *seriesRepo) FindByNameLike(ctx context.Context, displayFragment, keyFragment string, contentType models.ContentType, limit int) ([]*models.Series, error) {
	if displayFragment == "" && keyFragment == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	q := r.db.WithContext(ctx).Where("content_type = ?", contentType)
	switch {
	case displayFragment != "" && keyFragment != "":
		q = q.Where(
			"(name LIKE ? ESCAPE '"+likeEscape+"' OR normalized_name LIKE ? ESCAPE '"+likeEscape+"')",
			containsPattern(displayFragment), containsPattern(keyFragment),
		)
	case displayFragment != "":
		q = q.Where("name LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(displayFragment))
	default:
		q = q.Where("normalized_name LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(keyFragment))
	}

	var series []*models.Series
	if err := q.Order("created_at ASC").Limit(limit).Find(&series).Error; err != nil {
		return nil, fmt.Errorf("finding series by name: %w", err)
	}
	return series, nil
}

func applySeriesFilter(q *gorm.DB, filter SeriesFilter) *gorm.DB {
	if filter.ContentType != "" {
		q = q.Where("series.content_type = ?", filter.ContentType)
	}
	switch {
	case filter.Search != "" && filter.SearchKey != "":
		q = q.Where(
			"(series.name LIKE ? ESCAPE '"+likeEscape+"' OR series.normalized_name LIKE ? ESCAPE '"+likeEscape+"')",
			containsPattern(filter.Search), containsPattern(filter.SearchKey),
		)
	case filter.Search != "":
		q = q.Where("series.name LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(filter.Search))
	case filter.SearchKey != "":
		q = q.Where("series.normalized_name LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(filter.SearchKey))
	}
	return q
}

// List returns series with episode statistics, most recently posted first.
func (r *seriesRepo) List(ctx context.Context, filter SeriesFilter) ([]*models.SeriesSummary, int64, error) {
	var total int64
	if err := applySeriesFilter(r.db.WithContext(ctx).Model(&models.Series{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting series: %w", err)
	}

	q := applySeriesFilter(r.db.WithContext(ctx).Table("series"), filter).
		Select("series.*, COUNT(episodes.id) AS episode_count, COALESCE(MAX(episodes.message_id), 0) AS last_message_id").
		Joins("LEFT JOIN episodes ON episodes.series_id = series.id").
		Group("series.id").
		Order("last_message_id DESC, series.name ASC").
		Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var summaries []*models.SeriesSummary
	if err := q.Scan(&summaries).Error; err != nil {
		return nil, 0, fmt.Errorf("listing series: %w", err)
	}
	return summaries, total, nil
}

// Retype changes the content type of a series, merging into an existing
// series with the target identity when there is one.
func (r *seriesRepo) Retype(ctx context.Context, id models.ULID, contentType models.ContentType) (models.ULID, error) {
	if !contentType.Valid() {
		return models.ULID{}, models.ErrInvalidContentType
	}

	var survivor models.ULID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var series models.Series
		res := tx.Where("id = ?", id).Limit(1).Find(&series)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("series %s not found", id)
		}
		if series.ContentType == contentType {
			survivor = series.ID
			return nil
		}

		var target models.Series
		res = tx.Where("normalized_name = ? AND content_type = ?", series.NormalizedName, contentType).
			Limit(1).
			Find(&target)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			survivor = series.ID
			return tx.Model(&models.Series{}).
				Where("id = ?", series.ID).
				Update("content_type", contentType).Error
		}

		survivor = target.ID
		if err := tx.Model(&models.Episode{}).
			Where("series_id = ?", series.ID).
			Update("series_id", target.ID).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", series.ID).Delete(&models.Series{}).Error
	})
	if err != nil {
		return models.ULID{}, fmt.Errorf("retyping series: %w", err)
	}
	return survivor, nil
}

// DeleteOrphans removes every series without episodes.
func (r *seriesRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM episodes WHERE episodes.series_id = series.id)").
		Delete(&models.Series{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting orphan series: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindMisclassifiedMovies returns movie series holding more than one episode.
func (r *seriesRepo) FindMisclassifiedMovies(ctx context.Context) ([]models.SeriesEpisodeCount, error) {
	var out []models.SeriesEpisodeCount
	err := r.db.WithContext(ctx).
		Table("series").
		Select("series.id AS series_id, series.name AS name, COUNT(episodes.id) AS episode_count").
		Joins("JOIN episodes ON episodes.series_id = series.id").
		Where("series.content_type = ?", models.ContentTypeMovie).
		Group("series.id, series.name").
		Having("COUNT(episodes.id) > 1").
		Order("series.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("finding misclassified movies: %w", err)
	}
	return out, nil
}

// CountEpisodesByNormalizedName counts episodes under a normalized name.
func (r *seriesRepo) CountEpisodesByNormalizedName(ctx context.Context, normalizedName string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Joins("JOIN series ON series.id = episodes.series_id").
		Where("series.normalized_name = ?", normalizedName).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting episodes by normalized name: %w", err)
	}
	return count, nil
}

// Count returns the number of series, optionally of one type.
func (r *seriesRepo) Count(ctx context.Context, contentType models.ContentType) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Series{})
	if contentType != "" {
		q = q.Where("content_type = ?", contentType)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting series: %w", err)
	}
	return count, nil
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/reelarr/internal/models"
)

// episodeRepo implements EpisodeRepository using GORM.
type episodeRepo struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *gorm.DB) *episodeRepo {
	return &episodeRepo{db: db}
}

// Insert stores an episode, treating a (channel, message) conflict as already present.
func (r *episodeRepo) Insert(ctx context.Context, episode *models.Episode) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(episode)
	if res.Error != nil {
		return false, fmt.Errorf("inserting episode: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteByMessage deletes the episode for a message and its series when empty.
func (r *episodeRepo) DeleteByMessage(ctx context.Context, channelID string, messageID int64) (DeleteResult, error) {
	var result DeleteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var episode models.Episode
		res := tx.Where("channel_id = ? AND message_id = ?", channelID, messageID).Limit(1).Find(&episode)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Where("id = ?", episode.ID).Delete(&models.Episode{}).Error; err != nil {
			return err
		}
		result.EpisodeDeleted = true
		result.SeriesID = episode.SeriesID

		var remaining int64
		if err := tx.Model(&models.Episode{}).Where("series_id = ?", episode.SeriesID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		if err := tx.Where("id = ?", episode.SeriesID).Delete(&models.Series{}).Error; err != nil {
			return err
		}
		result.SeriesDeleted = true
		return nil
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("deleting episode for message %s/%d: %w", channelID, messageID, err)
	}
	return result, nil
}

// GetByID retrieves an episode with its series preloaded.
func (r *episodeRepo) GetByID(ctx context.Context, id models.ULID) (*models.Episode, error) {
	var episode models.Episode
	res := r.db.WithContext(ctx).Preload("Series").Where("id = ?", id).Limit(1).Find(&episode)
	if res.Error != nil {
		return nil, fmt.Errorf("getting episode by ID: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &episode, nil
}

// GetByMessage retrieves the episode ingested from a source message.
func (r *episodeRepo) GetByMessage(ctx context.Context, channelID string, messageID int64) (*models.Episode, error) {
	var episode models.Episode
	res := r.db.WithContext(ctx).
		Where("channel_id = ? AND message_id = ?", channelID, messageID).
		Limit(1).
		Find(&episode)
	if res.Error != nil {
		return nil, fmt.Errorf("getting episode by message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &episode, nil
}

// ListBySeries returns a page of episodes of a series.
func (r *episodeRepo) ListBySeries(ctx context.Context, seriesID models.ULID, filter EpisodeFilter) ([]*models.Episode, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Episode{}).Where("series_id = ?", seriesID)
		if filter.SeasonNumber > 0 {
			q = q.Where("season_number = ?", filter.SeasonNumber)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting episodes: %w", err)
	}

	q := base().
		Order("season_number ASC").
		Order("episode_number DESC").
		Order("message_id DESC").
		Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var episodes []*models.Episode
	if err := q.Find(&episodes).Error; err != nil {
		return nil, 0, fmt.Errorf("listing episodes: %w", err)
	}
	return episodes, total, nil
}

// Seasons returns episode counts grouped by season or part.
func (r *episodeRepo) Seasons(ctx context.Context, seriesID models.ULID) ([]models.SeasonSummary, error) {
	var seasons []models.SeasonSummary
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Select("season_number, COUNT(*) AS episode_count").
		Where("series_id = ?", seriesID).
		Group("season_number").
		Order("season_number ASC").
		Scan(&seasons).Error
	if err != nil {
		return nil, fmt.Errorf("listing seasons: %w", err)
	}
	return seasons, nil
}

// MessageIDs returns stored message IDs for a channel within [minID, maxID],
// ascending.
func (r *episodeRepo) MessageIDs(ctx context.Context, channelID string, minID, maxID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Where("channel_id = ? AND message_id BETWEEN ? AND ?", channelID, minID, maxID).
		Order("message_id ASC").
		Pluck("message_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing message IDs: %w", err)
	}
	return ids, nil
}

// MaxMessageID returns the newest stored message ID for a channel.
func (r *episodeRepo) MaxMessageID(ctx context.Context, channelID string) (int64, error) {
	var maxID int64
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Select("COALESCE(MAX(message_id), 0)").
		Where("channel_id = ?", channelID).
		Scan(&maxID).Error
	if err != nil {
		return 0, fmt.Errorf("getting max message ID: %w", err)
	}
	return maxID, nil
}

// Exists reports whether a message has already been ingested.
func (r *episodeRepo) Exists(ctx context.Context, channelID string, messageID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Where("channel_id = ? AND message_id = ?", channelID, messageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking episode existence: %w", err)
	}
	return count > 0, nil
}

// ChannelStats returns per-channel episode counts and newest message IDs.
func (r *episodeRepo) ChannelStats(ctx context.Context) ([]models.ChannelStats, error) {
	var stats []models.ChannelStats
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Select("channel_id, COUNT(*) AS episode_count, MAX(message_id) AS last_message_id").
		Group("channel_id").
		Order("channel_id ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("getting channel stats: %w", err)
	}
	return stats, nil
}

// Count returns the total number of episodes.
func (r *episodeRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Episode{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting episodes: %w", err)
	}
	return count, nil
}

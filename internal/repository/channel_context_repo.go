package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/reelarr/internal/models"
)

// channelContextRepo implements ChannelContextRepository using GORM.
type channelContextRepo struct {
	db *gorm.DB
}

// NewChannelContextRepository creates a new ChannelContextRepository.
func NewChannelContextRepository(db *gorm.DB) *channelContextRepo {
	return &channelContextRepo{db: db}
}

// Get returns the stored context for a channel.
func (r *channelContextRepo) Get(ctx context.Context, channelID string) (*models.ChannelContext, error) {
	var cc models.ChannelContext
	res := r.db.WithContext(ctx).Where("channel_id = ?", channelID).Limit(1).Find(&cc)
	if res.Error != nil {
		return nil, fmt.Errorf("getting channel context: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &cc, nil
}

// Upsert replaces the announced series name for a channel.
func (r *channelContextRepo) Upsert(ctx context.Context, channelID, seriesName string) error {
	cc := &models.ChannelContext{
		ChannelID:  channelID,
		SeriesName: seriesName,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := cc.Validate(); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"series_name", "updated_at"}),
		}).
		Create(cc).Error
	if err != nil {
		return fmt.Errorf("upserting channel context: %w", err)
	}
	return nil
}

// List returns all stored channel contexts.
func (r *channelContextRepo) List(ctx context.Context) ([]*models.ChannelContext, error) {
	var out []*models.ChannelContext
	if err := r.db.WithContext(ctx).Order("channel_id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing channel contexts: %w", err)
	}
	return out, nil
}

// Delete removes the stored context for a channel.
func (r *channelContextRepo) Delete(ctx context.Context, channelID string) error {
	if err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&models.ChannelContext{}).Error; err != nil {
		return fmt.Errorf("deleting channel context: %w", err)
	}
	return nil
}

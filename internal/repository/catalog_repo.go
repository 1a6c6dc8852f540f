package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jmylchreest/reelarr/internal/models"
)

// catalogRepo binds the catalog repositories to one *gorm.DB, which is either
// the connection pool or an open transaction.
type catalogRepo struct {
	db       *gorm.DB
	series   *seriesRepo
	episodes *episodeRepo
	contexts *channelContextRepo
}

// NewCatalog creates a Catalog over db.
func NewCatalog(db *gorm.DB) *catalogRepo {
	return &catalogRepo{
		db:       db,
		series:   NewSeriesRepository(db),
		episodes: NewEpisodeRepository(db),
		contexts: NewChannelContextRepository(db),
	}
}

func (c *catalogRepo) Series() SeriesRepository           { return c.series }
func (c *catalogRepo) Episodes() EpisodeRepository        { return c.episodes }
func (c *catalogRepo) Contexts() ChannelContextRepository { return c.contexts }

// Transaction runs fn inside a transaction. Nested calls become savepoints.
func (c *catalogRepo) Transaction(ctx context.Context, fn func(tx Catalog) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewCatalog(tx))
	})
}

// Reset deletes every episode, series and channel context.
func (c *catalogRepo) Reset(ctx context.Context) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&models.Episode{}, &models.Series{}, &models.ChannelContext{}} {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("resetting catalog: %w", err)
			}
		}
		return nil
	})
}

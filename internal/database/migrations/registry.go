package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/reelarr/internal/models"
)

// AllMigrations returns all registered migrations in order.
//   - 001: Create catalog tables (series, episodes, channel_contexts)
//   - 002: Index series display names for partial-name lookups
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002SeriesNameIndex(),
	}
}

// catalogTables lists tables in reverse dependency order for teardown.
var catalogTables = []string{
	"channel_contexts",
	"episodes",
	"series",
}

func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create catalog tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Series{},
				&models.Episode{},
				&models.ChannelContext{},
			)
		},
		Down: func(tx *gorm.DB) error {
			for _, table := range catalogTables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

const seriesNameIndex = "idx_series_type_name"

func migration002SeriesNameIndex() Migration {
	return Migration{
		Version:     "002",
		Description: "Index series display names by type",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.Series{}, seriesNameIndex) {
				return nil
			}
			return tx.Exec("CREATE INDEX " + seriesNameIndex + " ON series (content_type, name)").Error
		},
		Down: func(tx *gorm.DB) error {
			if !tx.Migrator().HasIndex(&models.Series{}, seriesNameIndex) {
				return nil
			}
			return tx.Migrator().DropIndex(&models.Series{}, seriesNameIndex)
		},
	}
}

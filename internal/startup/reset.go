package startup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/reelarr/internal/repository"
)

// ResetCatalog empties the catalog tables and reports what was removed. It
// runs before the startup sync when sync.reset_database is set.
func ResetCatalog(ctx context.Context, catalog repository.Catalog, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	series, err := catalog.Series().Count(ctx, "")
	if err != nil {
		return fmt.Errorf("counting series: %w", err)
	}
	episodes, err := catalog.Episodes().Count(ctx)
	if err != nil {
		return fmt.Errorf("counting episodes: %w", err)
	}

	if err := catalog.Reset(ctx); err != nil {
		return fmt.Errorf("resetting catalog: %w", err)
	}

	logger.Warn("catalog reset",
		slog.Int64("series_removed", series),
		slog.Int64("episodes_removed", episodes),
	)
	return nil
}

package startup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/repository"
	"github.com/jmylchreest/reelarr/internal/testutil"
)

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "reelarr.lock")

	first, err := AcquireLock(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	_, err = AcquireLock(path, nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	first.Release()
	first.Release()

	second, err := AcquireLock(path, nil)
	require.NoError(t, err)
	second.Release()
}

func TestResetCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := repository.NewCatalog(testutil.NewTestDB(t))

	series := &models.Series{Name: "Blue Harbor", NormalizedName: "blue harbor", ContentType: models.ContentTypeSeries}
	_, err := catalog.Series().Create(ctx, series)
	require.NoError(t, err)
	_, err = catalog.Episodes().Insert(ctx, &models.Episode{
		SeriesID: series.ID, SeasonNumber: 1, EpisodeNumber: 1, ChannelID: "@harbor", MessageID: 1,
	})
	require.NoError(t, err)

	require.NoError(t, ResetCatalog(ctx, catalog, nil))

	n, err := catalog.Series().Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = catalog.Episodes().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

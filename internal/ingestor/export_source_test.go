package ingestor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "name": "Blue Harbor Archive",
  "type": "public_channel",
  "id": 1234567,
  "messages": [
    {"id": 1, "type": "service", "date": "2024-01-01T10:00:00", "action": "create_channel", "text": ""},
    {"id": 2, "type": "message", "date": "2024-01-01T10:05:00", "date_unixtime": "1704103500", "text": "Blue Harbor"},
    {"id": 3, "type": "message", "date": "2024-01-01T10:06:00", "text": ["Episode ", {"type": "bold", "text": "7"}],
     "file": "video_files/harbor_07.mp4", "media_type": "video_file", "mime_type": "video/mp4", "file_size": 73400320},
    {"id": 4, "type": "message", "date": "2024-01-01T10:07:00", "text": "poster", "photo": "photos/photo_1.jpg"},
    {"id": 5, "type": "message", "date": "2024-01-01T10:08:00", "text": "raw", "file": "files/archive.bin", "mime_type": "application/octet-stream"}
  ]
}`

func TestNewExportSource(t *testing.T) {
	src, err := NewExportSource(strings.NewReader(sampleExport), "")
	require.NoError(t, err)

	assert.Equal(t, "export", src.Name())
	assert.Equal(t, "-1001234567", src.ChannelID())
	assert.Equal(t, "Blue Harbor Archive", src.Title())

	msgs, err := src.History(context.Background(), "-1001234567", HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 4, "service messages are dropped")

	assert.Equal(t, int64(5), msgs[0].ID, "newest first")
	assert.Equal(t, int64(2), msgs[3].ID)

	episode := msgs[2]
	assert.Equal(t, "Episode 7", episode.Text)
	require.NotNil(t, episode.Media)
	assert.Equal(t, MediaKindVideo, episode.Media.Kind)
	assert.Equal(t, "harbor_07.mp4", episode.Media.FileName)
	assert.Equal(t, int64(73400320), episode.Media.Size)
	assert.True(t, episode.HasPlayableVideo(0))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 6, 0, 0, time.UTC), episode.Date)

	assert.Equal(t, time.Unix(1704103500, 0).UTC(), msgs[3].Date)
	assert.Nil(t, msgs[3].Media)

	assert.Equal(t, MediaKindPhoto, msgs[1].Media.Kind)
	assert.Equal(t, MediaKindDocument, msgs[0].Media.Kind)
}

func TestExportSource_HistoryOptions(t *testing.T) {
	src, err := NewExportSource(strings.NewReader(sampleExport), "@harbor")
	require.NoError(t, err)

	msgs, err := src.History(context.Background(), "@harbor", HistoryOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(4), msgs[1].ID)

	msgs, err = src.History(context.Background(), "@harbor", HistoryOptions{MinID: 3})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	_, err = src.History(context.Background(), "@other", HistoryOptions{})
	assert.ErrorIs(t, err, ErrChannelNotFound)

	assert.NoError(t, src.Subscribe(context.Background(), []string{"@harbor"}, nil))
}

func TestOpenExportSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0o600))

	src, err := OpenExportSource(path, "@harbor")
	require.NoError(t, err)
	assert.Equal(t, "@harbor", src.ChannelID())

	_, err = OpenExportSource(filepath.Join(t.TempDir(), "missing.json"), "@harbor")
	assert.Error(t, err)
}

func TestNewExportSource_Errors(t *testing.T) {
	_, err := NewExportSource(strings.NewReader(`{"messages": []}`), "")
	assert.Error(t, err)

	_, err = NewExportSource(strings.NewReader(`{"id": 1, "messages": [{"id": 1, "text": 42}]}`), "")
	assert.Error(t, err)
}

package ingestor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ExportSource serves the history of one channel from a Telegram Desktop
// "Export chat history" result.json. It has no live feed.
type ExportSource struct {
	channelID string
	title     string
	messages  []Message // newest first
}

type exportFile struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	ID       int64           `json:"id"`
	Messages []exportMessage `json:"messages"`
}

type exportMessage struct {
	ID           int64      `json:"id"`
	Type         string     `json:"type"`
	Date         string     `json:"date"`
	DateUnixtime string     `json:"date_unixtime"`
	Text         exportText `json:"text"`
	MediaType    string     `json:"media_type"`
	MimeType     string     `json:"mime_type"`
	File         string     `json:"file"`
	FileName     string     `json:"file_name"`
	FileSize     int64      `json:"file_size"`
	Photo        string     `json:"photo"`
	GroupedID    int64      `json:"grouped_id"`
}

// exportText accepts both a plain string and the entity array form
// ["plain ", {"type": "bold", "text": "bold"}].
type exportText string

func (t *exportText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = exportText(s)
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("text is neither a string nor an entity array: %w", err)
	}
	var sb strings.Builder
	for _, p := range parts {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			sb.WriteString(s)
			continue
		}
		var entity struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(p, &entity); err != nil {
			return fmt.Errorf("decoding text entity: %w", err)
		}
		sb.WriteString(entity.Text)
	}
	*t = exportText(sb.String())
	return nil
}

// OpenExportSource reads an export file from disk.
func OpenExportSource(filename, channelID string) (*ExportSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return NewExportSource(f, channelID)
}

// NewExportSource parses an export. When channelID is empty the channel is
// addressed by its numeric id in the "-100<id>" form.
func NewExportSource(r io.Reader, channelID string) (*ExportSource, error) {
	var export exportFile
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}
	if channelID == "" {
		if export.ID == 0 {
			return nil, fmt.Errorf("export has no channel id; pass one explicitly")
		}
		channelID = "-100" + strconv.FormatInt(export.ID, 10)
	}

	msgs := make([]Message, 0, len(export.Messages))
	for _, m := range export.Messages {
		if m.Type != "" && m.Type != "message" {
			continue
		}
		msgs = append(msgs, m.toMessage(channelID))
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })

	return &ExportSource{
		channelID: channelID,
		title:     export.Name,
		messages:  msgs,
	}, nil
}

func (m exportMessage) toMessage(channelID string) Message {
	msg := Message{
		ChannelID: channelID,
		ID:        m.ID,
		Text:      string(m.Text),
		GroupID:   m.GroupedID,
		Date:      m.date(),
	}

	switch {
	case m.File != "" || m.MediaType != "" || m.MimeType != "":
		name := m.FileName
		if name == "" && m.File != "" {
			name = path.Base(m.File)
		}
		kind := mediaKind(m.MediaType)
		if kind == MediaKindNone {
			kind = MediaKindDocument
		}
		msg.Media = &Media{
			Kind:     kind,
			MimeType: m.MimeType,
			FileName: name,
			Size:     m.FileSize,
		}
	case m.Photo != "":
		msg.Media = &Media{Kind: MediaKindPhoto, FileName: path.Base(m.Photo), Size: m.FileSize}
	}
	return msg
}

func (m exportMessage) date() time.Time {
	if m.DateUnixtime != "" {
		if sec, err := strconv.ParseInt(m.DateUnixtime, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC()
		}
	}
	if t, err := time.Parse("2006-01-02T15:04:05", m.Date); err == nil {
		return t
	}
	return time.Time{}
}

// Name implements Source.
func (s *ExportSource) Name() string { return "export" }

// ChannelID returns the channel the export is served as.
func (s *ExportSource) ChannelID() string { return s.channelID }

// Title returns the channel title recorded in the export.
func (s *ExportSource) Title() string { return s.title }

// History implements Source.
func (s *ExportSource) History(ctx context.Context, channelID string, opts HistoryOptions) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if channelID != s.channelID {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}

	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.ID <= opts.MinID {
			break
		}
		out = append(out, m)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Subscribe implements Source. Exports have no live feed.
func (s *ExportSource) Subscribe(ctx context.Context, channelIDs []string, handler EventHandler) error {
	return nil
}

package ingestor

import (
	"path/filepath"
	"strings"
)

// DefaultMinBinaryVideoSize is the size above which an untyped binary
// attachment is assumed to be a video.
const DefaultMinBinaryVideoSize int64 = 5 * 1024 * 1024

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".m4v":  {},
	".3gp":  {},
}

// HasPlayableVideo reports whether an attachment is a playable video. Any of
// the declared kind, the MIME type, the file extension or a video attribute
// is enough. Generic binary documents count when they exceed minBinarySize.
func HasPlayableVideo(m *Media, minBinarySize int64) bool {
	if m == nil || m.Kind == MediaKindNone {
		return false
	}
	if m.Kind == MediaKindVideo || m.HasVideoAttribute {
		return true
	}

	mime := strings.ToLower(strings.TrimSpace(m.MimeType))
	if strings.HasPrefix(mime, "video/") {
		return true
	}
	if m.FileName != "" {
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(m.FileName))]; ok {
			return true
		}
	}
	if minBinarySize <= 0 {
		minBinarySize = DefaultMinBinaryVideoSize
	}
	return mime == "application/octet-stream" && m.Size > minBinarySize
}

// HasPlayableVideo reports whether the message carries a playable video.
func (m *Message) HasPlayableVideo(minBinarySize int64) bool {
	return HasPlayableVideo(m.Media, minBinarySize)
}

package ingestor

import "strings"

// GroupAlbums merges albums in a batch of messages ordered oldest first.
//
// The first playable video of each album represents it: it takes the caption
// of the first captioned non-video member, or keeps its own caption when no
// such member exists. Every other message, album members included, passes
// through unchanged. The result keeps the input order.
func GroupAlbums(msgs []Message, minBinarySize int64) []Message {
	type album struct {
		videoIdx int
		caption  string
	}

	albums := make(map[int64]*album)
	for i := range msgs {
		m := &msgs[i]
		if m.GroupID == 0 {
			continue
		}
		a, ok := albums[m.GroupID]
		if !ok {
			a = &album{videoIdx: -1}
			albums[m.GroupID] = a
		}
		if m.HasPlayableVideo(minBinarySize) {
			if a.videoIdx < 0 {
				a.videoIdx = i
			}
			continue
		}
		if a.caption == "" && strings.TrimSpace(m.Text) != "" {
			a.caption = m.Text
		}
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	for _, a := range albums {
		if a.videoIdx < 0 || a.caption == "" {
			continue
		}
		out[a.videoIdx].Text = a.caption
	}
	return out
}

// SiblingCaption returns the first non-empty caption among other members of
// an album, or "" when none is found.
func SiblingCaption(msgs []Message, groupID, excludeID int64) string {
	if groupID == 0 {
		return ""
	}
	for i := range msgs {
		m := &msgs[i]
		if m.GroupID != groupID || m.ID == excludeID {
			continue
		}
		if text := strings.TrimSpace(m.Text); text != "" {
			return m.Text
		}
	}
	return ""
}

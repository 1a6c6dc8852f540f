package classifier

import (
	"regexp"

	"github.com/jmylchreest/reelarr/internal/textnorm"
)

// Marker words that count as type evidence wherever they appear in a caption.
var (
	seriesMarkers = newMarkerSet(
		"مسلسل", "المسلسل", "الحلقة", "حلقة", "الحلقات", "الموسم", "موسم",
		"series", "episode", "episodes", "ep", "season",
	)
	movieMarkers = newMarkerSet(
		"فيلم", "الفيلم", "افلام", "الجزء", "جزء",
		"movie", "film", "part",
	)
)

var (
	reLetterRun    = regexp.MustCompile(`\p{L}+`)
	reSxxExxMarker = regexp.MustCompile(`(?i)(?:^|[^\p{L}])s\d{1,3}\s*e\d{1,4}`)
	reCompactMark  = regexp.MustCompile(`(?:^|[^\p{L}])م\d{1,3}\s*ح\d{1,4}`)
)

type markerSet map[string]struct{}

func newMarkerSet(words ...string) markerSet {
	set := make(markerSet, len(words))
	for _, w := range words {
		set[textnorm.Key(w)] = struct{}{}
	}
	return set
}

func (s markerSet) has(word string) bool {
	_, ok := s[textnorm.Key(word)]
	return ok
}

// evidence records which type markers a caption carries.
type evidence struct {
	series bool
	movie  bool
}

func (e evidence) any() bool {
	return e.series || e.movie
}

// scanEvidence looks for series and movie markers in a prepared caption.
func scanEvidence(caption string) evidence {
	var ev evidence
	for _, word := range reLetterRun.FindAllString(caption, -1) {
		switch {
		case seriesMarkers.has(word):
			ev.series = true
		case movieMarkers.has(word):
			ev.movie = true
		}
	}
	if reSxxExxMarker.MatchString(caption) || reCompactMark.MatchString(caption) {
		ev.series = true
	}
	return ev
}

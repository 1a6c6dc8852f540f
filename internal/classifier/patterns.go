package classifier

import (
	"regexp"
	"strconv"

	"github.com/jmylchreest/reelarr/internal/models"
)

// Regular expression fragments shared by the rule table. Captions are
// digit-folded and whitespace-collapsed before matching.
const (
	namePrefix  = `^(?:(.*?)[\s\p{P}]+)?`
	num         = `(\d{1,4})`
	shortNum    = `(\d{1,3})`
	sep         = `\s*[:_\-–]?\s*`
	seasonWord  = `(?:(?:ال)?موسم|season)`
	episodeWord = `(?:(?:ال)?حلق[ةه]|episode|ep\.?)`
	partWord    = `(?:(?:ال)?جز[ءئ]|part)`
	fromWord    = `(?:من|of|from)`
)

// rule is one entry of the ordered pattern table. extract returns false to
// let the next rule try.
type rule struct {
	name    string
	re      *regexp.Regexp
	extract func(m []string, ev evidence) (Candidate, bool)
}

// rules is evaluated top to bottom and the first successful rule wins.
// Series patterns precede movie handling, so a caption carrying both kinds of
// marker resolves as a series. The order is fixed; changing it changes which
// of several overlapping patterns wins.
var rules = []rule{
	{
		name: "season_episode_words",
		re:   mustRule(namePrefix + seasonWord + sep + num + `\s*[,،\-–]?\s*` + episodeWord + sep + num),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			return seriesCandidate(m[1], atoi(m[2]), atoi(m[3])), true
		},
	},
	{
		name: "sxxexx",
		re:   mustRule(namePrefix + `s(\d{1,3})\s*e(\d{1,4})`),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			return seriesCandidate(m[1], atoi(m[2]), atoi(m[3])), true
		},
	},
	{
		// The name may follow the numbering: "episode 3 of season 2 Dark".
		name: "episode_of_season",
		re:   mustRule(namePrefix + episodeWord + sep + num + `\s*` + fromWord + `\s*` + seasonWord + sep + num + `(.*)$`),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			c := seriesCandidate(m[1], atoi(m[3]), atoi(m[2]))
			if c.Name == "" {
				if trailing := cleanName(m[4]); !isNumeric(trailing) {
					c.Name = trailing
				}
			}
			return c, true
		},
	},
	{
		name: "season_range",
		re:   mustRule(namePrefix + seasonWord + sep + num + `\s*[-–]\s*` + num),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			return seriesCandidate(m[1], atoi(m[2]), atoi(m[3])), true
		},
	},
	{
		name: "compact_arabic",
		re:   mustRule(namePrefix + `م` + shortNum + `\s*ح` + num),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			return seriesCandidate(m[1], atoi(m[2]), atoi(m[3])), true
		},
	},
	{
		name: "episode_word",
		re:   mustRule(namePrefix + episodeWord + sep + num),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			return seriesCandidate(m[1], 1, atoi(m[2])), true
		},
	},
	{
		name: "season_word",
		re:   mustRule(namePrefix + seasonWord + sep + num),
		extract: func(m []string, _ evidence) (Candidate, bool) {
			return seriesCandidate(m[1], atoi(m[2]), 1), true
		},
	},
	{
		// A numbered part of a captioned series is read as its season.
		name: "part_word",
		re:   mustRule(namePrefix + partWord + sep + num),
		extract: func(m []string, ev evidence) (Candidate, bool) {
			if ev.series {
				return seriesCandidate(m[1], atoi(m[2]), 1), true
			}
			return movieCandidate(m[1], atoi(m[2])), true
		},
	},
	{
		name: "trailing_pair",
		re:   regexp.MustCompile(`^(.+?)\s+` + shortNum + `(?:\s*[-–x×]\s*|\s+)` + shortNum + `\s*$`),
		extract: func(m []string, ev evidence) (Candidate, bool) {
			if ev.movie && !ev.series {
				return Candidate{}, false
			}
			c := seriesCandidate(m[1], atoi(m[2]), atoi(m[3]))
			c.Evidence = ev.any()
			return c, true
		},
	},
	{
		name: "trailing_number",
		re:   regexp.MustCompile(`^(.+?)\s+` + shortNum + `\s*$`),
		extract: func(m []string, ev evidence) (Candidate, bool) {
			if ev.movie && !ev.series {
				return movieCandidate(m[1], atoi(m[2])), true
			}
			c := seriesCandidate(m[1], 1, atoi(m[2]))
			c.Evidence = ev.any()
			return c, true
		},
	},
}

func mustRule(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

func seriesCandidate(name string, season, episode int) Candidate {
	return Candidate{
		Name:     cleanName(name),
		Type:     models.ContentTypeSeries,
		Season:   positive(season),
		Episode:  positive(episode),
		Evidence: true,
	}
}

func movieCandidate(name string, part int) Candidate {
	return Candidate{
		Name:     cleanName(name),
		Type:     models.ContentTypeMovie,
		Season:   positive(part),
		Episode:  1,
		Evidence: true,
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// positive maps zero to one: "episode 0" and missing numbers both mean the
// first item.
func positive(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

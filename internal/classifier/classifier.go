// Package classifier turns a message caption into a catalog candidate: a
// display name, a content type and season/episode numbering.
package classifier

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/textnorm"
)

// Outcome reports which stage of the classifier produced a candidate.
type Outcome int

const (
	// OutcomeNone means no candidate: the message is skipped.
	OutcomeNone Outcome = iota
	// OutcomeMatched means a rule in the pattern table matched.
	OutcomeMatched
	// OutcomeKeyword means the movie keyword scan matched.
	OutcomeKeyword
	// OutcomeFallback means nothing matched and the attachment was kept as
	// part 1 of a movie named by the caption.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeKeyword:
		return "keyword"
	case OutcomeFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Candidate is a classified caption ready for identity resolution.
type Candidate struct {
	// Name is the display name with original casing. It may be empty when
	// the caption carried numbering only.
	Name string

	Type models.ContentType

	// Season holds the season for series and the part for movies.
	Season int

	// Episode is 1 for movies.
	Episode int

	// Evidence is true when the type came from explicit markers rather than
	// a guess, in which case the episode-count policy leaves it alone.
	Evidence bool

	// Rule names the pattern table entry that matched, if any.
	Rule string
}

const maxAnnouncementRunes = 80

var (
	reDecorations  = regexp.MustCompile(`https?://\S+|t\.me/\S+|@\w+|#\S+|[\p{So}\x{FE0F}\x{200D}]`)
	reTrailingPart = regexp.MustCompile(`\s+(\d{1,3})\s*$`)
	reNumbers      = regexp.MustCompile(`\d{1,4}`)
)

// Classifier parses captions with the ordered rule table.
type Classifier struct {
	logger *slog.Logger
}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{logger: slog.Default()}
}

// WithLogger sets the logger used for debug tracing of rule matches.
func (c *Classifier) WithLogger(logger *slog.Logger) *Classifier {
	c.logger = logger
	return c
}

// Parse classifies a caption. Messages without a playable attachment never
// yield a candidate; caption-only posts are handled by TitleAnnouncement.
//
// With an attachment the rule table is tried first, then a movie keyword
// scan, and finally the caption becomes part 1 of a movie so that no
// attachment is dropped.
func (c *Classifier) Parse(caption string, hasAttachment bool) (Candidate, Outcome) {
	if !hasAttachment {
		return Candidate{}, OutcomeNone
	}

	text := prepare(caption)
	ev := scanEvidence(text)

	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cand, ok := r.extract(m, ev)
		if !ok {
			continue
		}
		cand.Rule = r.name
		c.logger.Debug("caption matched rule",
			slog.String("rule", r.name),
			slog.String("name", cand.Name),
			slog.String("type", string(cand.Type)),
			slog.Int("season", cand.Season),
			slog.Int("episode", cand.Episode),
		)
		return cand, OutcomeMatched
	}

	if ev.movie && !ev.series {
		part := 1
		name := text
		if m := reTrailingPart.FindStringSubmatchIndex(text); m != nil {
			part = atoi(text[m[2]:m[3]])
			name = text[:m[0]]
		}
		cand := movieCandidate(name, part)
		cand.Rule = "movie_keyword"
		return cand, OutcomeKeyword
	}

	name := cleanName(text)
	if isNumeric(name) {
		name = ""
	}
	c.logger.Debug("caption matched no rule, keeping attachment as movie", slog.String("caption", truncate(text, 100)))
	return Candidate{
		Name:    name,
		Type:    models.ContentTypeMovie,
		Season:  1,
		Episode: 1,
	}, OutcomeFallback
}

// TitleAnnouncement reports whether a caption-only post names a series that
// later attachments in the channel belong to. An announcement has no digits,
// no series or movie markers and a short non-empty name.
func (c *Classifier) TitleAnnouncement(caption string) (string, bool) {
	text := prepare(caption)
	if text == "" || textnorm.HasDigits(text) {
		return "", false
	}
	if scanEvidence(text).any() {
		return "", false
	}
	name := cleanName(text)
	if name == "" || utf8.RuneCountInString(name) > maxAnnouncementRunes {
		return "", false
	}
	return name, true
}

// Numbers extracts up to two numbers from a caption as season and episode.
// One number is an episode of season 1; none means episode 1.
func Numbers(caption string) (season, episode int) {
	found := reNumbers.FindAllString(textnorm.FoldDigits(caption), 2)
	switch len(found) {
	case 0:
		return 1, 1
	case 1:
		return 1, positive(atoi(found[0]))
	default:
		return positive(atoi(found[0])), positive(atoi(found[1]))
	}
}

// prepare folds digits, removes links, mentions, hashtags and emoji, and
// collapses whitespace.
func prepare(caption string) string {
	s := textnorm.FoldDigits(caption)
	s = reDecorations.ReplaceAllString(s, " ")
	return textnorm.CollapseSpace(s)
}

// cleanName turns a caption fragment into a display name: noise and type
// words are dropped from the front, and marker words from the end.
func cleanName(s string) string {
	name := textnorm.CleanDisplayName(s)
	tokens := strings.Fields(name)
	for len(tokens) > 0 && textnorm.IsTrailingWord(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return textnorm.CleanDisplayName(strings.Join(tokens, " "))
}

func isNumeric(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

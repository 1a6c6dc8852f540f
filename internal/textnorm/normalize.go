// Package textnorm canonicalizes Arabic and Latin captions for comparison and
// display.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	tatweel = 'ـ'

	// maxKeyPasses bounds the fixed-point loop in NormalizeSeriesName.
	maxKeyPasses = 4
)

// letterFolds maps Arabic letter variants that survive decomposition onto the
// form used in comparison keys.
var letterFolds = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ٱ': 'ا',
	'ى': 'ا',
	'ة': 'ه',
}

var (
	reNonWord    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	reMultiSpace = regexp.MustCompile(`\s+`)
)

// Leading and trailing words stripped from comparison keys. They are stored
// in normalized form.
var (
	typeWords = newWordSet(
		"مسلسل", "المسلسل", "فيلم", "الفيلم", "افلام",
		"series", "movie", "film",
	)
	trailingWords = newWordSet(
		"الحلقة", "حلقة", "الحلقات", "الموسم", "موسم", "الجزء", "جزء",
		"episode", "ep", "season", "part",
	)
	// noiseWords prefix captions without being part of the title.
	noiseWords = newWordSet(
		"مشاهدة", "تحميل", "الآن", "الان", "شاهد", "مترجم", "مترجمة", "مدبلج", "حصريا",
		"watch", "download", "now",
	)
)

type wordSet map[string]struct{}

func newWordSet(words ...string) wordSet {
	set := make(wordSet, len(words))
	for _, w := range words {
		set[foldToken(w)] = struct{}{}
	}
	return set
}

// Has reports whether the normalized form of word is in the set.
func (s wordSet) Has(word string) bool {
	_, ok := s[foldToken(word)]
	return ok
}

// NormalizeArabicText decomposes s, strips combining marks and tatweel, and
// folds hamza-carrying alef forms and alef maqsura to bare alef and taa
// marbuta to haa. The function is total and idempotent.
func NormalizeArabicText(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) || r == tatweel
		})),
		runes.Map(func(r rune) rune {
			if f, ok := letterFolds[r]; ok {
				return f
			}
			return r
		}),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeSeriesName returns the comparison key for a display name. It folds
// case and letter forms, drops punctuation, and strips a leading type word, a
// trailing episode/season/part word and a trailing bare number until none
// remain. The key is idempotent and is never shown to users.
func NormalizeSeriesName(s string) string {
	key := keyStep(s)
	for range maxKeyPasses {
		next := keyStep(key)
		if next == key {
			break
		}
		key = next
	}
	return key
}

func keyStep(s string) string {
	s = foldToken(FoldDigits(s))
	s = reNonWord.ReplaceAllString(s, " ")
	tokens := strings.Fields(s)

	for changed := true; changed && len(tokens) > 0; {
		changed = false
		if typeWords.Has(tokens[0]) {
			tokens = tokens[1:]
			changed = true
			continue
		}
		last := tokens[len(tokens)-1]
		if isNumber(last) || trailingWords.Has(last) {
			tokens = tokens[:len(tokens)-1]
			changed = true
		}
	}
	return strings.Join(tokens, " ")
}

// foldToken applies case folding around letter normalization so the result
// is stable under both.
func foldToken(s string) string {
	return NormalizeArabicText(cases.Fold().String(NormalizeArabicText(s)))
}

// FoldDigits rewrites Arabic-Indic and Eastern Arabic-Indic digits as ASCII.
func FoldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// HasDigits reports whether s contains any decimal digit.
func HasDigits(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit)
}

// CollapseSpace trims s and collapses whitespace runs to single spaces.
func CollapseSpace(s string) string {
	return strings.TrimSpace(reMultiSpace.ReplaceAllString(s, " "))
}

// CleanDisplayName trims surrounding punctuation and leading noise and type
// words from a caption fragment, keeping the original casing and spelling.
func CleanDisplayName(s string) string {
	tokens := strings.Fields(s)
	for len(tokens) > 0 {
		head := strings.Trim(tokens[0], trimCutset)
		if head == "" || noiseWords.Has(head) || typeWords.Has(head) {
			tokens = tokens[1:]
			continue
		}
		break
	}
	return strings.Trim(strings.Join(tokens, " "), trimCutset+" ")
}

const trimCutset = "-_:|.,;!?*•–—()[]{}\"'«»/\\#~"

// IsTypeWord reports whether word is a leading series or movie word.
func IsTypeWord(word string) bool {
	return typeWords.Has(strings.Trim(word, trimCutset))
}

// IsTrailingWord reports whether word is an episode, season or part word.
func IsTrailingWord(word string) bool {
	return trailingWords.Has(strings.Trim(word, trimCutset))
}

// IsNoiseWord reports whether word is a caption prefix such as "watch".
func IsNoiseWord(word string) bool {
	return noiseWords.Has(strings.Trim(word, trimCutset))
}

// Key normalizes a single keyword for set membership checks.
func Key(word string) string {
	return foldToken(word)
}

func isNumber(s string) bool {
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

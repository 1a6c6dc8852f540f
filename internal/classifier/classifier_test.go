package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/reelarr/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    Candidate
		outcome Outcome
	}{
		{
			name:    "english season and episode words",
			caption: "X season 2 episode 5",
			want:    Candidate{Name: "X", Type: models.ContentTypeSeries, Season: 2, Episode: 5, Evidence: true, Rule: "season_episode_words"},
			outcome: OutcomeMatched,
		},
		{
			name:    "movie with trailing part number",
			caption: "movie Y 3",
			want:    Candidate{Name: "Y", Type: models.ContentTypeMovie, Season: 3, Episode: 1, Evidence: true, Rule: "trailing_number"},
			outcome: OutcomeMatched,
		},
		{
			name:    "arabic season and episode words",
			caption: "مسلسل الهيبة الموسم 2 الحلقة 5",
			want:    Candidate{Name: "الهيبة", Type: models.ContentTypeSeries, Season: 2, Episode: 5, Evidence: true, Rule: "season_episode_words"},
			outcome: OutcomeMatched,
		},
		{
			name:    "sxxexx",
			caption: "Breaking Bad S02E05 720p",
			want:    Candidate{Name: "Breaking Bad", Type: models.ContentTypeSeries, Season: 2, Episode: 5, Evidence: true, Rule: "sxxexx"},
			outcome: OutcomeMatched,
		},
		{
			name:    "episode of season",
			caption: "لعبة الحبار الحلقة 5 من الموسم 2",
			want:    Candidate{Name: "لعبة الحبار", Type: models.ContentTypeSeries, Season: 2, Episode: 5, Evidence: true, Rule: "episode_of_season"},
			outcome: OutcomeMatched,
		},
		{
			name:    "episode of season with trailing name",
			caption: "الحلقة 3 من الموسم 2 مسلسل الهيبة",
			want:    Candidate{Name: "الهيبة", Type: models.ContentTypeSeries, Season: 2, Episode: 3, Evidence: true, Rule: "episode_of_season"},
			outcome: OutcomeMatched,
		},
		{
			name:    "episode of season keeps leading name",
			caption: "Dark episode 4 of season 1 1080p",
			want:    Candidate{Name: "Dark", Type: models.ContentTypeSeries, Season: 1, Episode: 4, Evidence: true, Rule: "episode_of_season"},
			outcome: OutcomeMatched,
		},
		{
			name:    "season range",
			caption: "Dark season 1-8",
			want:    Candidate{Name: "Dark", Type: models.ContentTypeSeries, Season: 1, Episode: 8, Evidence: true, Rule: "season_range"},
			outcome: OutcomeMatched,
		},
		{
			name:    "compact arabic",
			caption: "قيامة أرطغرل م2 ح15",
			want:    Candidate{Name: "قيامة أرطغرل", Type: models.ContentTypeSeries, Season: 2, Episode: 15, Evidence: true, Rule: "compact_arabic"},
			outcome: OutcomeMatched,
		},
		{
			name:    "episode word defaults to season one",
			caption: "Show الحلقة 7",
			want:    Candidate{Name: "Show", Type: models.ContentTypeSeries, Season: 1, Episode: 7, Evidence: true, Rule: "episode_word"},
			outcome: OutcomeMatched,
		},
		{
			name:    "season word only",
			caption: "The Crown season 3",
			want:    Candidate{Name: "The Crown", Type: models.ContentTypeSeries, Season: 3, Episode: 1, Evidence: true, Rule: "season_word"},
			outcome: OutcomeMatched,
		},
		{
			name:    "movie part word",
			caption: "فيلم Avatar الجزء 2",
			want:    Candidate{Name: "Avatar", Type: models.ContentTypeMovie, Season: 2, Episode: 1, Evidence: true, Rule: "part_word"},
			outcome: OutcomeMatched,
		},
		{
			name:    "part of a captioned series is its season",
			caption: "مسلسل الاختيار الجزء 2",
			want:    Candidate{Name: "الاختيار", Type: models.ContentTypeSeries, Season: 2, Episode: 1, Evidence: true, Rule: "part_word"},
			outcome: OutcomeMatched,
		},
		{
			name:    "series wins ties",
			caption: "مسلسل فيلم الحلقة 3",
			want:    Candidate{Name: "", Type: models.ContentTypeSeries, Season: 1, Episode: 3, Evidence: true, Rule: "episode_word"},
			outcome: OutcomeMatched,
		},
		{
			name:    "trailing pair without markers",
			caption: "Friends 3 12",
			want:    Candidate{Name: "Friends", Type: models.ContentTypeSeries, Season: 3, Episode: 12, Rule: "trailing_pair"},
			outcome: OutcomeMatched,
		},
		{
			name:    "trailing number without markers",
			caption: "Friends 12",
			want:    Candidate{Name: "Friends", Type: models.ContentTypeSeries, Season: 1, Episode: 12, Rule: "trailing_number"},
			outcome: OutcomeMatched,
		},
		{
			name:    "decorations and arabic-indic digits",
			caption: "🎬 Show الحلقة ٣ #drama https://t.me/x/1",
			want:    Candidate{Name: "Show", Type: models.ContentTypeSeries, Season: 1, Episode: 3, Evidence: true, Rule: "episode_word"},
			outcome: OutcomeMatched,
		},
		{
			name:    "movie keyword without number",
			caption: "فيلم The Matrix",
			want:    Candidate{Name: "The Matrix", Type: models.ContentTypeMovie, Season: 1, Episode: 1, Evidence: true, Rule: "movie_keyword"},
			outcome: OutcomeKeyword,
		},
		{
			name:    "year is not numbering",
			caption: "Avatar 2009",
			want:    Candidate{Name: "Avatar 2009", Type: models.ContentTypeMovie, Season: 1, Episode: 1},
			outcome: OutcomeFallback,
		},
		{
			name:    "unmatched caption falls back to movie",
			caption: "Some Random Clip",
			want:    Candidate{Name: "Some Random Clip", Type: models.ContentTypeMovie, Season: 1, Episode: 1},
			outcome: OutcomeFallback,
		},
		{
			name:    "empty caption",
			caption: "",
			want:    Candidate{Type: models.ContentTypeMovie, Season: 1, Episode: 1},
			outcome: OutcomeFallback,
		},
		{
			name:    "pure number has no name",
			caption: "7",
			want:    Candidate{Type: models.ContentTypeMovie, Season: 1, Episode: 1},
			outcome: OutcomeFallback,
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := c.Parse(tt.caption, true)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_NoAttachment(t *testing.T) {
	c := New()
	for _, caption := range []string{"X season 2 episode 5", "Show Name", ""} {
		_, outcome := c.Parse(caption, false)
		assert.Equal(t, OutcomeNone, outcome, caption)
	}
}

func TestTitleAnnouncement(t *testing.T) {
	tests := []struct {
		caption string
		name    string
		ok      bool
	}{
		{"Show Name", "Show Name", true},
		{"  الهيبة  ", "الهيبة", true},
		{"مشاهدة ممتعة", "ممتعة", true},
		{"Show 2", "", false},
		{"Show ٢", "", false},
		{"مسلسل الهيبة", "", false},
		{"the movie night", "", false},
		{"", "", false},
		{"🎬", "", false},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			name, ok := c.TitleAnnouncement(tt.caption)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		caption         string
		season, episode int
	}{
		{"", 1, 1},
		{"7", 1, 7},
		{"2 5", 2, 5},
		{"٣", 1, 3},
		{"part 0", 1, 1},
		{"1 2 3", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			season, episode := Numbers(tt.caption)
			assert.Equal(t, tt.season, season)
			assert.Equal(t, tt.episode, episode)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "none", OutcomeNone.String())
	assert.Equal(t, "matched", OutcomeMatched.String())
	assert.Equal(t, "keyword", OutcomeKeyword.String())
	assert.Equal(t, "fallback", OutcomeFallback.String())
}

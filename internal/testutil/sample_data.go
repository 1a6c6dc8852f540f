// Package testutil provides test helpers: an in-memory catalog database, a
// scripted message source and a caption generator.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jmylchreest/reelarr/internal/ingestor"
)

// Fictional titles for test data. Never use real show or studio names.
var (
	SeriesTitles = []string{
		"Blue Harbor",
		"Glass Orchard",
		"Night Ferry",
		"Copper Valley",
		"Silent Meridian",
		"Paper Lanterns",
		"Northwind Station",
		"Salt and Cedar",
	}

	MovieTitles = []string{
		"The Long Tide",
		"Iron Lullaby",
		"Seven Bridges Home",
		"Amber Signal",
	}

	ArabicSeriesTitles = []string{
		"بيت الرمال",
		"ليالي المرفأ",
		"حكاية الوادي",
		"نجوم الشمال",
	}
)

// CaptionStyle selects how a generated caption encodes its numbering.
type CaptionStyle string

const (
	StyleSxxExx      CaptionStyle = "sxxexx"
	StyleWords       CaptionStyle = "words"
	StyleArabicWords CaptionStyle = "arabic_words"
	StyleTrailing    CaptionStyle = "trailing"
	StyleMoviePart   CaptionStyle = "movie_part"
)

// SampleEpisode is a generated caption with the numbering it encodes.
type SampleEpisode struct {
	Title   string
	Caption string
	Season  int
	Episode int
	Movie   bool
}

// SampleDataGenerator generates captions and messages for tests.
type SampleDataGenerator struct {
	rng *rand.Rand
}

// NewSampleDataGenerator creates a generator with a random seed.
func NewSampleDataGenerator() *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSampleDataGeneratorWithSeed creates a reproducible generator.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// RandomSeriesTitle returns a fictional series title.
func (g *SampleDataGenerator) RandomSeriesTitle() string {
	return SeriesTitles[g.rng.Intn(len(SeriesTitles))]
}

// RandomMovieTitle returns a fictional movie title.
func (g *SampleDataGenerator) RandomMovieTitle() string {
	return MovieTitles[g.rng.Intn(len(MovieTitles))]
}

// RandomArabicTitle returns a fictional Arabic series title.
func (g *SampleDataGenerator) RandomArabicTitle() string {
	return ArabicSeriesTitles[g.rng.Intn(len(ArabicSeriesTitles))]
}

// Caption renders a caption for title in the given style.
func Caption(style CaptionStyle, title string, season, episode int) string {
	switch style {
	case StyleSxxExx:
		return fmt.Sprintf("%s S%02dE%02d", title, season, episode)
	case StyleWords:
		return fmt.Sprintf("%s Season %d Episode %d", title, season, episode)
	case StyleArabicWords:
		return fmt.Sprintf("%s الموسم %d الحلقة %d", title, season, episode)
	case StyleTrailing:
		return fmt.Sprintf("%s %d %d", title, season, episode)
	case StyleMoviePart:
		return fmt.Sprintf("فيلم %s الجزء %d", title, season)
	default:
		return title
	}
}

// GenerateSeries generates episodes of one series in posting order.
func (g *SampleDataGenerator) GenerateSeries(title string, seasons, episodesPerSeason int, style CaptionStyle) []SampleEpisode {
	out := make([]SampleEpisode, 0, seasons*episodesPerSeason)
	for s := 1; s <= seasons; s++ {
		for e := 1; e <= episodesPerSeason; e++ {
			out = append(out, SampleEpisode{
				Title:   title,
				Caption: Caption(style, title, s, e),
				Season:  s,
				Episode: e,
			})
		}
	}
	return out
}

// GenerateMixed generates count episodes across random series and styles.
func (g *SampleDataGenerator) GenerateMixed(count int) []SampleEpisode {
	styles := []CaptionStyle{StyleSxxExx, StyleWords, StyleArabicWords}
	out := make([]SampleEpisode, 0, count)
	for i := 0; i < count; i++ {
		style := styles[g.rng.Intn(len(styles))]
		title := g.RandomSeriesTitle()
		if style == StyleArabicWords {
			title = g.RandomArabicTitle()
		}
		season := g.rng.Intn(3) + 1
		episode := g.rng.Intn(30) + 1
		out = append(out, SampleEpisode{
			Title:   title,
			Caption: Caption(style, title, season, episode),
			Season:  season,
			Episode: episode,
		})
	}
	return out
}

// VideoMessage builds a message with a video attachment.
func VideoMessage(channelID string, id int64, caption string) ingestor.Message {
	return ingestor.Message{
		ChannelID: channelID,
		ID:        id,
		Text:      caption,
		Date:      time.Unix(1700000000+id*60, 0).UTC(),
		Media: &ingestor.Media{
			Kind:     ingestor.MediaKindVideo,
			MimeType: "video/mp4",
			FileName: fmt.Sprintf("video_%d.mp4", id),
			Size:     200 * 1024 * 1024,
		},
	}
}

// TextMessage builds a caption-only message.
func TextMessage(channelID string, id int64, text string) ingestor.Message {
	return ingestor.Message{
		ChannelID: channelID,
		ID:        id,
		Text:      text,
		Date:      time.Unix(1700000000+id*60, 0).UTC(),
	}
}

// PhotoMessage builds a message with a photo attachment.
func PhotoMessage(channelID string, id int64, caption string) ingestor.Message {
	msg := TextMessage(channelID, id, caption)
	msg.Media = &ingestor.Media{Kind: ingestor.MediaKindPhoto, MimeType: "image/jpeg"}
	return msg
}

// Messages turns samples into video messages with consecutive IDs starting
// at firstID, in posting order.
func Messages(channelID string, firstID int64, samples []SampleEpisode) []ingestor.Message {
	out := make([]ingestor.Message, len(samples))
	for i, s := range samples {
		out[i] = VideoMessage(channelID, firstID+int64(i), s.Caption)
	}
	return out
}

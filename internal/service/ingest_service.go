// Package service provides the business logic layer for reelarr: message
// ingestion, sync passes and catalog reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jmylchreest/reelarr/internal/classifier"
	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/repository"
)

// IngestStatus is the outcome of ingesting one message.
type IngestStatus string

const (
	IngestInserted  IngestStatus = "inserted"
	IngestDuplicate IngestStatus = "duplicate"
	IngestSkipped   IngestStatus = "skipped"
)

// IngestResult reports what Ingest did with a message.
type IngestResult struct {
	Status    IngestStatus
	SeriesID  models.ULID
	EpisodeID models.ULID
	// SeriesCreated is true when the message introduced a new series.
	SeriesCreated bool
	// Rule names the classifier rule or fallback that produced the entry.
	Rule string
}

// errDuplicate rolls back an ingestion whose message is already stored, so a
// series created for it does not survive as an orphan.
var errDuplicate = errors.New("message already ingested")

// IngestService turns channel messages into catalog entries.
type IngestService struct {
	catalog       repository.Catalog
	classifier    *classifier.Classifier
	tracker       *ingestor.ContextTracker
	resolver      *Resolver
	policy        classifier.TypePolicy
	minBinarySize int64
	logger        *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	catalog repository.Catalog,
	c *classifier.Classifier,
	tracker *ingestor.ContextTracker,
	resolver *Resolver,
) *IngestService {
	return &IngestService{
		catalog:       catalog,
		classifier:    c,
		tracker:       tracker,
		resolver:      resolver,
		policy:        classifier.DefaultTypePolicy(),
		minBinarySize: ingestor.DefaultMinBinaryVideoSize,
		logger:        slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *IngestService) WithLogger(logger *slog.Logger) *IngestService {
	s.logger = logger
	return s
}

// WithTypePolicy sets the episode-count type policy.
func (s *IngestService) WithTypePolicy(p classifier.TypePolicy) *IngestService {
	s.policy = p
	return s
}

// WithMinBinaryVideoSize sets the size above which untyped binary
// attachments count as video.
func (s *IngestService) WithMinBinaryVideoSize(n int64) *IngestService {
	s.minBinarySize = n
	return s
}

// Ingest classifies a message and stores it as an episode. Caption-only
// posts update the channel context and are skipped. Every message with a
// playable video yields an episode; a message already in the catalog is a
// duplicate, not an error.
func (s *IngestService) Ingest(ctx context.Context, msg ingestor.Message) (IngestResult, error) {
	logger := s.logger.With(
		slog.String("channel_id", msg.ChannelID),
		slog.Int64("message_id", msg.ID),
	)

	if !msg.HasPlayableVideo(s.minBinarySize) {
		if msg.Media == nil && strings.TrimSpace(msg.Text) != "" {
			if _, _, err := s.tracker.Observe(ctx, msg.ChannelID, msg.Text); err != nil {
				logger.WarnContext(ctx, "failed to persist channel context", slog.String("error", err.Error()))
			}
		}
		return IngestResult{Status: IngestSkipped}, nil
	}

	cand, outcome := s.classifier.Parse(msg.Text, true)
	if outcome == classifier.OutcomeNone {
		logger.DebugContext(ctx, "message not classified")
		return IngestResult{Status: IngestSkipped}, nil
	}
	rule := cand.Rule
	if outcome == classifier.OutcomeFallback || cand.Name == "" {
		if synth, ok := s.tracker.Synthesize(msg.ChannelID, msg.Text); ok {
			cand = synth
			rule = synth.Rule
		}
	}
	if rule == "" {
		rule = outcome.String()
	}
	if cand.Name == "" {
		cand.Name = placeholderName(msg)
		logger.DebugContext(ctx, "caption has no usable name, using placeholder",
			slog.String("name", cand.Name),
		)
	}

	result := IngestResult{Rule: rule}
	err := s.catalog.Transaction(ctx, func(tx repository.Catalog) error {
		contentType := cand.Type
		if s.policy.Enabled && !cand.Evidence {
			existing, err := tx.Series().CountEpisodesByNormalizedName(ctx, SeriesKey(cand.Name))
			if err != nil {
				return err
			}
			contentType = s.policy.Refine(cand, existing)
		}

		series, created, err := s.resolver.Resolve(ctx, tx.Series(), cand.Name, contentType)
		if err != nil {
			return err
		}

		episode := &models.Episode{
			SeriesID:      series.ID,
			SeasonNumber:  cand.Season,
			EpisodeNumber: cand.Episode,
			ChannelID:     msg.ChannelID,
			MessageID:     msg.ID,
		}
		inserted, err := tx.Episodes().Insert(ctx, episode)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicate
		}

		result.SeriesID = series.ID
		result.EpisodeID = episode.ID
		result.SeriesCreated = created
		return nil
	})
	switch {
	case errors.Is(err, errDuplicate):
		logger.DebugContext(ctx, "message already ingested")
		return IngestResult{Status: IngestDuplicate, Rule: rule}, nil
	case err != nil:
		return IngestResult{}, fmt.Errorf("ingesting message %d from %s: %w", msg.ID, msg.ChannelID, err)
	}

	result.Status = IngestInserted
	logger.DebugContext(ctx, "episode ingested",
		slog.String("series_id", result.SeriesID.String()),
		slog.String("name", cand.Name),
		slog.Int("season", cand.Season),
		slog.Int("episode", cand.Episode),
		slog.String("rule", rule),
	)
	return result, nil
}

// placeholderName names an attachment whose caption yielded no title. Album
// members share the group placeholder so they land in one series.
func placeholderName(msg ingestor.Message) string {
	if msg.GroupID != 0 {
		return "Unnamed_Group_" + strconv.FormatInt(msg.GroupID, 10)
	}
	return "Unnamed_" + strconv.FormatInt(msg.ID, 10)
}

package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/reelarr/pkg/httpclient"
)

// Bridge defaults.
const (
	DefaultBridgePageSize    = 100
	DefaultBridgePollTimeout = 25 * time.Second
	DefaultBridgeRateLimit   = 5.0
	DefaultBridgeBurst       = 5
)

// BridgeConfig configures a BridgeSource.
type BridgeConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RetryAttempts int
	// RateLimit is the sustained request rate per second.
	RateLimit   float64
	Burst       int
	PollTimeout time.Duration
	PageSize    int
	UserAgent   string
	Logger      *slog.Logger
	// Breaker lets several sources share one circuit breaker.
	Breaker *httpclient.CircuitBreaker
}

// BridgeSource reads channels through a JSON-over-HTTP bridge sidecar that
// owns the Telegram session.
type BridgeSource struct {
	base     *url.URL
	token    string
	client   *httpclient.Client
	poll     *httpclient.Client
	limiter  *rate.Limiter
	pageSize int
	pollWait time.Duration
	logger   *slog.Logger
}

// NewBridgeSource creates a bridge source.
func NewBridgeSource(cfg BridgeConfig) (*BridgeSource, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("bridge base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing bridge base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("bridge base url must be http or https, got %q", cfg.BaseURL)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultBridgeRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBridgeBurst
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultBridgePollTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultBridgePageSize
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Logger = cfg.Logger
	if cfg.Timeout > 0 {
		httpCfg.Timeout = cfg.Timeout
	}
	if cfg.RetryAttempts > 0 {
		httpCfg.RetryAttempts = cfg.RetryAttempts
	}
	if cfg.UserAgent != "" {
		httpCfg.UserAgent = cfg.UserAgent
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = httpclient.NewCircuitBreaker(httpCfg.CircuitThreshold, httpCfg.CircuitTimeout, httpCfg.CircuitHalfOpenMax)
	}

	pollCfg := httpCfg
	pollCfg.Timeout = cfg.PollTimeout + httpCfg.Timeout

	return &BridgeSource{
		base:     base,
		token:    cfg.Token,
		client:   httpclient.NewWithBreaker(httpCfg, breaker),
		poll:     httpclient.NewWithBreaker(pollCfg, breaker),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		pageSize: cfg.PageSize,
		pollWait: cfg.PollTimeout,
		logger:   cfg.Logger,
	}, nil
}

// Name implements Source.
func (s *BridgeSource) Name() string { return "bridge" }

// Client returns the HTTP client for health reporting.
func (s *BridgeSource) Client() *httpclient.Client { return s.client }

type bridgeMedia struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Video    bool   `json:"video"`
}

type bridgeMessage struct {
	ID        int64        `json:"id"`
	Channel   string       `json:"channel"`
	Text      string       `json:"text"`
	GroupedID int64        `json:"grouped_id"`
	Date      int64        `json:"date"`
	Media     *bridgeMedia `json:"media"`
}

type bridgeHistoryResponse struct {
	Messages []bridgeMessage `json:"messages"`
}

type bridgeUpdate struct {
	UpdateID   int64          `json:"update_id"`
	Type       string         `json:"type"`
	Channel    string         `json:"channel"`
	Message    *bridgeMessage `json:"message"`
	MessageIDs []int64        `json:"message_ids"`
}

type bridgeUpdatesResponse struct {
	Updates    []bridgeUpdate `json:"updates"`
	NextOffset int64          `json:"next_offset"`
}

func (m bridgeMessage) toMessage(channelID string) Message {
	msg := Message{
		ChannelID: channelID,
		ID:        m.ID,
		Text:      m.Text,
		GroupID:   m.GroupedID,
	}
	if m.Date > 0 {
		msg.Date = time.Unix(m.Date, 0).UTC()
	}
	if m.Media != nil {
		msg.Media = &Media{
			Kind:              mediaKind(m.Media.Type),
			MimeType:          m.Media.MimeType,
			FileName:          m.Media.FileName,
			Size:              m.Media.Size,
			HasVideoAttribute: m.Media.Video,
		}
	}
	return msg
}

func mediaKind(s string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return MediaKindNone
	case "video", "video_file", "animation", "round":
		return MediaKindVideo
	case "document", "file":
		return MediaKindDocument
	case "photo":
		return MediaKindPhoto
	case "audio", "audio_file", "voice", "voice_message":
		return MediaKindAudio
	default:
		return MediaKindOther
	}
}

// History implements Source. It pages backwards through the channel until
// opts.Limit messages are collected or MinID is reached.
func (s *BridgeSource) History(ctx context.Context, channelID string, opts HistoryOptions) ([]Message, error) {
	var out []Message
	var maxID int64

	for {
		want := s.pageSize
		if opts.Limit > 0 && opts.Limit-len(out) < want {
			want = opts.Limit - len(out)
		}
		if want <= 0 {
			return out, nil
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(want))
		if opts.MinID > 0 {
			q.Set("min_id", strconv.FormatInt(opts.MinID, 10))
		}
		if maxID > 0 {
			q.Set("max_id", strconv.FormatInt(maxID, 10))
		}

		var page bridgeHistoryResponse
		if err := s.get(ctx, s.client, "/channels/"+channelID+"/messages", q, &page); err != nil {
			return nil, s.mapError(channelID, err)
		}

		for _, m := range page.Messages {
			if m.ID <= opts.MinID || (maxID > 0 && m.ID >= maxID) {
				continue
			}
			out = append(out, m.toMessage(channelID))
		}
		if len(page.Messages) < want {
			return out, nil
		}

		last := page.Messages[len(page.Messages)-1].ID
		if maxID > 0 && last >= maxID {
			// The bridge ignored max_id; stop rather than loop.
			return out, nil
		}
		maxID = last
	}
}

// Subscribe implements Source by long-polling the bridge for updates.
// Transport errors are logged and retried after a pause.
func (s *BridgeSource) Subscribe(ctx context.Context, channelIDs []string, handler EventHandler) error {
	var offset int64
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}

		q := url.Values{}
		q.Set("channels", strings.Join(channelIDs, ","))
		q.Set("offset", strconv.FormatInt(offset, 10))
		q.Set("timeout", strconv.Itoa(int(s.pollWait/time.Second)))

		var resp bridgeUpdatesResponse
		if err := s.get(ctx, s.poll, "/updates", q, &resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WarnContext(ctx, "bridge update poll failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}
		backoff = time.Second

		for _, u := range resp.Updates {
			ev, ok := u.toEvent()
			if !ok {
				s.logger.DebugContext(ctx, "ignoring bridge update",
					slog.String("type", u.Type),
					slog.Int64("update_id", u.UpdateID),
				)
				continue
			}
			if err := handler(ctx, ev); err != nil {
				s.logger.ErrorContext(ctx, "handling live event failed",
					slog.String("channel_id", ev.ChannelID),
					slog.String("kind", string(ev.Kind)),
					slog.String("error", err.Error()),
				)
			}
		}
		if resp.NextOffset > offset {
			offset = resp.NextOffset
		}
	}
}

func (u bridgeUpdate) toEvent() (Event, bool) {
	switch u.Type {
	case "new_message":
		if u.Message == nil {
			return Event{}, false
		}
		msg := u.Message.toMessage(u.Channel)
		return Event{Kind: EventNewMessage, ChannelID: u.Channel, Message: &msg}, true
	case "deleted", "delete_messages":
		if len(u.MessageIDs) == 0 {
			return Event{}, false
		}
		return Event{Kind: EventDeleted, ChannelID: u.Channel, MessageIDs: u.MessageIDs}, true
	default:
		return Event{}, false
	}
}

func (s *BridgeSource) get(ctx context.Context, client *httpclient.Client, path string, q url.Values, v any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *s.base
	u.Path = s.base.Path + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return client.DoJSON(ctx, req, v)
}

func (s *BridgeSource) mapError(channelID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

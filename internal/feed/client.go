package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.brawlstars.com/v1"
	DefaultTimeout = 10 * time.Second
	DefaultWindow  = 25
)

var clientLogger = logging.GetZeroLogger("feed::client", nil)

type ClientConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	Window        int
	RatePerSecond float64
	Burst         int
}

// Client calls the battle log endpoint. Every call is bounded by
// ClientConfig.Timeout and throttled by a shared token bucket.
type Client struct {
	http    *http.Client
	cfg     ClientConfig
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) FetchRecentHistory(ctx context.Context, tag string) ([]bracket.HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.Metrics.FeedRequest("throttled")
		return nil, errors.Wrapf(bracket.ErrFeedUnavailable, "rate limit: %v", err)
	}

	endpoint := fmt.Sprintf("%s/players/%%23%s/battlelog", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(cleanTag(tag)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(bracket.ErrFeedUnavailable, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.Metrics.FeedRequest("error")
		clientLogger.Warn().Err(err).Str(logging.TagKey, tag).Msg("Battle log request failed.")
		return nil, errors.Wrapf(bracket.ErrFeedUnavailable, "request: %v", err)
	}
	defer resp.Body.Close()

	metrics.Metrics.FeedRequest(strconv.Itoa(resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		clientLogger.Warn().Int("status", resp.StatusCode).Str(logging.TagKey, tag).Msg("Battle log request rejected.")
		return nil, errors.Wrapf(bracket.ErrFeedUnavailable, "status %d", resp.StatusCode)
	}

	var log battleLog
	if err := jsoniter.NewDecoder(resp.Body).Decode(&log); err != nil {
		return nil, errors.Wrapf(bracket.ErrFeedUnavailable, "decode battle log: %v", err)
	}

	entries := log.toEntries(c.cfg.Window)
	clientLogger.Debug().Str(logging.TagKey, tag).Int("entries", len(entries)).Msg("Battle log fetched.")
	return entries, nil
}

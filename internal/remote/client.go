// Package remote is the HTTP client for the ChannelBrief backend. Only the
// request/response contract lives here; the orchestrator decides what to do
// with failures (fall back to cache) and the repository decides how results
// are merged.
package remote

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/errors"
	"github.com/channelbriefapp/channelbrief-engine/internal/ratelimit"
)

const (
	// Rate limit: the backend throttles per device token.
	defaultRPS   = 2.0
	defaultBurst = 4

	defaultTimeout = 30 * time.Second
)

// API is the remote contract the sync orchestrator consumes.
type API interface {
	FetchVideoSummaries(ctx context.Context, q SummariesQuery) (*SummariesPage, error)
	FetchUserChannels(ctx context.Context, userID string) ([]domain.ChannelRecord, error)
}

// SummariesQuery selects which summaries to fetch. A zero Since asks for the
// newest page (full sync); a non-zero Since asks only for records created
// after it (incremental sync).
type SummariesQuery struct {
	Since     time.Time
	Limit     int
	Paginated bool
	Cursor    string
}

// SummariesPage is one page of video summaries, newest first.
type SummariesPage struct {
	Videos     []domain.VideoRecord `json:"videos"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    jsontext.Value `json:"data,omitempty"`
}

// Config holds client settings.
type Config struct {
	BaseURL           string
	APIToken          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client is a rate-limited ChannelBrief backend client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *ratelimit.KeyedLimiter
	logger  *slog.Logger
}

// New creates a backend client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		logger:  logger,
	}
}

// FetchVideoSummaries fetches one page of video summary records.
func (c *Client) FetchVideoSummaries(ctx context.Context, q SummariesQuery) (*SummariesPage, error) {
	query := url.Values{}
	if !q.Since.IsZero() {
		query.Set("since", strconv.FormatInt(q.Since.UnixMilli(), 10))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Paginated {
		query.Set("paginated", "true")
	}
	if q.Cursor != "" {
		query.Set("cursor", q.Cursor)
	}

	body, err := c.doRequest(ctx, "/v1/videos/summaries", query)
	if err != nil {
		return nil, err
	}

	var page SummariesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.RemoteFetchFailed("undecodable summaries response").WithCause(err)
	}
	return &page, nil
}

// FetchUserChannels fetches the user's subscribed channels.
func (c *Client) FetchUserChannels(ctx context.Context, userID string) ([]domain.ChannelRecord, error) {
	query := url.Values{}
	query.Set("userId", userID)

	body, err := c.doRequest(ctx, "/v1/channels", query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Channels []domain.ChannelRecord `json:"channels"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.RemoteFetchFailed("undecodable channels response").WithCause(err)
	}
	return payload.Channels, nil
}

// doRequest executes a rate-limited GET against the backend and unwraps the
// response envelope. Every failure mode, transport error, non-2xx status,
// and success:false envelope alike, comes back as REMOTE_FETCH_FAILED, which
// is the one signal the orchestrator acts on.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	// One bucket per endpoint: a long summaries backfill must not delay
	// the channel listing call a full sync needs next.
	if err := c.limiter.Wait(ctx, path); err != nil {
		return nil, errors.RemoteFetchFailed("rate limit wait interrupted").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.RemoteFetchFailed("create request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ChannelBrief-Engine/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("backend request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.RemoteFetchFailed("execute request").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.RemoteFetchFailed("read response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.RemoteFetchFailedf("backend returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.RemoteFetchFailed("undecodable response envelope").WithCause(err)
	}
	if !env.Success {
		// The contract treats success:false exactly like a transport error.
		return nil, errors.RemoteFetchFailedf("backend error: %s", env.Error)
	}
	return env.Data, nil
}

var _ API = (*Client)(nil)

// String formats the query for logs without leaking the token.
func (q SummariesQuery) String() string {
	if q.Since.IsZero() {
		return fmt.Sprintf("full limit=%d", q.Limit)
	}
	return fmt.Sprintf("incremental since=%s limit=%d", q.Since.Format(time.RFC3339), q.Limit)
}

package jamendo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"streamfinder/config"
	"streamfinder/metrics"
	"streamfinder/models"
	"streamfinder/sentryhelper"
)

const (
	// maxLimit is the largest page Jamendo will return.
	maxLimit       = 200
	maxBodySize    = 1 << 20
	defaultBackoff = 250 * time.Millisecond
	audioFormat    = "mp32"
)

var errBadStatus = errors.New("unexpected status")

type Options struct {
	BaseURL    string
	ClientID   string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client talks to the Jamendo v3 tracks endpoint. It is safe for concurrent
// use; the http.Client and limiter are shared by every in-flight call.
type Client struct {
	baseURL    string
	clientID   string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

type responseHeaders struct {
	Status       string `json:"status"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"error_message"`
	ResultsCount int    `json:"results_count"`
}

type tracksResponse struct {
	Headers responseHeaders    `json:"headers"`
	Results []models.Candidate `json:"results"`
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		clientID:   opts.ClientID,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    opts.Metrics,
	}
}

func NewFromConfig(m *metrics.Metrics) *Client {
	cfg := config.Config.Jamendo
	return New(Options{
		BaseURL:    cfg.APIURL,
		ClientID:   cfg.ClientID,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		Metrics:    m,
	})
}

// SearchByText returns up to limit candidates for a free-text query. Any
// failure (transport, timeout, status, payload) yields an empty slice; there
// is deliberately no error return.
func (c *Client) SearchByText(ctx context.Context, query string, limit int) []models.Candidate {
	logger := log.WithFields(log.Fields{"module": "jamendo", "function": "SearchByText"})

	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Candidate{}
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	span := sentryhelper.StartSpan(ctx, "jamendo.search")
	span.Description = "Search Jamendo tracks"
	span.SetTag("query", query)
	defer span.Finish()

	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))

	candidates, err := c.fetch(span.Context(), params)
	if err != nil {
		c.absorb(span.Context(), logger, "search", err)
		span.Status = sentry.SpanStatusInternalError
		return []models.Candidate{}
	}

	if len(candidates) == 0 {
		c.metrics.RecordCatalogRequest("search", "empty")
	} else {
		c.metrics.RecordCatalogRequest("search", "ok")
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("results_count", len(candidates))
	logger.Tracef("found %d candidates for %q", len(candidates), query)
	return candidates
}

// LookupByID re-fetches a track to get a fresh audio URL. The boolean is false
// when the id is unknown, the track has no audio, or the call failed.
func (c *Client) LookupByID(ctx context.Context, id string) (models.Candidate, bool) {
	logger := log.WithFields(log.Fields{"module": "jamendo", "function": "LookupByID", "track_id": id})

	id = strings.TrimSpace(id)
	if id == "" {
		return models.Candidate{}, false
	}

	span := sentryhelper.StartSpan(ctx, "jamendo.lookup")
	span.Description = "Look up Jamendo track by id"
	span.SetTag("track_id", id)
	defer span.Finish()

	params := url.Values{}
	params.Set("id", id)
	params.Set("limit", "1")

	candidates, err := c.fetch(span.Context(), params)
	if err != nil {
		c.absorb(span.Context(), logger, "lookup", err)
		span.Status = sentry.SpanStatusInternalError
		return models.Candidate{}, false
	}

	if len(candidates) == 0 || !candidates[0].Usable() {
		c.metrics.RecordCatalogRequest("lookup", "empty")
		span.Status = sentry.SpanStatusNotFound
		logger.Debug("no playable track for id")
		return models.Candidate{}, false
	}

	c.metrics.RecordCatalogRequest("lookup", "ok")
	span.Status = sentry.SpanStatusOK
	return candidates[0], true
}

// absorb logs, reports and counts a failure that callers will only ever see
// as an empty result.
func (c *Client) absorb(ctx context.Context, logger *log.Entry, operation string, err error) {
	status := "error"
	switch {
	case errors.Is(err, context.Canceled):
		status = "canceled"
		logger.Debugf("request canceled: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
		logger.Warnf("request timed out: %v", err)
		sentryhelper.CaptureException(ctx, err)
	default:
		logger.Warnf("request failed: %v", err)
		sentryhelper.CaptureException(ctx, err)
	}
	c.metrics.RecordCatalogRequest(operation, status)
}

// fetch runs the request with rate limiting and bounded retries. Only
// transport errors, 429 and 5xx are retried.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]models.Candidate, error) {
	params.Set("client_id", c.clientID)
	params.Set("format", "json")
	params.Set("audioformat", audioFormat)
	endpoint := c.baseURL + "/tracks/?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		candidates, retryable, err := c.do(ctx, endpoint)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
		log.WithFields(log.Fields{"module": "jamendo", "attempt": attempt + 1}).Debugf("retrying: %v", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint string) ([]models.Candidate, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", models.ErrCatalogUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("%w: jamendo returned %w %d", models.ErrCatalogUnavailable, errBadStatus, resp.StatusCode)
	}

	var payload tracksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		if attemptCtx.Err() != nil {
			return nil, true, attemptCtx.Err()
		}
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	if payload.Headers.Status != "success" {
		return nil, false, fmt.Errorf("%w: jamendo error %d: %s",
			models.ErrCatalogUnavailable, payload.Headers.Code, payload.Headers.ErrorMessage)
	}

	if payload.Results == nil {
		return []models.Candidate{}, false, nil
	}
	return payload.Results, false, nil
}

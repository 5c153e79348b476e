// Package request provides an HTTP client with per-provider serial queues,
// response caching and exponential backoff. External services (OneMap, sheet
// feeds) are fragile and rate-limited; serializing per provider keeps the bot
// a polite client.
package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nearbybot/pkg/cache"
	"nearbybot/pkg/logging"
	"nearbybot/pkg/tracker"
	"nearbybot/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("NearbyBot/%s", version.Version)

// ClientConfig tunes timeouts and retry behaviour. Zero values fall back to
// the defaults.
type ClientConfig struct {
	Retries   int
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Client handles HTTP requests with queuing, caching, and tracking.
type Client struct {
	httpClient  *http.Client
	cache       cache.Cacher
	tracker     *tracker.Tracker
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(c cache.Cacher, t *tracker.Tracker, cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		cache:       c,
		tracker:     t,
		maxAttempts: cfg.Retries,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		queues:      make(map[string]chan job),
	}
}

// Get performs a GET request with queuing and caching if key is provided.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	// 1. Check Cache (Only if key is provided)
	if cacheKey != "" {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(provider)
			slog.Debug("Cache Hit", "provider", provider, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackCacheMiss(provider)
		slog.Debug("Cache Miss", "provider", provider, "key", cacheKey)
	}

	// 2. Enqueue Request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	j := job{req: req, headers: headers, cacheKey: cacheKey, respChan: respChan}

	c.dispatch(provider, j)

	// 3. Wait for Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// Post performs a POST request with queuing.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	j := job{req: req, headers: map[string]string{"Content-Type": contentType}, respChan: respChan}

	c.dispatch(provider, j)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	if strings.HasSuffix(host, "onemap.gov.sg") {
		return "onemap"
	}
	if strings.HasSuffix(host, "opensheet.elk.sh") {
		return "sheet"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[provider]
	if !ok {
		// Create new queue and start worker
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}

	// We block here if the queue is full, effectively throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		// Check context before processing
		if j.req.Context().Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", j.req.Context().Err())
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		// Apply User-Agent (Default if not provided)
		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		body, err := c.executeWithBackoff(j.req)

		if err == nil {
			c.tracker.TrackAPISuccess(provider)
			// Cache result (Only if key is provided)
			if j.cacheKey != "" {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body); err != nil {
					slog.Error("Failed to cache response", "url", j.req.URL, "error", err)
				}
			}
		} else {
			c.tracker.TrackAPIFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}

		// Hardcoded safety gap to prevent hitting rate limits
		time.Sleep(100 * time.Millisecond)
	}
}

// executeWithBackoff attempts the request with exponential backoff on
// retryable transport errors (network failures, 429, 5xx).
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		// Verify context is still alive before dialing
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		if logging.RequestLogger != nil {
			logging.RequestLogger.Info("request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		}
		resp, err := c.httpClient.Do(req)

		if err != nil {
			// Check if the error is a context cancellation from OUR side
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}

			slog.Warn("Request failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
			if !c.sleepBackoff(req, attempt) {
				return nil, req.Context().Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			resp.Body.Close()
			slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			if !c.sleepBackoff(req, attempt) {
				return nil, req.Context().Err()
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("api error: status %d", resp.StatusCode)
		}

		// Success
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded")
}

// sleepBackoff waits for the exponential delay of the given attempt.
// Returns false if the request's context expired while waiting.
func (c *Client) sleepBackoff(req *http.Request, attempt int) bool {
	sleepDur := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	if sleepDur > c.maxDelay {
		sleepDur = c.maxDelay
	}
	select {
	case <-time.After(sleepDur):
		return true
	case <-req.Context().Done():
		return false
	}
}

package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/entrylog/internal/cache"
	"github.com/Tiliavir/entrylog/internal/normalize"
)

// Client talks to the entry-logging REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	normalizer *normalize.Normalizer
	cache      cache.Cache
	cacheTTL   time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the transport, typically the authenticated client from NewHTTPClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNormalizer sets the row normalizer used for fetched entries.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Client) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// WithCache caches single-page list responses for ttl.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// NewClient creates an API client for baseURL, e.g. "http://localhost:5000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		normalizer: normalize.New(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
}

func (r request) endpoint(base string) string {
	u := base + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

// send performs r and returns the body of a 2xx response. Any other outcome
// is a *FetchError.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.endpoint(c.baseURL), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", r.method, "path", r.path, "request_id", requestID, "error", err)
		return nil, transportError(err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	c.logger.Debug("api request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Message: "reading response body: " + err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

// sendCached is send with the list-page cache in front of it.
func (c *Client) sendCached(ctx context.Context, r request) ([]byte, error) {
	if c.cache == nil {
		return c.send(ctx, r)
	}
	key, err := cacheKey(r)
	if err != nil {
		return c.send(ctx, r)
	}
	if data, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug("cache hit", "path", r.path)
		return data, nil
	}
	data, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
	return data, nil
}

// invalidate drops cached pages after a mutation.
func (c *Client) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Purge(ctx); err != nil {
		c.logger.Warn("cache purge failed", "error", err)
	}
}

func cacheKey(r request) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%s %s?%s\n", r.method, r.path, r.query.Encode())
	if r.body != nil {
		if err := json.NewEncoder(h).Encode(r.body); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

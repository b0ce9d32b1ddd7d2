package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"kontor/internal/cache"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 200
)

// Config holds the connection settings for the backend API.
type Config struct {
	BaseURL   string
	Token     string // optional bearer token
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

// Client talks to the business-administration backend. Reads are served
// from a TTL cache when fresh; every mutating call clears the whole
// cache before it runs, so no read after a write can observe stale data.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *cache.TTLCache[json.RawMessage]
}

// New creates a client with a pooled transport. The cache is owned by
// the client; construct one client per application lifetime and share it.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: newHTTPClientWithPooling(cfg.Timeout),
		cache:      cache.NewTTLCache[json.RawMessage](cfg.CacheSize, cfg.CacheTTL),
	}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection
// pooling, proper timeouts, and keep-alive settings.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableKeepAlives: false,
		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Cache exposes the client's cache for lifecycle management (periodic
// cleanup via cache.Manager) and for external invalidation.
func (c *Client) Cache() *cache.TTLCache[json.RawMessage] {
	return c.cache
}

// ClearCache drops every cached read.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// cacheKey builds the canonical cache key for a read: the endpoint path
// plus the query parameters serialized with sorted keys, so two
// logically equal requests always map to the same entry.
func cacheKey(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}

// getJSON performs a cached GET and decodes the unwrapped payload into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	key := cacheKey(path, params)
	if raw, ok := c.cache.Get(key); ok {
		slog.DebugContext(ctx, "API cache hit", "key", key)
		if err := json.Unmarshal(raw, out); err != nil {
			return clientError(fmt.Errorf("decode cached payload: %w", err))
		}
		return nil
	}

	raw, err := c.doBody(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}

	c.cache.Set(key, raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return clientError(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

// postJSON clears the cache, POSTs body and decodes the response into
// out (which may be nil when the response payload is irrelevant).
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.mutate(ctx, http.MethodPost, path, body, out)
}

func (c *Client) putJSON(ctx context.Context, path string, body, out any) error {
	return c.mutate(ctx, http.MethodPut, path, body, out)
}

// deleteJSON clears the cache and issues a DELETE. body is optional
// (bulk delete sends one).
func (c *Client) deleteJSON(ctx context.Context, path string, body any) error {
	return c.mutate(ctx, http.MethodDelete, path, body, nil)
}

func (c *Client) mutate(ctx context.Context, method, path string, body, out any) error {
	// Wholesale invalidation on every write, regardless of entity.
	c.cache.Clear()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return clientError(fmt.Errorf("encode request body: %w", err))
		}
		payload = bytes.NewReader(data)
	}

	raw, err := c.doBody(ctx, method, path, nil, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return clientError(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

// doBody performs a single HTTP attempt and translates the outcome into
// the three-way error taxonomy: server errors surface the backend's own
// message, transport failures surface the fixed connectivity message,
// everything before the wire surfaces the fixed generic message.
func (c *Client) doBody(ctx context.Context, method, path string, params url.Values, body io.Reader) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, clientError(fmt.Errorf("build request URL: %w", err))
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, clientError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request was sent (or dialing attempted) and no response
		// came back.
		return nil, connectivityError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectivityError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serverError(resp.StatusCode, extractServerMessage(data), nil)
	}

	return unwrapEnvelope(data), nil
}

// download performs an uncached GET for binary payloads (exports) and
// returns the raw body plus its content type.
func (c *Client) download(ctx context.Context, path string, params url.Values) ([]byte, string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, "", clientError(fmt.Errorf("build request URL: %w", err))
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", clientError(fmt.Errorf("build request: %w", err))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", connectivityError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", connectivityError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", serverError(resp.StatusCode, extractServerMessage(data), nil)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// unwrapEnvelope accepts both response shapes the backend produces:
// a {"data": X} envelope or a bare X payload.
func unwrapEnvelope(data []byte) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return data
}

// extractServerMessage pulls the human-readable message out of an error
// payload. The backend uses "message", older endpoints use "error".
func extractServerMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return ""
}

// Package httpjson is the JSON-over-HTTP client shared by the venue and
// registry adapters.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

var (
	ErrNotFound    = errors.New("remote resource not found")
	ErrBadStatus   = errors.New("unexpected response status")
	ErrMissingPath = errors.New("field missing from response")
)

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	BurstSize         int
	ApiKey            string
	Logger            *slog.Logger
}

// Client issues JSON requests against a base URL. Reads are retried with
// backoff; writes are sent exactly once. All requests share one rate limit.
type Client struct {
	baseURL *url.URL
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
	limiter *rate.Limiter
	apiKey  string
}

func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.BurstSize
	if burst <= 0 {
		burst = 1
	}

	newClient := func(retries int) *retryablehttp.Client {
		c := retryablehttp.NewClient()
		c.RetryMax = retries
		c.RetryWaitMin = 100 * time.Millisecond
		c.RetryWaitMax = 2 * time.Second
		c.Backoff = retryablehttp.LinearJitterBackoff
		c.HTTPClient.Timeout = opts.Timeout
		c.Logger = logger
		c.ErrorHandler = retryablehttp.PassthroughErrorHandler
		return c
	}

	return &Client{
		baseURL: u,
		reads:   newClient(opts.MaxRetries),
		writes:  newClient(0),
		limiter: rate.NewLimiter(limit, burst),
		apiKey:  opts.ApiKey,
	}, nil
}

// URL returns the client's base URL.
func (c *Client) URL() string { return c.baseURL.String() }

// Get fetches path and returns the parsed JSON body.
func (c *Client) Get(ctx context.Context, path string) (gjson.Result, error) {
	return c.do(ctx, c.reads, http.MethodGet, path, nil)
}

// Post sends body as JSON to path and returns the parsed JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (gjson.Result, error) {
	return c.do(ctx, c.writes, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, client *retryablehttp.Client, method, path string, body any) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("doing request: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return gjson.Result{}, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return gjson.Result{}, fmt.Errorf("%w: %s, body: %s", ErrBadStatus, res.Status, string(data))
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON body", ErrBadStatus)
	}
	return gjson.ParseBytes(data), nil
}

// Field looks up path in doc and fails when it is absent.
func Field(doc gjson.Result, path string) (gjson.Result, error) {
	v := doc.Get(path)
	if !v.Exists() {
		return v, fmt.Errorf("%w: %s", ErrMissingPath, path)
	}
	return v, nil
}

// Package client talks to a running chart daemon over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"dfchart/pkg/fault"
	"dfchart/pkg/monitor"
)

const (
	defaultRetryMax     = 3
	defaultRetryWaitMin = 200 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
	defaultTimeout      = 60 * time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4096
)

// Options tune the transport. Zero values pick the defaults.
type Options struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// Client calls the /chart, /extrema and /mounts endpoints.
type Client struct {
	base   string
	http   *retryablehttp.Client
	logger zerolog.Logger
}

// StatusError is a non-200 answer from the daemon. Client errors unwrap to
// the failure kind named in the body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "daemon returned status " + http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("daemon returned status %s: %s", http.StatusText(e.StatusCode), e.Body)
}

// Unwrap maps a 400 answer back to its sentinel.
func (e *StatusError) Unwrap() error {
	if e.StatusCode != http.StatusBadRequest {
		return nil
	}
	for _, sentinel := range []error{fault.ErrNoData, fault.ErrInvalidWindow, fault.ErrInvalidParameter} {
		if strings.HasPrefix(e.Body, sentinel.Error()) {
			return sentinel
		}
	}
	return fault.ErrInvalidParameter
}

// ChartInfo describes a downloaded chart.
type ChartInfo struct {
	ContentType string
	Cached      bool
	Size        int64
}

// New creates a client for the daemon at base, e.g. "http://localhost:8080".
func New(base string, opts Options, logger zerolog.Logger) (*Client, error) {
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: daemon address %q is not an absolute URL", fault.ErrInvalidParameter, base)
	}

	if opts.RetryMax <= 0 {
		opts.RetryMax = defaultRetryMax
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = defaultRetryWaitMin
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = defaultRetryWaitMax
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   newRetryableClient(opts),
		logger: logger,
	}, nil
}

func newRetryableClient(opts Options) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil
	client.CheckRetry = retryConnectionErrors
	return client
}

// retryConnectionErrors retries only when no response arrived. Any status,
// including 5xx, is returned to the caller as is.
func retryConnectionErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	if err != nil {
		return true, nil //nolint:nilerr // the final error is reported by retryablehttp
	}
	return false, nil
}

func query(req monitor.Request) url.Values {
	values := url.Values{}
	values.Set("mntpt", req.Mount)
	for key, value := range map[string]string{
		"pivot": req.Pivot,
		"delta": req.Delta,
		"agg":   req.Agg,
		"limit": req.Limit,
	} {
		if value != "" {
			values.Set(key, value)
		}
	}
	return values
}

func (c *Client) get(ctx context.Context, path string, values url.Values) (*http.Response, error) {
	target := c.base + path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", target).Msg("Daemon request failed")
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: errorMessage(body)}
}

// errorMessage extracts the text of a plain or {"error": ...} body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

// Chart streams the chart selected by req into w.
func (c *Client) Chart(ctx context.Context, req monitor.Request, w io.Writer) (*ChartInfo, error) {
	resp, err := c.get(ctx, "/chart", query(req))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart: %w", err)
	}

	return &ChartInfo{
		ContentType: resp.Header.Get("Content-Type"),
		Cached:      resp.Header.Get("X-Cache") == "HIT",
		Size:        written,
	}, nil
}

// Extrema returns the ranked rows selected by req.
func (c *Client) Extrema(ctx context.Context, req monitor.Request) (*monitor.ExtremaResult, error) {
	resp, err := c.get(ctx, "/extrema", query(req))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result monitor.ExtremaResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode extrema: %w", err)
	}
	return &result, nil
}

// Mounts lists the mounts known to the daemon.
func (c *Client) Mounts(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, "/mounts", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var payload struct {
		Mounts []string `json:"mounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode mounts: %w", err)
	}
	return payload.Mounts, nil
}

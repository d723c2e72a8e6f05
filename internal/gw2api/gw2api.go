// Package gw2api provides a client for the Guild Wars 2 API.
//
// The client is the single point of remote I/O for the engine.
// All requests run through one shared concurrency gate and rate
// limiter (see [RateLimiter]) and failures are reported through a
// small error taxonomy: [ErrUnauthorized], [ErrThrottled],
// [ErrUnreachable] and [ErrMalformed].
package gw2api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the base URL of the official GW2 API.
	DefaultBaseURL = "https://api.guildwars2.com/v2"

	defaultThrottleRetries = 3
	defaultThrottleBackoff = 2 * time.Second
)

var (
	// ErrUnauthorized signals an invalid or expired API key. Never retried.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrThrottled signals that the API rate limit was exceeded and retries were exhausted.
	ErrThrottled = errors.New("throttled")
	// ErrUnreachable signals a transport level failure or server error after retries.
	ErrUnreachable = errors.New("unreachable")
	// ErrMalformed signals a response that could not be decoded.
	ErrMalformed = errors.New("malformed response")
)

// Client is a client for the GW2 API.
// It is safe for concurrent use.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	userAgent       string
	throttleRetries int
	throttleBackoff time.Duration
}

// Params are the arguments for creating a new client with [New].
type Params struct {
	// HTTPClient is the client used for all requests.
	// Use [NewHTTPClient] to obtain a rate limited one. Mandatory.
	HTTPClient *http.Client
	// BaseURL overrides [DefaultBaseURL]. Mainly useful for tests.
	BaseURL   string
	UserAgent string
	// ThrottleRetries is the number of retries after a throttling
	// response before [ErrThrottled] is surfaced.
	ThrottleRetries int
	// ThrottleBackoff is the wait between throttled attempts when the
	// server does not send a Retry-After header.
	ThrottleBackoff time.Duration
}

// New returns a new client. It panics when no http client is given.
func New(args Params) *Client {
	if args.HTTPClient == nil {
		panic("gw2api: http client can not be nil")
	}
	c := &Client{
		baseURL:         args.BaseURL,
		httpClient:      args.HTTPClient,
		userAgent:       args.UserAgent,
		throttleRetries: args.ThrottleRetries,
		throttleBackoff: args.ThrottleBackoff,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.throttleRetries <= 0 {
		c.throttleRetries = defaultThrottleRetries
	}
	if c.throttleBackoff <= 0 {
		c.throttleBackoff = defaultThrottleBackoff
	}
	return c
}

// get fetches a JSON resource and decodes it into out.
// An empty key makes an unauthenticated request.
// Throttling responses are retried with backoff up to the configured bound.
func (c *Client) get(ctx context.Context, path string, key string, out any) error {
	url := c.baseURL + path
	for attempt := 0; ; attempt++ {
		retryAfter, err := c.getOnce(ctx, url, key, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrThrottled) || attempt >= c.throttleRetries {
			return fmt.Errorf("get %s: %w", path, err)
		}
		wait := c.throttleBackoff
		if retryAfter > 0 {
			wait = retryAfter
		}
		slog.Warn("GW2 API throttled. Retrying", "path", path, "wait", wait, "attempt", attempt+1)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// getOnce makes one request. On a throttling response it also returns
// the server requested retry delay when there is one.
func (c *Client) getOnce(ctx context.Context, url string, key string, out any) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%s: %w", err, ErrUnreachable)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		// 206 means the server could only serve part of a requested id list
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("%s: %w", err, ErrMalformed)
		}
		return 0, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return 0, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return parseRetryAfterHeader(resp), ErrThrottled
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnreachable)
	default:
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("status %d: %w", resp.StatusCode, ErrMalformed)
	}
}

// parseRetryAfterHeader returns the value of a Retry-After header or 0.
func parseRetryAfterHeader(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	v, err := strconv.ParseInt(header, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return time.Second * time.Duration(v)
}

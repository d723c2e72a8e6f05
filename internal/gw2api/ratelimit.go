package gw2api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Defaults for the rate limiting transport. The GW2 API enforces both
// a burst and a sustained limit; staying at a steady 5 requests per
// second with a small burst keeps well below it.
const (
	DefaultMaxInFlight       = 10
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 10
	defaultTransportRetries  = 2
)

// RateLimiter is an [http.RoundTripper] that bounds the number of
// in-flight requests with a weighted semaphore and paces request
// starts with a token bucket. It is shared by all callers of the
// client so the limits hold globally, and is safe for concurrent use.
type RateLimiter struct {
	// Transport is the RoundTripper used to make requests.
	// http.DefaultTransport is used when nil.
	Transport http.RoundTripper

	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

var _ http.RoundTripper = (*RateLimiter)(nil)

// NewRateLimiter returns a new rate limiting transport.
// Zero or negative arguments select the package defaults.
func NewRateLimiter(transport http.RoundTripper, maxInFlight int, requestsPerSecond float64, burst int) *RateLimiter {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimiter{
		Transport: transport,
		sem:       semaphore.NewWeighted(int64(maxInFlight)),
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (rl *RateLimiter) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := rl.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer rl.sem.Release(1)
	start := time.Now()
	if err := rl.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if d := time.Since(start); d > time.Second {
		slog.Debug("Delayed request for rate limit", "url", req.URL, "delay", d)
	}
	transport := rl.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}

// NewHTTPClient returns the http client used for all API requests:
// a retrying client for transport failures and server errors, layered
// on top of a [RateLimiter] shared by every request.
//
// Transport failures and 5xx responses are retried immediately up to
// transportRetries times. Throttling and authorization responses are
// never retried here; the [Client] handles throttling with backoff and
// surfaces authorization failures unchanged.
func NewHTTPClient(rl *RateLimiter, timeout time.Duration, transportRetries int) *http.Client {
	if rl == nil {
		rl = NewRateLimiter(nil, 0, 0, 0)
	}
	if transportRetries < 0 {
		transportRetries = defaultTransportRetries
	}
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = transportRetries
	rc.HTTPClient = &http.Client{Transport: rl, Timeout: timeout}
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}
	// transport failures are retried without artificial delay
	rc.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		return 0
	}
	rc.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		level := slog.LevelDebug
		if resp.StatusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Default().Log(resp.Request.Context(), level, "HTTP response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode,
		)
	}
	return rc.StandardClient()
}

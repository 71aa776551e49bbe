package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"neotask/internal/shared"
	"neotask/pkg/retry"
)

// Client wraps http.Client with logging and retries of idempotent requests.
type Client struct {
	hc      *stdhttp.Client
	log     *slog.Logger
	retry   retry.Config
	headers map[string]string
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetries enables n retries with exponential backoff starting at backoff.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxAttempts = n + 1
		if backoff > 0 {
			c.retry.InitialDelay = backoff
		}
	}
}

// WithHeaders adds default headers to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// New creates configured Client. Retries are off unless WithRetries is given.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConnsPerHost = 16
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 10 * time.Second

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 1
	cfg.InitialDelay = 200 * time.Millisecond
	cfg.MaxDelay = 10 * time.Second

	c := &Client{
		hc:      &stdhttp.Client{Timeout: 15 * time.Second, Transport: tr},
		log:     slog.Default(),
		retry:   cfg,
		headers: map[string]string{"User-Agent": "neotask"},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StatusError reports a response whose status made the request fail.
type StatusError struct {
	Method     string
	URL        string
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*stdhttp.Response, error) {
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	return c.Do(ctx, req)
}

// Do sends req. GET, HEAD and OPTIONS without a body are retried on transport
// errors and on 408, 429 and 5xx responses; other requests get a single attempt.
// A response is returned for any status that is not retried; exhausted retries
// yield an error marked as a dependency failure.
func (c *Client) Do(ctx context.Context, req *stdhttp.Request) (*stdhttp.Response, error) {
	cfg := c.retry
	if !idempotent(req) {
		cfg.MaxAttempts = 1
	}
	u := redact(req.URL)
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.Warn("http request retry", slog.String("method", req.Method), slog.String("url", u),
			slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("error", err))
	}
	cfg.RetryAfter = func(err error) time.Duration {
		var se *StatusError
		if errors.As(err, &se) {
			return se.RetryAfter
		}
		return 0
	}

	var resp *stdhttp.Response
	attempt := 0
	err := retry.DoWithRetryable(ctx, cfg, func(ctx context.Context) error {
		attempt++
		r := req.Clone(ctx)
		for k, v := range c.headers {
			if r.Header.Get(k) == "" {
				r.Header.Set(k, v)
			}
		}
		st := time.Now()
		res, err := c.hc.Do(r)
		if err != nil {
			return err
		}
		c.log.Debug("http request", slog.String("method", r.Method), slog.String("url", u),
			slog.Int("status", res.StatusCode), slog.Duration("dur", time.Since(st)), slog.Int("attempt", attempt))
		if retryableStatus(res.StatusCode) && attempt < cfg.MaxAttempts {
			se := &StatusError{Method: r.Method, URL: u, Code: res.StatusCode, RetryAfter: retryAfter(res.Header.Get("Retry-After"))}
			drainAndClose(res.Body)
			return se
		}
		resp = res
		return nil
	}, retryable)
	if err != nil {
		if shared.IsCanceled(err) {
			return nil, err
		}
		return nil, shared.MarkKind(err, shared.KindDependencyFailure)
	}
	return resp, nil
}

func idempotent(req *stdhttp.Request) bool {
	switch req.Method {
	case stdhttp.MethodGet, stdhttp.MethodHead, stdhttp.MethodOptions:
		return req.Body == nil || req.Body == stdhttp.NoBody
	}
	return false
}

func retryableStatus(code int) bool {
	return code == stdhttp.StatusRequestTimeout || code == stdhttp.StatusTooManyRequests || code >= 500
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	return retry.DefaultRetryable(err)
}

// retryAfter parses Retry-After header value.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if t, err := stdhttp.ParseTime(h); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func redact(u *url.URL) string {
	return u.Redacted()
}

// drainAndClose drains up to 512KB from body and closes it.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, b, 512<<10)
	_ = b.Close()
}

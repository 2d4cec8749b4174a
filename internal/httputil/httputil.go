// Package httputil provides the retrying JSON HTTP client shared by the external collaborators.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/internal/logx"
	"golang.org/x/time/rate"
)

// DefaultRetryStatuses are the response codes treated as transient.
var DefaultRetryStatuses = []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout}

// RetryableError marks a failure that was retried until the attempts ran out.
type RetryableError struct {
	StatusCode int // zero for transport errors
	Attempts   int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("giving up after %d attempts: status %d: %v", e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response that was not retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == code
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return re.StatusCode == code
	}
	return false
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	HTTPClient    *http.Client
	Retries       int           // retries after the first attempt
	Backoff       time.Duration // first retry delay, doubled per retry
	Timeout       time.Duration
	RetryStatuses []int
	Limiter       *rate.Limiter // optional pacing of every attempt
	Logger        *log.Logger
}

// Client sends JSON requests with retry on transient failures.
type Client struct {
	http          *http.Client
	retries       int
	backoff       time.Duration
	retryStatuses map[int]struct{}
	limiter       *rate.Limiter
	logger        *log.Logger
}

// New creates a client from opts.
func New(opts Options) *Client {
	c := &Client{
		http:          opts.HTTPClient,
		retries:       opts.Retries,
		backoff:       opts.Backoff,
		retryStatuses: make(map[int]struct{}),
		limiter:       opts.Limiter,
		logger:        opts.Logger,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.backoff <= 0 {
		c.backoff = 200 * time.Millisecond
	}
	statuses := opts.RetryStatuses
	if statuses == nil {
		statuses = DefaultRetryStatuses
	}
	for _, code := range statuses {
		c.retryStatuses[code] = struct{}{}
	}
	if c.logger == nil {
		c.logger = logx.Discard()
	}
	return c
}

// Request describes one HTTP call. Body is resent on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Do sends the request, retrying transport errors and retry statuses with exponential backoff.
// The caller owns the returned response body.
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	delay := c.backoff
	var lastErr *RetryableError

	for attempt := 1; attempt <= c.retries+1; attempt++ {
		if attempt > 1 {
			c.logger.Debug("Retrying request", "url", r.URL, "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bodyReader(r.Body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range r.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if r.Body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &RetryableError{Attempts: attempt, Err: err}
			continue
		}
		if _, retry := c.retryStatuses[resp.StatusCode]; retry {
			body := readSnippet(resp)
			lastErr = &RetryableError{StatusCode: resp.StatusCode, Attempts: attempt, Err: errors.New(body)}
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// DoJSON sends the request and decodes a 2xx JSON response into out (when non-nil).
// Other statuses become a *StatusError.
func (c *Client) DoJSON(ctx context.Context, r Request, out any) (http.Header, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, &StatusError{StatusCode: resp.StatusCode, Body: readSnippet(resp)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.Header, fmt.Errorf("decode response from %s: %w", r.URL, err)
	}
	return resp.Header, nil
}

// GetJSON is DoJSON for a GET request.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) (http.Header, error) {
	return c.DoJSON(ctx, Request{Method: http.MethodGet, URL: url, Header: header}, out)
}

// PostJSON encodes payload and sends it as a POST request.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, payload, out any) (http.Header, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.DoJSON(ctx, Request{Method: http.MethodPost, URL: url, Header: header, Body: body}, out)
}

func bodyReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}

// readSnippet drains and closes a response body, keeping its first bytes for error messages.
func readSnippet(resp *http.Response) string {
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_, _ = io.Copy(io.Discard, resp.Body)
	return string(bytes.TrimSpace(b))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

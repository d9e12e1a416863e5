// Package httpclient builds the retrying HTTP client shared by the prober,
// discovery and the catalog runtimes.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultUserAgent is sent when neither the config nor the provider sets one
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodySize caps how much of a response body is read
const maxBodySize = 8 << 20

// Options controls retries and timeouts
type Options struct {
	// Attempts is the total number of tries, the first one included
	Attempts int
	// Timeout bounds a single attempt
	Timeout time.Duration
	// Backoff is the wait before the first retry; each later retry waits one more step
	Backoff   time.Duration
	UserAgent string
}

// DefaultOptions returns 3 attempts, 15s per attempt and a 500ms linear backoff
func DefaultOptions() Options {
	return Options{
		Attempts:  3,
		Timeout:   15 * time.Second,
		Backoff:   500 * time.Millisecond,
		UserAgent: DefaultUserAgent,
	}
}

// New creates a retrying client. A non-success response on the final attempt
// is handed back as-is instead of being turned into an error.
func New(log zerolog.Logger, opts Options) *retryablehttp.Client {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	c := retryablehttp.NewClient()
	c.Logger = &leveledLogger{log: log.With().Str("module", "http").Logger()}
	c.RetryMax = opts.Attempts - 1
	c.RetryWaitMin = opts.Backoff
	c.RetryWaitMax = opts.Backoff * time.Duration(opts.Attempts)
	c.Backoff = LinearBackoff
	c.CheckRetry = retryablehttp.DefaultRetryPolicy
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.HTTPClient.Timeout = opts.Timeout
	c.HTTPClient.Transport = &headerTransport{
		next:    c.HTTPClient.Transport,
		headers: map[string]string{"User-Agent": opts.UserAgent},
	}

	return c
}

// LinearBackoff waits min, 2*min, 3*min, ... capped at max
func LinearBackoff(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	wait := min * time.Duration(attemptNum+1)
	if max > 0 && wait > max {
		return max
	}
	return wait
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get issues a GET with the given headers and reads the body
func Get(ctx context.Context, c *retryablehttp.Client, url string, headers map[string]string) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        resp.Request.URL.String(),
	}, nil
}

// headerTransport adds default headers unless the request already sets them
type headerTransport struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.next == nil {
		t.next = http.DefaultTransport
	}
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.next.RoundTrip(req)
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger
type leveledLogger struct {
	log zerolog.Logger
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) {
	l.log.Error().Fields(kv).Msg(msg)
}

func (l *leveledLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg(msg)
}

func (l *leveledLogger) Debug(msg string, kv ...interface{}) {
	l.log.Trace().Fields(kv).Msg(msg)
}

func (l *leveledLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warn().Fields(kv).Msg(msg)
}

// Package catalog issues signed HTTPS requests to the Apple Music catalog
// API and normalizes the resources it returns.
//
// The request pipeline obtains a bearer token for every attempt, retries
// transient 5xx responses with bounded jittered backoff, and classifies
// everything else into the [toolerr] taxonomy: client errors surface
// immediately with the API's own error detail as the hint, non-JSON bodies
// on success become invalid_response, and connection-level failures become
// network_error without any retry at this layer.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/observe"
	"github.com/MrWong99/cadenza/internal/toolerr"
)

const (
	// DefaultBaseURL is the production Apple Music API host.
	DefaultBaseURL = "https://api.music.apple.com"

	// defaultTimeout bounds a single attempt when the caller's context
	// carries no deadline of its own.
	defaultTimeout = 10 * time.Second

	// maxAttempts bounds the retry loop: one initial attempt plus two
	// retries on transient server errors.
	maxAttempts = 3

	// maxBackoff caps the sleep between attempts.
	maxBackoff = 1500 * time.Millisecond

	// maxJitter is the upper bound of the random component added to each
	// backoff sleep.
	maxJitter = 300 * time.Millisecond
)

// TokenSource supplies a bearer token for the given credentials. It is
// consulted before every attempt, not once per logical call, so a retry
// loop spanning a token refresh boundary always sends a fresh credential.
type TokenSource interface {
	Token(ctx context.Context, cfg config.MusicKitConfig) (string, error)
}

// Client talks to the Apple Music catalog API.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	baseURL string
	metrics *observe.Metrics

	// sleep and jitter are injectable for tests.
	sleep  func(ctx context.Context, d time.Duration)
	jitter func() time.Duration
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithBaseURL overrides the catalog host, e.g. for an httptest server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithMetrics wires request/retry/error counters into the client.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSleep replaces the backoff sleep. Intended for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithJitter replaces the backoff jitter source. Intended for tests.
func WithJitter(jitter func() time.Duration) Option {
	return func(c *Client) {
		c.jitter = jitter
	}
}

// New creates a catalog client that authenticates via tokens.
func New(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		tokens:  tokens,
		baseURL: DefaultBaseURL,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
		jitter: func() time.Duration {
			return time.Duration(rand.Int64N(int64(maxJitter)))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON runs the full request pipeline for a GET against path and
// decodes the successful response body into out (skipped when out is nil).
// The raw body is returned alongside for callers that echo it to clients.
func (c *Client) getJSON(ctx context.Context, cfg config.MusicKitConfig, path string, query url.Values, out any) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastStatus int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			// A caller-level timeout aborts before a new attempt starts,
			// never mid-attempt.
			return nil, toolerr.New(
				toolerr.CodeNetworkError,
				"The request was cancelled before completion.",
				"",
			).Wrap(err)
		}

		token, err := c.tokens.Token(ctx, cfg)
		if err != nil {
			return nil, err
		}

		status, body, err := c.attempt(ctx, reqURL, token)
		if err != nil {
			c.recordAttempt(ctx, path, "network_error")
			return nil, err
		}
		c.recordAttempt(ctx, path, strconv.Itoa(status))
		lastStatus = status

		if status >= 500 && status < 600 {
			if attempt == maxAttempts {
				break
			}
			c.backoff(ctx, attempt, path)
			continue
		}

		if status != http.StatusOK {
			return nil, c.classifyFailure(ctx, status, body)
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return nil, c.recordError(ctx, toolerr.New(
					toolerr.CodeInvalidResponse,
					"MusicKit response was not valid JSON.",
					"",
				).Wrap(err))
			}
		}
		return body, nil
	}

	return nil, c.recordError(ctx, toolerr.New(
		toolerr.CodeServiceUnavailable,
		"MusicKit returned repeated server errors.",
		fmt.Sprintf("Last status: %d", lastStatus),
	).WithStatus(lastStatus))
}

// attempt performs a single HTTP round trip and reads the full body.
// Connection-level failures are classified as network_error.
func (c *Client) attempt(ctx context.Context, reqURL, token string) (int, []byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, toolerr.New(
			toolerr.CodeNetworkError,
			"The MusicKit request could not be constructed.",
			"",
		).Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, c.recordError(ctx, toolerr.New(
			toolerr.CodeNetworkError,
			"Unable to reach the MusicKit API.",
			"Check network connectivity and Apple Music service status.",
		).Wrap(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, c.recordError(ctx, toolerr.New(
			toolerr.CodeNetworkError,
			"Reading the MusicKit response failed.",
			"",
		).Wrap(err))
	}
	return resp.StatusCode, body, nil
}

// backoff sleeps min(maxBackoff, 0.2s*attempt + jitter) before a retry.
func (c *Client) backoff(ctx context.Context, attempt int, path string) {
	d := time.Duration(attempt)*200*time.Millisecond + c.jitter()
	if d > maxBackoff {
		d = maxBackoff
	}
	if c.metrics != nil {
		c.metrics.CatalogRetries.Add(ctx, 1)
	}
	c.sleep(ctx, d)
}

// errorBody mirrors the error envelope the Apple Music API returns on
// non-2xx responses.
type errorBody struct {
	Errors []struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	} `json:"errors"`
}

// classifyFailure turns a non-retryable, non-200 response into a
// musickit_error carrying the numeric status. The hint is the first
// structured error detail when the body parses as JSON, the raw body text
// otherwise.
func (c *Client) classifyFailure(ctx context.Context, status int, body []byte) error {
	var hint string
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if len(eb.Errors) > 0 {
			if hint = eb.Errors[0].Detail; hint == "" {
				hint = eb.Errors[0].Message
			}
		}
	} else {
		hint = string(body)
	}

	return c.recordError(ctx, toolerr.New(
		toolerr.CodeCatalogError,
		fmt.Sprintf("MusicKit API returned status %d.", status),
		hint,
	).WithStatus(status))
}

func (c *Client) recordAttempt(ctx context.Context, path, status string) {
	if c.metrics != nil {
		c.metrics.RecordCatalogAttempt(ctx, path, status)
	}
}

// recordError counts the classified failure and passes it through.
func (c *Client) recordError(ctx context.Context, te *toolerr.Error) error {
	if c.metrics != nil {
		c.metrics.CatalogErrors.Add(ctx, 1, metric.WithAttributes(observe.Attr("code", te.Code)))
	}
	return te
}

// Package bgg provides the BoardGameGeek sources: the XML API client, the
// reader-proxy and direct page fallbacks, and the image gallery client.
package bgg

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/gameshelf/internal/ratelimit"
)

const (
	defaultXMLBaseURL    = "https://boardgamegeek.com/xmlapi2"
	defaultMaxAttempts   = 3
	defaultRatePerSecond = 2
	defaultTimeout       = 15 * time.Second
	maxBackoff           = 3 * time.Second
	maxBodyBytes         = 8 << 20

	userAgent = "gameshelf/1.0 (+https://github.com/lepinkainen/gameshelf)"
	// browserUserAgent is sent on direct page fetches, which BGG serves
	// inconsistently to non-browser agents.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// BackoffFunc returns the delay before the given retry attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Client fetches game data from the BGG XML API2 thing endpoint.
type Client struct {
	baseURL       string
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	retryAttempts int
	sessionCookie string
	apiToken      string
	backoff       BackoffFunc
}

// NewClient creates a new BGG XML API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:       defaultXMLBaseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		rateLimiter:   ratelimit.New("BGG", defaultRatePerSecond),
		retryAttempts: defaultMaxAttempts,
		backoff:       linearBackoff,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the XML API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRetryAttempts sets the number of attempts for a single fetch.
func WithRetryAttempts(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.retryAttempts = attempts
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.rateLimiter = limiter
		}
	}
}

// WithSessionCookie sets the logged-in session cookie used to retry
// requests BGG rejected with 401/403.
func WithSessionCookie(cookie string) Option {
	return func(client *Client) {
		client.sessionCookie = strings.TrimSpace(cookie)
	}
}

// WithAPIToken sets the bearer token for registered XML API applications.
func WithAPIToken(token string) Option {
	return func(client *Client) {
		client.apiToken = strings.TrimSpace(token)
	}
}

// WithBackoff replaces the delay between retry attempts.
func WithBackoff(backoff BackoffFunc) Option {
	return func(client *Client) {
		if backoff != nil {
			client.backoff = backoff
		}
	}
}

func linearBackoff(attempt int) time.Duration {
	delay := time.Duration(attempt) * time.Second
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package bgg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
	"github.com/lepinkainen/gameshelf/internal/game"
)

var (
	// ErrTryAgain is returned when BGG answers with its "please try again" placeholder.
	ErrTryAgain = errors.New("bgg: placeholder response, try again later")
	// ErrNoItem is returned when a response lacks the <item> root element.
	ErrNoItem = errors.New("bgg: response has no <item> element")
	// ErrMalformed is returned when a response cannot be decoded.
	ErrMalformed = errors.New("bgg: malformed response")
)

var tryAgainPhrases = [][]byte{
	[]byte("try again"),
	[]byte("rate limit exceeded"),
	[]byte("has been accepted and will be processed"),
}

// statusError is a non-2xx response that is neither a block nor a rate limit.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bgg: unexpected status %d: %s", e.code, e.body)
}

// FetchThing fetches and parses the thing with the given id. Placeholder
// bodies, missing <item> elements, undecodable bodies, 429s and 5xx
// responses are retried with a linear backoff. A 401/403 is retried once with the session cookie when
// one is configured.
func (c *Client) FetchThing(ctx context.Context, id string) (*game.Record, error) {
	endpoint := fmt.Sprintf("%s/thing?id=%s&stats=1", c.baseURL, url.QueryEscape(id))

	useCookie := false
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		body, err := c.getXML(ctx, endpoint, useCookie)
		if err == nil {
			record, parseErr := ParseThing(body, id)
			if parseErr == nil {
				return record, nil
			}
			err = parseErr
		}
		lastErr = err

		if gserrors.IsSourceBlockedError(err) {
			if useCookie || c.sessionCookie == "" {
				return nil, err
			}
			slog.Debug("BGG rejected request, retrying with session cookie", "id", id, "attempt", attempt)
			useCookie = true
			continue
		}

		if !isRetryable(err) || attempt == c.retryAttempts {
			return nil, err
		}

		delay := c.backoff(attempt)
		var rlErr *gserrors.RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
			delay = min(rlErr.RetryAfter, maxBackoff)
		}
		slog.Debug("Retrying BGG XML fetch", "id", id, "attempt", attempt, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) getXML(ctx context.Context, endpoint string, withCookie bool) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if withCookie {
		req.Header.Set("Cookie", c.sessionCookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, gserrors.NewSourceBlockedError("bgg-xml", resp.StatusCode, withCookie)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, gserrors.NewRateLimitErrorWithRetry("bgg: rate limited", parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode == http.StatusAccepted:
		return nil, ErrTryAgain
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("bgg: read body: %w", err)
	}

	if err := checkXMLBody(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkXMLBody applies the success signal of the XML API: an <item element
// must be present. Otherwise the body is classified as a placeholder or as
// simply missing the item.
func checkXMLBody(body []byte) error {
	if bytes.Contains(body, []byte("<item")) {
		return nil
	}
	lower := bytes.ToLower(body)
	for _, phrase := range tryAgainPhrases {
		if bytes.Contains(lower, phrase) {
			return ErrTryAgain
		}
	}
	return ErrNoItem
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrTryAgain) || errors.Is(err, ErrNoItem) || errors.Is(err, ErrMalformed) ||
		gserrors.IsRateLimitError(err) {
		return true
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		// Network errors (connection resets etc.)
		if strings.Contains(urlErr.Error(), "connection") {
			return true
		}
	}
	return false
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

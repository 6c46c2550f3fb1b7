package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPDoer matches http.Client's Do method.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier POSTs events as JSON to a messaging webhook
type WebhookNotifier struct {
	url      string
	apiToken string
	client   HTTPDoer
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client HTTPDoer) WebhookOption {
	return func(w *WebhookNotifier) {
		if client != nil {
			w.client = client
		}
	}
}

// NewWebhookNotifier creates a new WebhookNotifier instance
func NewWebhookNotifier(webhookURL, apiToken string, opts ...WebhookOption) (*WebhookNotifier, error) {
	u, err := url.Parse(webhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook URL %q", webhookURL)
	}

	w := &WebhookNotifier{
		url:      webhookURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

type webhookPayload struct {
	Content string `json:"content"`
	Event   Event  `json:"event"`
}

// Notify sends the event to the webhook
func (w *WebhookNotifier) Notify(ctx context.Context, e Event) error {
	jsonData, err := json.Marshal(webhookPayload{Content: e.Message(), Event: e})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiToken)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

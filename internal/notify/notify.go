// Package notify announces newly imported games to external messaging
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Event describes a game the import pipeline created.
type Event struct {
	Action      string `json:"action"`
	GameID      string `json:"game_id"`
	LibraryID   string `json:"library_id"`
	Title       string `json:"title"`
	ImageURL    string `json:"image_url,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	IsExpansion bool   `json:"is_expansion"`
}

// Message renders the human-readable announcement.
func (e Event) Message() string {
	kind := "game"
	if e.IsExpansion {
		kind = "expansion"
	}
	msg := fmt.Sprintf("New %s added to the library: %s", kind, e.Title)
	if e.SourceURL != "" {
		msg += "\n" + e.SourceURL
	}
	return msg
}

// Notifier delivers an event to one channel.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds a notifier from the configured webhook and shoutrrr URLs.
// It returns nil when nothing is configured.
func New(webhookURL, webhookToken string, urls []string, timeout time.Duration) (Notifier, error) {
	var m Multi

	if webhookURL != "" {
		w, err := NewWebhookNotifier(webhookURL, webhookToken)
		if err != nil {
			return nil, err
		}
		m = append(m, w)
	}

	if len(urls) > 0 {
		s, err := NewShoutrrrNotifier(urls, timeout)
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}

	switch len(m) {
	case 0:
		return nil, nil
	case 1:
		return m[0], nil
	default:
		return m, nil
	}
}

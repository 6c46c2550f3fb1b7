// Package extract turns arbitrary game pages into records by rendering the
// page and running a structured LLM extraction over its content.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Page is a rendered web page.
type Page struct {
	URL      string
	Markdown string
	HTML     string
	Renderer string
}

// Renderer fetches a page and returns its markdown and raw HTML.
type Renderer interface {
	Name() string
	Render(ctx context.Context, pageURL string) (*Page, error)
}

// HTTPDoer matches http.Client's Do method.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrRenderFailed is returned when no renderer produced the page.
var ErrRenderFailed = errors.New("page could not be rendered")

// Chain tries renderers in order and returns the first success.
type Chain []Renderer

func (c Chain) Name() string { return "chain" }

func (c Chain) Render(ctx context.Context, pageURL string) (*Page, error) {
	var errs []error
	for _, r := range c {
		if r == nil {
			continue
		}
		page, err := r.Render(ctx, pageURL)
		if err == nil && page != nil && (page.HTML != "" || page.Markdown != "") {
			page.Renderer = r.Name()
			return page, nil
		}
		if err == nil {
			err = errors.New("empty page")
		}
		slog.Debug("Renderer failed", "renderer", r.Name(), "url", pageURL, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrRenderFailed, errors.Join(errs...))
}

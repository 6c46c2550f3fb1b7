package extract

import (
	"context"
	"strings"

	"github.com/k3a/html2text"

	"github.com/lepinkainen/gameshelf/internal/reader"
)

// Fetcher is the subset of reader.Client used for rendering.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, format reader.Format) ([]byte, error)
}

// ReaderRenderer uses the text-extraction proxy as a renderer. Markdown is
// derived from the returned HTML.
type ReaderRenderer struct {
	fetcher Fetcher
}

// NewReaderRenderer wraps a proxy client.
func NewReaderRenderer(f Fetcher) *ReaderRenderer {
	return &ReaderRenderer{fetcher: f}
}

func (r *ReaderRenderer) Name() string { return "reader" }

func (r *ReaderRenderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	body, err := r.fetcher.Fetch(ctx, pageURL, reader.FormatHTML)
	if err != nil {
		return nil, err
	}
	html := string(body)
	return &Page{
		URL:      pageURL,
		HTML:     html,
		Markdown: strings.TrimSpace(html2text.HTML2Text(html)),
	}, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/config"
	"github.com/lepinkainen/gameshelf/internal/datastore"
	"github.com/lepinkainen/gameshelf/internal/enrichment"
	"github.com/lepinkainen/gameshelf/internal/extract"
	"github.com/lepinkainen/gameshelf/internal/importer"
	"github.com/lepinkainen/gameshelf/internal/llm"
	"github.com/lepinkainen/gameshelf/internal/metrics"
	"github.com/lepinkainen/gameshelf/internal/notify"
	"github.com/lepinkainen/gameshelf/internal/ratelimit"
	"github.com/lepinkainen/gameshelf/internal/reader"
)

// pipeline is the wired import stack shared by the commands.
type pipeline struct {
	importer *importer.Importer
	store    datastore.Store
	metrics  *metrics.Metrics
}

// Close waits for pending notifications and closes the store.
func (p *pipeline) Close() error {
	p.importer.Wait()
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// openPipeline is swapped out in tests.
var openPipeline = newPipeline

func newPipeline(ctx context.Context, s config.Settings) (*pipeline, error) {
	store, err := datastore.Open(ctx, s.DatastoreFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open datastore: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	llmClient, err := newLLMClient(s)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts, err := importerOptions(s, llmClient)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opts = append(opts, importer.WithMetrics(m))

	return &pipeline{
		importer: importer.New(store, buildSources(s, llmClient), opts...),
		store:    store,
		metrics:  m,
	}, nil
}

// newLLMClient returns nil when no provider is configured.
func newLLMClient(s config.Settings) (*llm.Client, error) {
	client, err := llm.NewClient(llm.Config{
		BaseURL: s.LLMBaseURL,
		APIKey:  s.LLMAPIKey,
		Model:   s.LLMModel,
	})
	if errors.Is(err, llm.ErrNotConfigured) {
		slog.Info("No LLM configured, description enrichment and AI extraction are disabled")
		return nil, nil
	}
	return client, err
}

func buildSources(s config.Settings, llmClient *llm.Client) []importer.Source {
	httpClient := &http.Client{Timeout: s.HTTPTimeout}
	limiter := ratelimit.New("BGG", max(1, int(s.BGGRateLimit)))
	proxy := reader.NewClient(s.ProxyAPIKey, reader.WithBaseURL(s.ProxyBaseURL))

	// An untyped nil keeps the extractor on its Open Graph fallback.
	var caller extract.ToolCaller
	if llmClient != nil {
		caller = llmClient
	}

	return importer.DefaultSources(importer.Clients{
		XML: bgg.NewClient(
			bgg.WithHTTPClient(httpClient),
			bgg.WithRateLimiter(limiter),
			bgg.WithSessionCookie(s.BGGSessionCookie),
			bgg.WithAPIToken(s.BGGAPIToken),
		),
		Proxy:     bgg.NewProxyClient(proxy),
		Page:      bgg.NewPageClient(httpClient, limiter),
		Extractor: extract.NewExtractor(renderers(s, proxy), caller),
	})
}

// renderers orders the page renderers: hosted rendering, local browser,
// then the reader proxy, which needs no setup.
func renderers(s config.Settings, proxy *reader.Client) extract.Chain {
	var chain extract.Chain
	if s.FirecrawlAPIKey != "" {
		chain = append(chain, extract.NewFirecrawlRenderer(s.FirecrawlAPIKey,
			extract.WithFirecrawlBaseURL(s.FirecrawlBaseURL)))
	}
	if s.BrowserEnabled {
		chain = append(chain, extract.NewBrowserRenderer(extract.BrowserOptions{Headless: true}))
	}
	return append(chain, extract.NewReaderRenderer(proxy))
}

func importerOptions(s config.Settings, llmClient *llm.Client) ([]importer.Option, error) {
	gallery := bgg.NewGalleryClient(
		bgg.WithGalleryHTTPClient(&http.Client{Timeout: s.HTTPTimeout}),
		bgg.WithGalleryRateLimiter(ratelimit.New("BGG gallery", max(1, int(s.BGGRateLimit)))),
		bgg.WithGalleryCache(),
	)
	opts := []importer.Option{importer.WithGallery(gallery)}

	if llmClient != nil {
		opts = append(opts, importer.WithEnricher(enrichment.NewEnricher(llmClient, enrichment.WithCache())))
	}

	notifier, err := notify.New(s.WebhookURL, s.WebhookToken, s.NotifyURLs, s.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid notification settings: %w", err)
	}
	if notifier != nil {
		opts = append(opts, importer.WithNotifier(notifier))
	}

	return opts, nil
}

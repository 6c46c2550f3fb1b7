package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/k3a/html2text"
)

const (
	defaultBrowserTimeout = 45 * time.Second
	browserUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
)

// BrowserOptions configures the headless browser renderer.
type BrowserOptions struct {
	Headless bool
	Timeout  time.Duration
}

// BrowserRenderer loads pages in a local headless Chrome.
type BrowserRenderer struct {
	opts BrowserOptions
}

// NewBrowserRenderer creates a renderer with opts.
func NewBrowserRenderer(opts BrowserOptions) *BrowserRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultBrowserTimeout
	}
	return &BrowserRenderer{opts: opts}
}

func (b *BrowserRenderer) Name() string { return "browser" }

func (b *BrowserRenderer) Render(parentCtx context.Context, pageURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(parentCtx, b.opts.Timeout)
	defer cancel()

	allocCtx, cancelAllocator := chromedpExecAllocator(ctx, buildExecAllocatorOptions(b.opts)...)
	defer cancelAllocator()

	browserCtx, cancelBrowser := chromedpContext(allocCtx)
	defer cancelBrowser()

	var html string
	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(browserUserAgent),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedpRunner(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("failed to render %s in browser: %w", pageURL, err)
	}

	return &Page{
		URL:      pageURL,
		HTML:     html,
		Markdown: strings.TrimSpace(html2text.HTML2Text(html)),
	}, nil
}

func buildExecAllocatorOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.UserAgent(browserUserAgent),
	}
}

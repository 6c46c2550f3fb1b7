package bgg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/k3a/html2text"

	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/ratelimit"
)

var (
	// Social card crops are letterboxed or cropped for link previews and
	// are never used as box art.
	socialCardImage = regexp.MustCompile(`(?i)(__opengraph|fit-in/1200x630|__imagepage_social|og[-_]image|social[-_]card|twitter[-_]card)`)
	// Page-level type markers. Only these classify a page as an expansion.
	expansionSubtype = regexp.MustCompile(`"subtype"\s*:\s*"boardgameexpansion"`)
	itemPreload      = regexp.MustCompile(`geekitemPreload\s*=`)
	titleSuffix      = regexp.MustCompile(`(?i)\s*\|\s*(board game|board game expansion|rpg item|video game)?\s*\|?\s*boardgamegeek\s*$`)
)

// ParsePage extracts Open Graph metadata from a game page.
func ParsePage(body []byte, pageURL string) (*game.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bgg: parse page: %w", err)
	}

	record := &game.Record{SourceURL: pageURL}

	title := metaContent(doc, "og:title", "twitter:title")
	// Bot challenges and interstitials only carry a <title>.
	if title == "" && hasPageMetadata(doc, body) {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	record.Title = strings.TrimSpace(titleSuffix.ReplaceAllString(title, ""))

	for _, candidate := range []string{metaContent(doc, "og:image"), metaContent(doc, "twitter:image")} {
		if candidate != "" && !IsSocialCardImage(candidate) {
			record.ImageURL = candidate
			break
		}
	}

	if desc := metaContent(doc, "og:description", "description"); desc != "" {
		record.Description = strings.TrimSpace(html2text.HTML2Text(desc))
	}

	record.IsExpansion = strings.Contains(strings.ToLower(metaContent(doc, "og:type")), "boardgameexpansion") ||
		expansionSubtype.Match(body)

	for _, candidate := range []string{metaContent(doc, "og:url"), canonicalLink(doc), pageURL} {
		if m := thingPath.FindStringSubmatch(pathOf(candidate)); m != nil {
			record.ExternalID = m[1]
			break
		}
	}

	return record, nil
}

// hasPageMetadata reports whether the page looks like real content: Open
// Graph tags, a canonical link or the BGG item preload.
func hasPageMetadata(doc *goquery.Document, body []byte) bool {
	if doc.Find(`meta[property^="og:"]`).Length() > 0 {
		return true
	}
	return canonicalLink(doc) != "" || itemPreload.Match(body)
}

// IsSocialCardImage reports whether an image URL is a link-preview crop.
func IsSocialCardImage(imageURL string) bool {
	return socialCardImage.MatchString(imageURL)
}

func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)).First()
		if content := strings.TrimSpace(sel.AttrOr("content", "")); content != "" {
			return content
		}
	}
	return ""
}

func canonicalLink(doc *goquery.Document) string {
	return doc.Find(`link[rel="canonical"]`).First().AttrOr("href", "")
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

// PageClient fetches BGG game pages directly with a desktop browser user agent.
type PageClient struct {
	baseURL     string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
}

// NewPageClient creates a direct page client. limiter may be shared with the XML client.
func NewPageClient(httpClient HTTPDoer, limiter *ratelimit.Limiter) *PageClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &PageClient{
		baseURL:     "https://boardgamegeek.com",
		httpClient:  httpClient,
		rateLimiter: limiter,
	}
}

// WithBaseURL overrides the site origin, for tests.
func (c *PageClient) WithBaseURL(base string) *PageClient {
	c.baseURL = strings.TrimSuffix(base, "/")
	return c
}

// FetchPage fetches the game page for id and extracts its metadata.
func (c *PageClient) FetchPage(ctx context.Context, id string) (*game.Record, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageURL := c.baseURL + "/boardgame/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, gserrors.NewSourceBlockedError("bgg-page", resp.StatusCode, false)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("bgg: read page: %w", err)
	}

	record, err := ParsePage(body, GamePageURL(id))
	if err != nil {
		return nil, err
	}
	if record.ExternalID == "" {
		record.ExternalID = id
	}
	return record, nil
}

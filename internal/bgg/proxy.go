package bgg

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/reader"
)

// Fetcher fetches a URL through an alternate egress path.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, format reader.Format) ([]byte, error)
}

// ProxyClient requests BGG resources through a reader proxy, which gets
// around IP-level blocking of the XML API and game pages.
type ProxyClient struct {
	fetcher    Fetcher
	xmlBaseURL string
}

// NewProxyClient creates a proxy-backed BGG client.
func NewProxyClient(fetcher Fetcher) *ProxyClient {
	return &ProxyClient{fetcher: fetcher, xmlBaseURL: defaultXMLBaseURL}
}

// FetchThing requests the XML thing endpoint through the proxy. The body is
// only accepted if it contains an <item element.
func (p *ProxyClient) FetchThing(ctx context.Context, id string) (*game.Record, error) {
	endpoint := fmt.Sprintf("%s/thing?id=%s&stats=1", p.xmlBaseURL, url.QueryEscape(id))

	body, err := p.fetcher.Fetch(ctx, endpoint, reader.FormatText)
	if err != nil {
		return nil, err
	}

	xmlBody, ok := cutItems(body)
	if !ok {
		return nil, ErrNoItem
	}
	return ParseThing(xmlBody, id)
}

// FetchPage requests the game page HTML through the proxy and extracts its
// Open Graph metadata.
func (p *ProxyClient) FetchPage(ctx context.Context, id string) (*game.Record, error) {
	body, err := p.fetcher.Fetch(ctx, GamePageURL(id), reader.FormatHTML)
	if err != nil {
		return nil, err
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

// cutItems returns the <items>...</items> document from a proxy response,
// which may wrap the XML in its own title and header lines.
func cutItems(body []byte) ([]byte, bool) {
	start := bytes.Index(body, []byte("<items"))
	if start < 0 {
		return nil, false
	}
	end := bytes.LastIndex(body, []byte("</items>"))
	if end < start {
		return nil, false
	}

	doc := body[start : end+len("</items>")]
	if !bytes.Contains(doc, []byte("<item ")) && !bytes.Contains(doc, []byte("<item>")) {
		return nil, false
	}
	return doc, true
}

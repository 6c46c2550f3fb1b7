package importer

import (
	"context"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/extract"
	"github.com/lepinkainen/gameshelf/internal/game"
)

// Source names.
const (
	SourceBGGXML      = "bgg-xml"
	SourceBGGProxyXML = "bgg-proxy-xml"
	SourceBGGProxy    = "bgg-proxy-page"
	SourceBGGPage     = "bgg-page"
	SourceGeneric     = "generic"
	SourceCatalog     = "catalog"
	SourceURLSlug     = "url-slug"
)

// Source is one step of the fallback chain.
type Source interface {
	Name() string
	// Applies reports whether the source can handle the target at all.
	Applies(t bgg.Target) bool
	Fetch(ctx context.Context, t bgg.Target) (*game.Record, error)
}

// IDFetchFunc fetches a BGG game by id.
type IDFetchFunc func(ctx context.Context, id string) (*game.Record, error)

type bggSource struct {
	name  string
	fetch IDFetchFunc
}

// NewBGGSource wraps an id-based BGG fetch as a chain step. It is skipped for
// targets that are not BGG game pages.
func NewBGGSource(name string, fetch IDFetchFunc) Source {
	return &bggSource{name: name, fetch: fetch}
}

func (s *bggSource) Name() string { return s.name }

func (s *bggSource) Applies(t bgg.Target) bool { return t.IsBGG() }

func (s *bggSource) Fetch(ctx context.Context, t bgg.Target) (*game.Record, error) {
	return s.fetch(ctx, t.ID)
}

// PageExtractor turns an arbitrary game page into a record.
type PageExtractor interface {
	Extract(ctx context.Context, pageURL string) (*game.Record, error)
}

type genericSource struct {
	extractor PageExtractor
}

// NewGenericSource wraps the rendered-page extractor. It applies to every
// target; for BGG targets it renders the canonical game page.
func NewGenericSource(x PageExtractor) Source {
	return &genericSource{extractor: x}
}

func (s *genericSource) Name() string { return SourceGeneric }

func (s *genericSource) Applies(bgg.Target) bool { return true }

func (s *genericSource) Fetch(ctx context.Context, t bgg.Target) (*game.Record, error) {
	return s.extractor.Extract(ctx, t.CanonicalURL())
}

// Clients bundles the concrete sources. Nil members are left out of the chain.
type Clients struct {
	XML       *bgg.Client
	Proxy     *bgg.ProxyClient
	Page      *bgg.PageClient
	Extractor *extract.Extractor
}

// DefaultSources builds the chain in priority order: XML API, XML through the
// proxy, game page through the proxy, direct game page, then the generic
// rendered-page extractor.
func DefaultSources(c Clients) []Source {
	var sources []Source
	if c.XML != nil {
		sources = append(sources, NewBGGSource(SourceBGGXML, c.XML.FetchThing))
	}
	if c.Proxy != nil {
		sources = append(sources,
			NewBGGSource(SourceBGGProxyXML, c.Proxy.FetchThing),
			NewBGGSource(SourceBGGProxy, c.Proxy.FetchPage),
		)
	}
	if c.Page != nil {
		sources = append(sources, NewBGGSource(SourceBGGPage, c.Page.FetchPage))
	}
	if c.Extractor != nil {
		sources = append(sources, NewGenericSource(c.Extractor))
	}
	return sources
}

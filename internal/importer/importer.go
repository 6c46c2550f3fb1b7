// Package importer resolves a game URL into a complete record and persists
// it into a library, linking the shared catalog and taxonomy on the way.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/datastore"
	"github.com/lepinkainen/gameshelf/internal/enrichment"
	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
	"github.com/lepinkainen/gameshelf/internal/extract"
	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/metrics"
	"github.com/lepinkainen/gameshelf/internal/notify"
)

// Messages returned to the caller when an import cannot proceed.
const (
	MsgLibraryRequired = "library_id is required"
	MsgBGGUnavailable  = "Could not retrieve game data from BoardGameGeek. " +
		"Please try again later or add the game manually."
	MsgPageUnavailable = "Could not load this page to read the game details. " +
		"Please add the game manually."
)

// Import actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionFailed  = "failed"
)

const (
	defaultSourceTimeout = 60 * time.Second
	defaultNotifyTimeout = 10 * time.Second
	defaultRefreshLimit  = 10
)

// GalleryFetcher returns supplementary images for a BGG id.
type GalleryFetcher interface {
	FetchImages(ctx context.Context, id string) ([]string, error)
}

// DescriptionEnricher rewrites a raw description.
type DescriptionEnricher interface {
	Enrich(ctx context.Context, title, raw string, gameCtx enrichment.Context) (string, enrichment.Outcome)
}

// Request is a single game import.
type Request struct {
	URL       string
	LibraryID string
	// IsExpansion overrides source metadata and title heuristics when set
	IsExpansion *bool
	Extra       datastore.Passthrough
}

// Result describes a finished import.
type Result struct {
	Action string
	Game   *datastore.Game
	Record *game.Record
}

// RefreshReport summarizes a catalog refresh run.
type RefreshReport struct {
	Checked   int `json:"checked"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// Importer runs the source chain and writes the outcome to the store.
type Importer struct {
	store         datastore.Store
	sources       []Source
	gallery       GalleryFetcher
	enricher      DescriptionEnricher
	notifier      notify.Notifier
	metrics       *metrics.Metrics
	sourceTimeout time.Duration
	notifyTimeout time.Duration
	now           func() time.Time

	notifications sync.WaitGroup
}

// Option configures an Importer.
type Option func(*Importer)

// WithGallery enables the image gallery supplement.
func WithGallery(g GalleryFetcher) Option {
	return func(i *Importer) {
		i.gallery = g
	}
}

// WithEnricher enables description enrichment.
func WithEnricher(e DescriptionEnricher) Option {
	return func(i *Importer) {
		i.enricher = e
	}
}

// WithNotifier announces newly created games.
func WithNotifier(n notify.Notifier) Option {
	return func(i *Importer) {
		i.notifier = n
	}
}

// WithMetrics records source attempts and import outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Importer) {
		i.metrics = m
	}
}

// WithSourceTimeout bounds each individual source attempt.
func WithSourceTimeout(d time.Duration) Option {
	return func(i *Importer) {
		if d > 0 {
			i.sourceTimeout = d
		}
	}
}

// WithNotifyTimeout bounds each notification delivery.
func WithNotifyTimeout(d time.Duration) Option {
	return func(i *Importer) {
		if d > 0 {
			i.notifyTimeout = d
		}
	}
}

// New creates an importer. The store may be nil for resolve-only use.
func New(store datastore.Store, sources []Source, opts ...Option) *Importer {
	i := &Importer{
		store:         store,
		sources:       sources,
		sourceTimeout: defaultSourceTimeout,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Wait blocks until pending notifications have been delivered.
func (i *Importer) Wait() {
	i.notifications.Wait()
}

// Resolve turns a URL into a normalized record without writing anything.
func (i *Importer) Resolve(ctx context.Context, rawURL string) (*game.Record, error) {
	target, err := bgg.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return i.resolve(ctx, target, nil)
}

// Import resolves the request URL and creates or updates the library game.
func (i *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	start := i.now()

	result, err := i.importGame(ctx, req)
	action := ActionFailed
	if err == nil {
		action = result.Action
	}
	i.metrics.RecordImport(action, i.now().Sub(start).Seconds())

	return result, err
}

func (i *Importer) importGame(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.LibraryID) == "" {
		return nil, gserrors.NewValidationError(MsgLibraryRequired)
	}
	if i.store == nil {
		return nil, errors.New("importer has no datastore")
	}

	target, err := bgg.ParseURL(req.URL)
	if err != nil {
		return nil, err
	}

	rec, err := i.resolve(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case req.IsExpansion != nil:
		rec.IsExpansion = *req.IsExpansion
	case !rec.IsExpansion && game.TitleSuggestsExpansion(rec.Title):
		rec.IsExpansion = true
	}

	extra := req.Extra
	if rec.IsExpansion && extra.ParentGameID == "" {
		extra.ParentGameID = i.findParent(ctx, req.LibraryID, rec)
	}

	candidate := datastore.Candidate{URL: rec.SourceURL, ExternalID: rec.ExternalID, Title: rec.Title}
	existingID, err := i.store.FindExisting(ctx, candidate, req.LibraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing game: %w", err)
	}

	g := datastore.GameFromRecord(req.LibraryID, rec, extra)
	gameID, action, err := i.save(ctx, existingID, g, candidate)
	if err != nil {
		return nil, err
	}

	i.linkShared(ctx, gameID, rec)

	saved, err := i.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload game %s: %w", gameID, err)
	}

	slog.Info("Imported game", "title", saved.Title, "id", gameID, "action", action,
		"source", rec.Source, "library", req.LibraryID)

	if action == ActionCreated {
		i.announce(saved)
	}

	return &Result{Action: action, Game: saved, Record: rec}, nil
}

// save inserts or updates the game. An insert that loses a race against a
// concurrent import of the same game falls back to updating the winner.
func (i *Importer) save(ctx context.Context, existingID string, g *datastore.Game, candidate datastore.Candidate) (string, string, error) {
	if existingID != "" {
		if err := i.store.UpdateGame(ctx, existingID, g); err != nil {
			return "", "", fmt.Errorf("failed to update game %s: %w", existingID, err)
		}
		return existingID, ActionUpdated, nil
	}

	id, insertErr := i.store.InsertGame(ctx, g)
	if insertErr == nil {
		return id, ActionCreated, nil
	}

	winner, err := i.store.FindExisting(ctx, candidate, g.LibraryID)
	if err != nil || winner == "" {
		return "", "", fmt.Errorf("failed to insert game: %w", insertErr)
	}
	if err := i.store.UpdateGame(ctx, winner, g); err != nil {
		return "", "", fmt.Errorf("failed to update game %s: %w", winner, err)
	}
	return winner, ActionUpdated, nil
}

func (i *Importer) findParent(ctx context.Context, libraryID string, rec *game.Record) string {
	base := rec.BaseTitle()
	if base == "" || strings.EqualFold(base, rec.Title) {
		return ""
	}

	parentID, err := i.store.FindBaseGame(ctx, libraryID, base)
	if err != nil {
		slog.Warn("Base game lookup failed", "title", rec.Title, "base", base, "error", err)
		return ""
	}
	if parentID != "" {
		slog.Debug("Linked expansion to base game", "title", rec.Title, "base", base, "parent", parentID)
	}
	return parentID
}

// linkShared upserts the catalog entry and the taxonomy links. Failures are
// logged and never fail the import.
func (i *Importer) linkShared(ctx context.Context, gameID string, rec *game.Record) {
	tax := datastore.TaxonomyFromRecord(rec)

	if catalogID := i.catalogEntryFor(ctx, rec); catalogID != "" {
		if err := i.store.LinkGameCatalog(ctx, gameID, catalogID); err != nil {
			slog.Warn("Linking game to catalog failed", "game", gameID, "catalog", catalogID, "error", err)
		}
		if rec.Source != SourceURLSlug {
			stats := i.store.LinkTaxonomy(ctx, datastore.Owner{Kind: datastore.OwnerCatalog, ID: catalogID}, tax)
			logLinkStats("catalog", catalogID, stats)
		}
	}

	stats := i.store.LinkTaxonomy(ctx, datastore.Owner{Kind: datastore.OwnerGame, ID: gameID}, tax)
	logLinkStats("game", gameID, stats)
}

// catalogEntryFor returns the catalog id for the record, upserting the entry
// from fetched data. A title derived from the URL never writes the catalog;
// it only links to an entry that already exists.
func (i *Importer) catalogEntryFor(ctx context.Context, rec *game.Record) string {
	if rec.ExternalID == "" {
		return ""
	}

	if rec.Source == SourceURLSlug {
		entry, err := i.store.CatalogByExternalID(ctx, rec.ExternalID)
		if err != nil {
			if !errors.Is(err, datastore.ErrNotFound) {
				slog.Warn("Catalog lookup failed", "bgg_id", rec.ExternalID, "error", err)
			}
			return ""
		}
		return entry.ID
	}

	catalogID, err := i.store.UpsertCatalog(ctx, rec)
	if err != nil {
		slog.Warn("Catalog upsert failed", "bgg_id", rec.ExternalID, "error", err)
		return ""
	}
	return catalogID
}

func logLinkStats(kind, id string, stats datastore.LinkStats) {
	if stats.Failed > 0 {
		slog.Warn("Some taxonomy links failed", "owner", kind, "id", id,
			"linked", stats.Linked, "failed", stats.Failed)
		return
	}
	slog.Debug("Linked taxonomy", "owner", kind, "id", id, "linked", stats.Linked)
}

// announce delivers the new game notification in the background.
func (i *Importer) announce(g *datastore.Game) {
	if i.notifier == nil {
		return
	}

	event := notify.Event{
		Action:      ActionCreated,
		GameID:      g.ID,
		LibraryID:   g.LibraryID,
		Title:       g.Title,
		ImageURL:    g.ImageURL,
		SourceURL:   g.BGGURL,
		IsExpansion: g.IsExpansion,
	}

	i.notifications.Add(1)
	go func() {
		defer i.notifications.Done()

		ctx, cancel := context.WithTimeout(context.Background(), i.notifyTimeout)
		defer cancel()

		err := i.notifier.Notify(ctx, event)
		i.metrics.RecordNotification(err == nil)
		if err != nil {
			slog.Warn("New game notification failed", "title", event.Title, "error", err)
		}
	}()
}

// Refresh re-resolves catalog entries that lack an enriched description.
func (i *Importer) Refresh(ctx context.Context, limit int) (*RefreshReport, error) {
	if i.store == nil {
		return nil, errors.New("importer has no datastore")
	}
	if limit <= 0 {
		limit = defaultRefreshLimit
	}

	entries, err := i.store.StaleCatalog(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale catalog entries: %w", err)
	}

	report := &RefreshReport{Checked: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		target := bgg.Target{URL: bgg.GamePageURL(entry.BGGID), ID: entry.BGGID}
		rec, err := i.resolve(ctx, target, entry.Record())
		if err != nil {
			slog.Warn("Catalog refresh failed", "bgg_id", entry.BGGID, "title", entry.Title, "error", err)
			report.Failed++
			continue
		}

		catalogID, err := i.store.UpsertCatalog(ctx, rec)
		if err != nil {
			slog.Warn("Catalog refresh upsert failed", "bgg_id", entry.BGGID, "error", err)
			report.Failed++
			continue
		}
		stats := i.store.LinkTaxonomy(ctx, datastore.Owner{Kind: datastore.OwnerCatalog, ID: catalogID},
			datastore.TaxonomyFromRecord(rec))
		logLinkStats("catalog", catalogID, stats)
		report.Refreshed++
	}

	slog.Info("Catalog refresh finished", "checked", report.Checked,
		"refreshed", report.Refreshed, "failed", report.Failed)
	return report, nil
}

// errExhausted builds the caller-facing error once every source has failed.
func errExhausted(target bgg.Target, cause error) error {
	if target.IsBGG() {
		return gserrors.NewExhaustedError(MsgBGGUnavailable, cause)
	}
	if errors.Is(cause, extract.ErrNoTitle) {
		return gserrors.NewExhaustedError(extract.MsgNoTitle, cause)
	}
	return gserrors.NewExhaustedError(MsgPageUnavailable, cause)
}

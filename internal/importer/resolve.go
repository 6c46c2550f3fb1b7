package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/datastore"
	"github.com/lepinkainen/gameshelf/internal/enrichment"
	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/metrics"
)

var errNoTitle = errors.New("source returned a record without a title")

// resolve runs the whole pipeline for one target. fallback, when set, is used
// like an unenriched catalog entry: it fills gaps and stands in for the
// sources if all of them fail.
func (i *Importer) resolve(ctx context.Context, target bgg.Target, fallback *game.Record) (*game.Record, error) {
	seed, authoritative := i.catalogSeed(ctx, target)
	if seed == nil {
		seed = fallback
	}

	rec, chainErr := i.runChain(ctx, target)
	switch {
	case rec != nil:
	case seed != nil:
		slog.Info("All sources failed, using catalog entry", "url", target.URL, "title", seed.Title)
		rec = copyRecord(seed)
	case target.IsBGG() && target.Slug != "":
		slog.Warn("All sources failed, deriving title from URL", "url", target.URL, "error", chainErr)
		rec = &game.Record{Title: bgg.TitleFromSlug(target.Slug), Source: SourceURLSlug}
	default:
		return nil, errExhausted(target, chainErr)
	}

	if target.IsBGG() {
		rec.ExternalID = target.ID
		rec.SourceURL = target.CanonicalURL()
	} else if rec.SourceURL == "" {
		rec.SourceURL = target.URL
	}

	i.supplementImages(ctx, rec)

	if seed != nil {
		if authoritative {
			rec.Description = seed.Description
		}
		rec.FillGaps(seed)
	}

	if !authoritative {
		i.enrich(ctx, rec)
	}

	rec.ApplyDefaults()
	return rec, nil
}

// catalogSeed returns the catalog entry for a BGG target when its description
// is already enriched. Such an entry is authoritative for the description.
func (i *Importer) catalogSeed(ctx context.Context, target bgg.Target) (*game.Record, bool) {
	if i.store == nil || !target.IsBGG() {
		return nil, false
	}

	entry, err := i.store.CatalogByExternalID(ctx, target.ID)
	if err != nil {
		if !errors.Is(err, datastore.ErrNotFound) {
			slog.Warn("Catalog lookup failed", "bgg_id", target.ID, "error", err)
		}
		return nil, false
	}
	if !enrichment.HasMarker(entry.Description) {
		return nil, false
	}

	slog.Debug("Found enriched catalog entry", "bgg_id", target.ID, "title", entry.Title)
	return entry.Record(), true
}

// runChain tries each applicable source in order and returns the first
// usable record. The returned error joins every source failure.
func (i *Importer) runChain(ctx context.Context, target bgg.Target) (*game.Record, error) {
	var errs []error

	for _, src := range i.sources {
		if !src.Applies(target) {
			i.metrics.RecordSourceAttempt(src.Name(), metrics.OutcomeSkipped)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := i.attempt(ctx, src, target)
		if err == nil {
			i.metrics.RecordSourceAttempt(src.Name(), metrics.OutcomeSuccess)
			slog.Debug("Source succeeded", "source", src.Name(), "url", target.URL, "title", rec.Title)
			return rec, nil
		}

		i.metrics.RecordSourceAttempt(src.Name(), classify(err))
		slog.Warn("Source failed, trying next", "source", src.Name(), "url", target.URL, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}

	if len(errs) == 0 {
		return nil, errors.New("no source applies to this URL")
	}
	return nil, errors.Join(errs...)
}

func (i *Importer) attempt(ctx context.Context, src Source, target bgg.Target) (*game.Record, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.sourceTimeout)
	defer cancel()

	rec, err := src.Fetch(attemptCtx, target)
	if err != nil {
		return nil, err
	}
	if !rec.Usable() {
		return nil, errNoTitle
	}
	if rec.Source == "" {
		rec.Source = src.Name()
	}
	return rec, nil
}

func classify(err error) string {
	switch {
	case gserrors.IsRateLimitError(err):
		return metrics.OutcomeRateLimited
	case gserrors.IsSourceBlockedError(err):
		return metrics.OutcomeBlocked
	case errors.Is(err, errNoTitle):
		return metrics.OutcomeUnusable
	default:
		return metrics.OutcomeFailed
	}
}

// supplementImages tops up the additional images from the BGG gallery and
// promotes the first gallery image when the record has no primary image.
func (i *Importer) supplementImages(ctx context.Context, rec *game.Record) {
	if i.gallery == nil || rec.ExternalID == "" {
		return
	}
	if rec.ImageURL != "" && len(rec.AdditionalImages) >= game.MaxAdditionalImages {
		return
	}

	images, err := i.gallery.FetchImages(ctx, rec.ExternalID)
	if err != nil {
		slog.Warn("Gallery fetch failed", "bgg_id", rec.ExternalID, "error", err)
		return
	}
	if len(images) == 0 {
		return
	}

	if rec.ImageURL == "" {
		rec.ImageURL = images[0]
		images = images[1:]
	}
	rec.AdditionalImages = mergeImages(rec.ImageURL, rec.AdditionalImages, images, game.MaxAdditionalImages)
}

func mergeImages(primary string, existing, extra []string, limit int) []string {
	seen := map[string]bool{primary: true}
	merged := make([]string, 0, limit)
	for _, list := range [][]string{existing, extra} {
		for _, img := range list {
			if len(merged) == limit {
				return merged
			}
			if img == "" || seen[img] {
				continue
			}
			seen[img] = true
			merged = append(merged, img)
		}
	}
	return merged
}

func (i *Importer) enrich(ctx context.Context, rec *game.Record) {
	if i.enricher == nil {
		return
	}

	gameCtx := enrichment.Context{
		Mechanics:   rec.Mechanics,
		Difficulty:  rec.Difficulty,
		PlayTime:    rec.PlayTime,
		IsExpansion: rec.IsExpansion,
	}
	if rec.MinPlayers != nil {
		gameCtx.MinPlayers = *rec.MinPlayers
	}
	if rec.MaxPlayers != nil {
		gameCtx.MaxPlayers = *rec.MaxPlayers
	}

	description, outcome := i.enricher.Enrich(ctx, rec.Title, rec.Description, gameCtx)
	rec.Description = description
	i.metrics.RecordEnrichment(string(outcome))
}

func copyRecord(r *game.Record) *game.Record {
	c := *r
	c.AdditionalImages = append([]string(nil), r.AdditionalImages...)
	c.Mechanics = append([]string(nil), r.Mechanics...)
	c.Designers = append([]string(nil), r.Designers...)
	c.Artists = append([]string(nil), r.Artists...)
	return &c
}

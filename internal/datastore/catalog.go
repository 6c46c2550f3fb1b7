package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lepinkainen/gameshelf/internal/enrichment"
	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/lepinkainen/gameshelf/internal/normalize"
)

// upsertCatalogSQL is a single atomic upsert. On conflict it keeps the
// stored additional_images when the new list is empty, and keeps a stored
// enriched description when the incoming one is not enriched. NULL
// attributes never replace stored values.
const upsertCatalogSQL = `
INSERT INTO catalog (
	id, bgg_id, bgg_url, title, description, image_url, additional_images,
	min_players, max_players, play_time, difficulty, game_type, weight,
	play_time_minutes, suggested_age, is_expansion, community_rating,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(bgg_id) DO UPDATE SET
	bgg_url = COALESCE(NULLIF(excluded.bgg_url, ''), catalog.bgg_url),
	title = excluded.title,
	description = CASE
		WHEN excluded.description = '' THEN catalog.description
		WHEN instr(catalog.description, ?) > 0 AND instr(excluded.description, ?) = 0 THEN catalog.description
		ELSE excluded.description
	END,
	image_url = COALESCE(NULLIF(excluded.image_url, ''), catalog.image_url),
	additional_images = CASE
		WHEN excluded.additional_images = '[]' THEN catalog.additional_images
		ELSE excluded.additional_images
	END,
	min_players = COALESCE(excluded.min_players, catalog.min_players),
	max_players = COALESCE(excluded.max_players, catalog.max_players),
	play_time = COALESCE(excluded.play_time, catalog.play_time),
	difficulty = COALESCE(excluded.difficulty, catalog.difficulty),
	game_type = COALESCE(excluded.game_type, catalog.game_type),
	weight = COALESCE(excluded.weight, catalog.weight),
	play_time_minutes = COALESCE(excluded.play_time_minutes, catalog.play_time_minutes),
	suggested_age = COALESCE(NULLIF(excluded.suggested_age, ''), catalog.suggested_age),
	is_expansion = excluded.is_expansion,
	community_rating = COALESCE(excluded.community_rating, catalog.community_rating),
	updated_at = excluded.updated_at
RETURNING id`

const catalogColumns = `id, bgg_id, bgg_url, title, description, image_url, additional_images,
	min_players, max_players, play_time, difficulty, game_type, weight, play_time_minutes,
	suggested_age, is_expansion, community_rating`

// UpsertCatalog creates or refreshes the shared catalog entry for the
// record's external id and returns the entry id.
func (s *SQLiteStore) UpsertCatalog(ctx context.Context, rec *game.Record) (string, error) {
	if rec.ExternalID == "" {
		return "", errors.New("catalog entries require an external id")
	}
	if !rec.Usable() {
		return "", errors.New("refusing to upsert catalog entry without a title")
	}

	difficulty := catalogString(rec, game.FieldDifficulty, rec.Difficulty)
	playTime := catalogString(rec, game.FieldPlayTime, rec.PlayTime)

	var weight sql.NullFloat64
	if w, ok := normalize.DifficultyWeight(difficulty.String); ok {
		weight = sql.NullFloat64{Float64: w, Valid: true}
	}
	var minutes sql.NullInt64
	if m, ok := normalize.PlayTimeMinutes(playTime.String); ok {
		minutes = sql.NullInt64{Int64: int64(m), Valid: true}
	}

	suggestedAge := rec.SuggestedAge
	if rec.IsDefaulted(game.FieldSuggestedAge) {
		suggestedAge = ""
	}

	now := s.timestamp()
	var id string
	err := s.db.QueryRowContext(ctx, upsertCatalogSQL,
		uuid.NewString(),
		rec.ExternalID,
		rec.SourceURL,
		rec.Title,
		rec.Description,
		rec.ImageURL,
		encodeImages(rec.AdditionalImages),
		catalogInt(rec, game.FieldMinPlayers, rec.MinPlayers),
		catalogInt(rec, game.FieldMaxPlayers, rec.MaxPlayers),
		playTime,
		difficulty,
		catalogString(rec, game.FieldGameType, rec.GameType),
		weight,
		minutes,
		suggestedAge,
		rec.IsExpansion,
		nullFloat(rec.CommunityRating),
		now,
		now,
		enrichment.Marker,
		enrichment.Marker,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert catalog entry: %w", err)
	}
	return id, nil
}

// catalogString and catalogInt bind defaulted attributes as NULL so a thin
// record cannot overwrite fetched catalog data.
func catalogString(rec *game.Record, field, value string) sql.NullString {
	if rec.IsDefaulted(field) {
		return sql.NullString{}
	}
	return nullString(value)
}

func catalogInt(rec *game.Record, field string, value *int) sql.NullInt64 {
	if rec.IsDefaulted(field) {
		return sql.NullInt64{}
	}
	return nullInt(value)
}

// CatalogByExternalID loads a catalog entry and its taxonomy names.
func (s *SQLiteStore) CatalogByExternalID(ctx context.Context, externalID string) (*CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM catalog WHERE bgg_id = ?`, externalID)
	entry, err := scanCatalog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog entry %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog entry: %w", err)
	}

	if err := s.loadCatalogTaxonomy(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// StaleCatalog returns up to limit catalog entries whose description has
// not been enriched yet, least recently updated first.
func (s *SQLiteStore) StaleCatalog(ctx context.Context, limit int) ([]CatalogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+catalogColumns+` FROM catalog WHERE instr(description, ?) = 0 ORDER BY updated_at ASC LIMIT ?`,
		enrichment.Marker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale catalog entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []CatalogEntry
	for rows.Next() {
		entry, err := scanCatalog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalog(row rowScanner) (*CatalogEntry, error) {
	var (
		c                              CatalogEntry
		images                         string
		minPlayers, maxPlayers         sql.NullInt64
		playTime, difficulty, gameType sql.NullString
		weight, rating                 sql.NullFloat64
		minutes                        sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.BGGID, &c.BGGURL, &c.Title, &c.Description, &c.ImageURL, &images,
		&minPlayers, &maxPlayers, &playTime, &difficulty, &gameType, &weight, &minutes,
		&c.SuggestedAge, &c.IsExpansion, &rating)
	if err != nil {
		return nil, err
	}

	c.AdditionalImages = decodeImages(images)
	c.MinPlayers = intFromNull(minPlayers)
	c.MaxPlayers = intFromNull(maxPlayers)
	c.PlayTime = playTime.String
	c.Difficulty = difficulty.String
	c.GameType = gameType.String
	c.Weight = floatFromNull(weight)
	c.PlayTimeMinutes = intFromNull(minutes)
	c.CommunityRating = floatFromNull(rating)
	return &c, nil
}

func (s *SQLiteStore) loadCatalogTaxonomy(ctx context.Context, c *CatalogEntry) error {
	var err error
	if c.Mechanics, err = s.catalogNames(ctx, kindMechanic, c.ID); err != nil {
		return err
	}
	if c.Designers, err = s.catalogNames(ctx, kindDesigner, c.ID); err != nil {
		return err
	}
	if c.Artists, err = s.catalogNames(ctx, kindArtist, c.ID); err != nil {
		return err
	}
	publishers, err := s.catalogNames(ctx, kindPublisher, c.ID)
	if err != nil {
		return err
	}
	if len(publishers) > 0 {
		c.Publisher = publishers[0]
	}
	return nil
}

func (s *SQLiteStore) catalogNames(ctx context.Context, kind entityKind, catalogID string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT e.name FROM %s e JOIN %s j ON j.%s = e.id WHERE j.catalog_id = ? ORDER BY e.name`,
		kind.table, kind.catalogJoin, kind.column)

	rows, err := s.db.QueryContext(ctx, query, catalogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", kind.table, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, strings.TrimSpace(name))
	}
	return names, rows.Err()
}

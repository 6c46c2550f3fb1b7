package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lepinkainen/gameshelf/internal/normalize"
)

const gameColumns = `id, library_id, title, slug, description, image_url, additional_images,
	min_players, max_players, play_time, difficulty, game_type, suggested_age, publisher_id,
	bgg_id, bgg_url, is_expansion, parent_game_id, catalog_id, for_sale, sale_price,
	sale_condition, location_room, location_shelf, location_misc, sleeved,
	upgraded_components, crowdfunded_exclusive, inserts`

// FindExisting looks up a library game by canonical URL, then external id,
// then title slug. The first hit wins.
func (s *SQLiteStore) FindExisting(ctx context.Context, c Candidate, libraryID string) (string, error) {
	if c.URL != "" {
		id, err := s.findGameID(ctx, `SELECT id FROM games WHERE library_id = ? AND bgg_url = ? LIMIT 1`, libraryID, c.URL)
		if err != nil || id != "" {
			return id, err
		}
	}

	if c.ExternalID != "" {
		id, err := s.findGameID(ctx, `SELECT id FROM games WHERE library_id = ? AND bgg_id = ? LIMIT 1`, libraryID, c.ExternalID)
		if err != nil || id != "" {
			return id, err
		}
	}

	if slug := normalize.Slug(c.Title); slug != "" {
		return s.findGameID(ctx, `SELECT id FROM games WHERE library_id = ? AND slug = ? LIMIT 1`, libraryID, slug)
	}

	return "", nil
}

// FindBaseGame returns the non-expansion game in the library whose slug
// matches baseTitle.
func (s *SQLiteStore) FindBaseGame(ctx context.Context, libraryID, baseTitle string) (string, error) {
	slug := normalize.Slug(baseTitle)
	if slug == "" {
		return "", nil
	}
	return s.findGameID(ctx,
		`SELECT id FROM games WHERE library_id = ? AND slug = ? AND is_expansion = 0 LIMIT 1`,
		libraryID, slug)
}

func (s *SQLiteStore) findGameID(ctx context.Context, query string, args ...any) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query games: %w", err)
	}
	return id, nil
}

// InsertGame creates a library game row and returns its id.
func (s *SQLiteStore) InsertGame(ctx context.Context, g *Game) (string, error) {
	if strings.TrimSpace(g.Title) == "" {
		return "", errors.New("refusing to insert game without a title")
	}

	id := uuid.NewString()
	now := s.timestamp()
	args := append([]any{id}, gameArgs(g)...)
	args = append(args, now, now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 31), ", ")
	query := `INSERT INTO games (` + gameColumns + `, created_at, updated_at) VALUES (` + placeholders + `)`

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to insert game: %w", err)
	}

	slog.Debug("Inserted game", "id", id, "library_id", g.LibraryID, "title", g.Title)
	return id, nil
}

// UpdateGame rewrites the pipeline-owned and passthrough fields of an
// existing row. Empty link columns keep their stored value.
func (s *SQLiteStore) UpdateGame(ctx context.Context, id string, g *Game) error {
	if strings.TrimSpace(g.Title) == "" {
		return errors.New("refusing to update game without a title")
	}

	args := gameArgs(g)
	args = append(args, s.timestamp(), id)

	query := `UPDATE games SET
		library_id = ?, title = ?, slug = ?, description = ?, image_url = ?, additional_images = ?,
		min_players = ?, max_players = ?, play_time = ?, difficulty = ?, game_type = ?,
		suggested_age = ?, publisher_id = COALESCE(?, publisher_id), bgg_id = ?, bgg_url = ?,
		is_expansion = ?, parent_game_id = COALESCE(?, parent_game_id),
		catalog_id = COALESCE(?, catalog_id), for_sale = ?, sale_price = ?, sale_condition = ?,
		location_room = ?, location_shelf = ?, location_misc = ?, sleeved = ?,
		upgraded_components = ?, crowdfunded_exclusive = ?, inserts = ?, updated_at = ?
		WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return nil
}

// gameArgs returns the column values after id, in gameColumns order.
func gameArgs(g *Game) []any {
	condition, _ := normalize.SaleCondition(g.SaleCondition)
	return []any{
		g.LibraryID,
		g.Title,
		normalize.Slug(g.Title),
		g.Description,
		g.ImageURL,
		encodeImages(g.AdditionalImages),
		nullInt(g.MinPlayers),
		nullInt(g.MaxPlayers),
		nullString(g.PlayTime),
		nullString(g.Difficulty),
		nullString(g.GameType),
		g.SuggestedAge,
		nullString(g.PublisherID),
		nullString(g.BGGID),
		nullString(g.BGGURL),
		g.IsExpansion,
		nullString(g.ParentGameID),
		nullString(g.CatalogID),
		g.ForSale,
		nullFloat(g.SalePrice),
		nullString(condition),
		g.LocationRoom,
		g.LocationShelf,
		g.LocationMisc,
		g.Sleeved,
		g.UpgradedComponents,
		g.CrowdfundedExclusive,
		g.Inserts,
	}
}

// GetGame loads a library game by id.
func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)

	var (
		g                                  Game
		images                             string
		minPlayers, maxPlayers             sql.NullInt64
		playTime, difficulty, gameType     sql.NullString
		publisherID, bggID, bggURL         sql.NullString
		parentID, catalogID, saleCondition sql.NullString
		salePrice                          sql.NullFloat64
	)
	err := row.Scan(&g.ID, &g.LibraryID, &g.Title, &g.Slug, &g.Description, &g.ImageURL, &images,
		&minPlayers, &maxPlayers, &playTime, &difficulty, &gameType, &g.SuggestedAge, &publisherID,
		&bggID, &bggURL, &g.IsExpansion, &parentID, &catalogID, &g.ForSale, &salePrice,
		&saleCondition, &g.LocationRoom, &g.LocationShelf, &g.LocationMisc, &g.Sleeved,
		&g.UpgradedComponents, &g.CrowdfundedExclusive, &g.Inserts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	g.AdditionalImages = decodeImages(images)
	g.MinPlayers = intFromNull(minPlayers)
	g.MaxPlayers = intFromNull(maxPlayers)
	g.PlayTime = playTime.String
	g.Difficulty = difficulty.String
	g.GameType = gameType.String
	g.PublisherID = publisherID.String
	g.BGGID = bggID.String
	g.BGGURL = bggURL.String
	g.ParentGameID = parentID.String
	g.CatalogID = catalogID.String
	g.SaleCondition = saleCondition.String
	g.SalePrice = floatFromNull(salePrice)
	return &g, nil
}

// LinkGameCatalog points a library game at its shared catalog entry.
func (s *SQLiteStore) LinkGameCatalog(ctx context.Context, gameID, catalogID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE games SET catalog_id = ? WHERE id = ?`, catalogID, gameID); err != nil {
		return fmt.Errorf("failed to link game to catalog: %w", err)
	}
	return nil
}

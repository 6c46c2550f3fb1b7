package datastore

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/gameshelf/internal/normalize"
)

// enumCheck renders a CHECK clause allowing NULL or one of values.
func enumCheck(column string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprintf("CHECK (%s IS NULL OR %s IN (%s))", column, column, strings.Join(quoted, ", "))
}

func taxonomySchema(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY NOT NULL,
	name TEXT NOT NULL UNIQUE
);`, table)
}

func joinSchema(table, ownerColumn, ownerTable, entityColumn, entityTable string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	%[2]s TEXT NOT NULL REFERENCES %[3]s(id) ON DELETE CASCADE,
	%[4]s TEXT NOT NULL REFERENCES %[5]s(id) ON DELETE CASCADE,
	PRIMARY KEY (%[2]s, %[4]s)
);`, table, ownerColumn, ownerTable, entityColumn, entityTable)
}

var catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog (
	id TEXT PRIMARY KEY NOT NULL,
	bgg_id TEXT NOT NULL UNIQUE,
	bgg_url TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	additional_images TEXT NOT NULL DEFAULT '[]',
	min_players INTEGER,
	max_players INTEGER,
	play_time TEXT ` + enumCheck("play_time", normalize.PlayTimes()) + `,
	difficulty TEXT ` + enumCheck("difficulty", normalize.Difficulties()) + `,
	game_type TEXT ` + enumCheck("game_type", normalize.GameTypes()) + `,
	weight REAL,
	play_time_minutes INTEGER,
	suggested_age TEXT NOT NULL DEFAULT '',
	is_expansion INTEGER NOT NULL DEFAULT 0,
	community_rating REAL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_catalog_updated_at ON catalog(updated_at);
`

var gamesSchema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY NOT NULL,
	library_id TEXT NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	additional_images TEXT NOT NULL DEFAULT '[]',
	min_players INTEGER,
	max_players INTEGER,
	play_time TEXT ` + enumCheck("play_time", normalize.PlayTimes()) + `,
	difficulty TEXT ` + enumCheck("difficulty", normalize.Difficulties()) + `,
	game_type TEXT ` + enumCheck("game_type", normalize.GameTypes()) + `,
	suggested_age TEXT NOT NULL DEFAULT '',
	publisher_id TEXT REFERENCES publishers(id) ON DELETE SET NULL,
	bgg_id TEXT,
	bgg_url TEXT,
	is_expansion INTEGER NOT NULL DEFAULT 0,
	parent_game_id TEXT REFERENCES games(id) ON DELETE SET NULL,
	catalog_id TEXT REFERENCES catalog(id) ON DELETE SET NULL,
	for_sale INTEGER NOT NULL DEFAULT 0,
	sale_price REAL,
	sale_condition TEXT,
	location_room TEXT NOT NULL DEFAULT '',
	location_shelf TEXT NOT NULL DEFAULT '',
	location_misc TEXT NOT NULL DEFAULT '',
	sleeved INTEGER NOT NULL DEFAULT 0,
	upgraded_components INTEGER NOT NULL DEFAULT 0,
	crowdfunded_exclusive INTEGER NOT NULL DEFAULT 0,
	inserts INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (library_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_games_library_url ON games(library_id, bgg_url);
CREATE INDEX IF NOT EXISTS idx_games_library_bgg_id ON games(library_id, bgg_id);
`

// allSchemas is ordered so that referenced tables exist first.
var allSchemas = []string{
	taxonomySchema("mechanics"),
	taxonomySchema("publishers"),
	taxonomySchema("designers"),
	taxonomySchema("artists"),
	catalogSchema,
	gamesSchema,
	joinSchema("game_mechanics", "game_id", "games", "mechanic_id", "mechanics"),
	joinSchema("game_designers", "game_id", "games", "designer_id", "designers"),
	joinSchema("game_artists", "game_id", "games", "artist_id", "artists"),
	joinSchema("catalog_mechanics", "catalog_id", "catalog", "mechanic_id", "mechanics"),
	joinSchema("catalog_publishers", "catalog_id", "catalog", "publisher_id", "publishers"),
	joinSchema("catalog_designers", "catalog_id", "catalog", "designer_id", "designers"),
	joinSchema("catalog_artists", "catalog_id", "catalog", "artist_id", "artists"),
}

package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// entityKind describes one taxonomy table and the joins that reference it.
type entityKind struct {
	name        string
	table       string
	column      string
	gameJoin    string // empty when games reference the entity directly
	catalogJoin string
}

var (
	kindMechanic  = entityKind{name: "mechanic", table: "mechanics", column: "mechanic_id", gameJoin: "game_mechanics", catalogJoin: "catalog_mechanics"}
	kindPublisher = entityKind{name: "publisher", table: "publishers", column: "publisher_id", catalogJoin: "catalog_publishers"}
	kindDesigner  = entityKind{name: "designer", table: "designers", column: "designer_id", gameJoin: "game_designers", catalogJoin: "catalog_designers"}
	kindArtist    = entityKind{name: "artist", table: "artists", column: "artist_id", gameJoin: "game_artists", catalogJoin: "catalog_artists"}
)

// LinkTaxonomy links every named entity to owner. Each entity is resolved
// and linked independently; failures are logged and counted, never returned.
func (s *SQLiteStore) LinkTaxonomy(ctx context.Context, owner Owner, tax Taxonomy) LinkStats {
	var stats LinkStats

	link := func(kind entityKind, names []string) {
		for _, name := range names {
			if err := s.linkEntity(ctx, owner, kind, name); err != nil {
				stats.Failed++
				slog.Warn("Failed to link taxonomy entity",
					"kind", kind.name, "name", name, "owner", owner.ID, "error", err)
				continue
			}
			stats.Linked++
		}
	}

	link(kindMechanic, tax.Mechanics)
	link(kindDesigner, tax.Designers)
	link(kindArtist, tax.Artists)
	if strings.TrimSpace(tax.Publisher) != "" {
		link(kindPublisher, []string{tax.Publisher})
	}

	return stats
}

func (s *SQLiteStore) linkEntity(ctx context.Context, owner Owner, kind entityKind, name string) error {
	entityID, err := s.findOrCreate(ctx, kind, name)
	if err != nil {
		return err
	}

	switch owner.Kind {
	case OwnerCatalog:
		return s.upsertJoin(ctx, kind.catalogJoin, "catalog_id", kind.column, owner.ID, entityID)
	case OwnerGame:
		if kind.gameJoin == "" {
			// games carry their publisher as a column
			_, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE games SET %s = ? WHERE id = ?`, kind.column), entityID, owner.ID)
			return err
		}
		return s.upsertJoin(ctx, kind.gameJoin, "game_id", kind.column, owner.ID, entityID)
	default:
		return fmt.Errorf("unknown owner kind %d", owner.Kind)
	}
}

// findOrCreate resolves an entity by exact name, inserting it when missing.
// The insert ignores conflicts and the row is always re-read, so two
// concurrent imports creating the same name converge on one id.
func (s *SQLiteStore) findOrCreate(ctx context.Context, kind entityKind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("empty entity name")
	}

	selectQuery := fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, kind.table)

	var id string
	err := s.db.QueryRowContext(ctx, selectQuery, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up %s: %w", kind.name, err)
	}

	insertQuery := fmt.Sprintf(`INSERT INTO %s (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, kind.table)
	if _, err := s.db.ExecContext(ctx, insertQuery, uuid.NewString(), name); err != nil {
		return "", fmt.Errorf("failed to insert %s: %w", kind.name, err)
	}

	if err := s.db.QueryRowContext(ctx, selectQuery, name).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to re-read %s: %w", kind.name, err)
	}
	return id, nil
}

func (s *SQLiteStore) upsertJoin(ctx context.Context, table, ownerColumn, entityColumn, ownerID, entityID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING`, table, ownerColumn, entityColumn)
	if _, err := s.db.ExecContext(ctx, query, ownerID, entityID); err != nil {
		return fmt.Errorf("failed to link %s: %w", table, err)
	}
	return nil
}

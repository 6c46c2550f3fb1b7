package datastore

import (
	"context"
	"errors"

	"github.com/lepinkainen/gameshelf/internal/game"
)

// ErrNotFound is returned when a lookup by key has no row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations used by the import pipeline
type Store interface {
	// FindExisting returns the id of the library game matching the candidate,
	// or "" when there is none
	FindExisting(ctx context.Context, c Candidate, libraryID string) (string, error)

	// FindBaseGame returns the id of a non-expansion game with the given title
	FindBaseGame(ctx context.Context, libraryID, baseTitle string) (string, error)

	InsertGame(ctx context.Context, g *Game) (string, error)
	UpdateGame(ctx context.Context, id string, g *Game) error
	GetGame(ctx context.Context, id string) (*Game, error)

	CatalogByExternalID(ctx context.Context, externalID string) (*CatalogEntry, error)
	UpsertCatalog(ctx context.Context, rec *game.Record) (string, error)
	StaleCatalog(ctx context.Context, limit int) ([]CatalogEntry, error)

	LinkGameCatalog(ctx context.Context, gameID, catalogID string) error
	LinkTaxonomy(ctx context.Context, owner Owner, tax Taxonomy) LinkStats

	Close() error
}

// Candidate carries the keys used for duplicate detection.
type Candidate struct {
	URL        string
	ExternalID string
	Title      string
}

// Passthrough holds the library-owned fields that the import request
// carries through unchanged.
type Passthrough struct {
	ParentGameID         string   `json:"parent_game_id,omitempty"`
	ForSale              bool     `json:"for_sale"`
	SalePrice            *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	SaleCondition        string   `json:"sale_condition,omitempty"`
	LocationRoom         string   `json:"location_room,omitempty"`
	LocationShelf        string   `json:"location_shelf,omitempty"`
	LocationMisc         string   `json:"location_misc,omitempty"`
	Sleeved              bool     `json:"sleeved"`
	UpgradedComponents   bool     `json:"upgraded_components"`
	CrowdfundedExclusive bool     `json:"crowdfunded_exclusive"`
	Inserts              bool     `json:"inserts"`
}

// Game is a library-scoped game row.
type Game struct {
	ID               string   `json:"id"`
	LibraryID        string   `json:"library_id"`
	Title            string   `json:"title"`
	Slug             string   `json:"slug"`
	Description      string   `json:"description,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	AdditionalImages []string `json:"additional_images"`
	MinPlayers       *int     `json:"min_players,omitempty"`
	MaxPlayers       *int     `json:"max_players,omitempty"`
	PlayTime         string   `json:"play_time,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty"`
	GameType         string   `json:"game_type,omitempty"`
	SuggestedAge     string   `json:"suggested_age,omitempty"`
	PublisherID      string   `json:"publisher_id,omitempty"`
	BGGID            string   `json:"bgg_id,omitempty"`
	BGGURL           string   `json:"bgg_url,omitempty"`
	IsExpansion      bool     `json:"is_expansion"`
	CatalogID        string   `json:"catalog_id,omitempty"`

	Passthrough
}

// GameFromRecord maps a resolved record onto a library game row.
func GameFromRecord(libraryID string, rec *game.Record, extra Passthrough) *Game {
	return &Game{
		LibraryID:        libraryID,
		Title:            rec.Title,
		Description:      rec.Description,
		ImageURL:         rec.ImageURL,
		AdditionalImages: rec.AdditionalImages,
		MinPlayers:       rec.MinPlayers,
		MaxPlayers:       rec.MaxPlayers,
		PlayTime:         rec.PlayTime,
		Difficulty:       rec.Difficulty,
		GameType:         rec.GameType,
		SuggestedAge:     rec.SuggestedAge,
		BGGID:            rec.ExternalID,
		BGGURL:           rec.SourceURL,
		IsExpansion:      rec.IsExpansion,
		Passthrough:      extra,
	}
}

// CatalogEntry is a shared, library-independent catalog row with its
// linked taxonomy names.
type CatalogEntry struct {
	ID               string
	BGGID            string
	BGGURL           string
	Title            string
	Description      string
	ImageURL         string
	AdditionalImages []string
	MinPlayers       *int
	MaxPlayers       *int
	PlayTime         string
	Difficulty       string
	GameType         string
	Weight           *float64
	PlayTimeMinutes  *int
	SuggestedAge     string
	IsExpansion      bool
	CommunityRating  *float64
	Mechanics        []string
	Designers        []string
	Artists          []string
	Publisher        string
}

// Record converts the catalog entry back into a pipeline record.
func (c *CatalogEntry) Record() *game.Record {
	return &game.Record{
		ExternalID:       c.BGGID,
		SourceURL:        c.BGGURL,
		Title:            c.Title,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		AdditionalImages: c.AdditionalImages,
		MinPlayers:       c.MinPlayers,
		MaxPlayers:       c.MaxPlayers,
		SuggestedAge:     c.SuggestedAge,
		PlayTime:         c.PlayTime,
		Difficulty:       c.Difficulty,
		GameType:         c.GameType,
		Mechanics:        c.Mechanics,
		Designers:        c.Designers,
		Artists:          c.Artists,
		Publisher:        c.Publisher,
		IsExpansion:      c.IsExpansion,
		CommunityRating:  c.CommunityRating,
		Source:           "catalog",
	}
}

// OwnerKind selects which join tables a taxonomy link writes to.
type OwnerKind int

const (
	OwnerGame OwnerKind = iota
	OwnerCatalog
)

// Owner is the row taxonomy entities are linked to.
type Owner struct {
	Kind OwnerKind
	ID   string
}

// Taxonomy lists the entity names to link.
type Taxonomy struct {
	Mechanics []string
	Publisher string
	Designers []string
	Artists   []string
}

// TaxonomyFromRecord extracts the taxonomy names of a record.
func TaxonomyFromRecord(rec *game.Record) Taxonomy {
	return Taxonomy{
		Mechanics: rec.Mechanics,
		Publisher: rec.Publisher,
		Designers: rec.Designers,
		Artists:   rec.Artists,
	}
}

// LinkStats counts the outcome of a LinkTaxonomy call.
type LinkStats struct {
	Linked int
	Failed int
}

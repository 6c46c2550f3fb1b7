package datastore

import (
	"context"
	"testing"

	"github.com/lepinkainen/gameshelf/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGetGame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	price := 25.0

	id, err := s.InsertGame(ctx, &Game{
		LibraryID:        "lib-1",
		Title:            "Catan",
		Description:      "Trade and build.",
		AdditionalImages: []string{"https://cf.geekdo-images.com/a.jpg"},
		MinPlayers:       game.IntPtr(3),
		MaxPlayers:       game.IntPtr(4),
		PlayTime:         "60+ Minutes",
		Difficulty:       "3 - Medium",
		GameType:         "Board Game",
		SuggestedAge:     "10+",
		BGGID:            "13",
		BGGURL:           "https://boardgamegeek.com/boardgame/13",
		Passthrough: Passthrough{
			ForSale:       true,
			SalePrice:     &price,
			SaleCondition: "New",
			LocationShelf: "B2",
			Sleeved:       true,
		},
	})
	require.NoError(t, err)

	g, err := s.GetGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "catan", g.Slug)
	assert.Equal(t, []string{"https://cf.geekdo-images.com/a.jpg"}, g.AdditionalImages)
	assert.Equal(t, 3, *g.MinPlayers)
	assert.Equal(t, "New/Sealed", g.SaleCondition)
	assert.Equal(t, 25.0, *g.SalePrice)
	assert.True(t, g.ForSale)
	assert.True(t, g.Sleeved)
	assert.False(t, g.IsExpansion)
	assert.Equal(t, "B2", g.LocationShelf)
}

func TestGetGameNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetGame(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertGameRequiresTitle(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertGame(context.Background(), &Game{LibraryID: "lib", Title: "  "})
	require.Error(t, err)
}

func TestInsertGameSlugUniquePerLibrary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertGame(ctx, &Game{LibraryID: "lib-1", Title: "Catan"})
	require.NoError(t, err)
	_, err = s.InsertGame(ctx, &Game{LibraryID: "lib-1", Title: "CATAN!"})
	require.Error(t, err)
	_, err = s.InsertGame(ctx, &Game{LibraryID: "lib-2", Title: "Catan"})
	require.NoError(t, err)
}

func TestFindExistingPrecedence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	byURL, err := s.InsertGame(ctx, &Game{LibraryID: "lib", Title: "Old Name", BGGURL: "https://boardgamegeek.com/boardgame/13"})
	require.NoError(t, err)
	byID, err := s.InsertGame(ctx, &Game{LibraryID: "lib", Title: "Other", BGGID: "13"})
	require.NoError(t, err)
	bySlug, err := s.InsertGame(ctx, &Game{LibraryID: "lib", Title: "Catan"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		candidate Candidate
		want      string
	}{
		{"url beats id and slug", Candidate{URL: "https://boardgamegeek.com/boardgame/13", ExternalID: "13", Title: "Catan"}, byURL},
		{"id beats slug", Candidate{URL: "https://example.com/catan", ExternalID: "13", Title: "Catan"}, byID},
		{"slug fallback", Candidate{Title: "catan"}, bySlug},
		{"no match", Candidate{URL: "https://example.com/x", ExternalID: "99", Title: "Azul"}, ""},
		{"empty candidate", Candidate{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindExisting(ctx, tt.candidate, "lib")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindExistingIsLibraryScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertGame(ctx, &Game{LibraryID: "lib-1", Title: "Catan", BGGID: "13"})
	require.NoError(t, err)

	got, err := s.FindExisting(ctx, Candidate{ExternalID: "13", Title: "Catan"}, "lib-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindBaseGameSkipsExpansions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertGame(ctx, &Game{LibraryID: "lib", Title: "Wingspan: European Expansion", IsExpansion: true})
	require.NoError(t, err)

	got, err := s.FindBaseGame(ctx, "lib", "Wingspan")
	require.NoError(t, err)
	assert.Empty(t, got)

	base, err := s.InsertGame(ctx, &Game{LibraryID: "lib", Title: "Wingspan"})
	require.NoError(t, err)

	got, err = s.FindBaseGame(ctx, "lib", "Wingspan")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = s.FindBaseGame(ctx, "lib", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdateGameKeepsLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertGame(ctx, &Game{LibraryID: "lib", Title: "Catan", BGGID: "13"})
	require.NoError(t, err)
	catalogID, err := s.UpsertCatalog(ctx, &game.Record{ExternalID: "13", Title: "Catan"})
	require.NoError(t, err)
	require.NoError(t, s.LinkGameCatalog(ctx, id, catalogID))

	require.NoError(t, s.UpdateGame(ctx, id, &Game{LibraryID: "lib", Title: "Catan", BGGID: "13", Description: "new"}))

	g, err := s.GetGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, catalogID, g.CatalogID)
	assert.Equal(t, "new", g.Description)

	err = s.UpdateGame(ctx, "missing", &Game{LibraryID: "lib", Title: "X"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGameFromRecord(t *testing.T) {
	rec := &game.Record{ExternalID: "13", SourceURL: "https://boardgamegeek.com/boardgame/13", Title: "Catan", IsExpansion: true}
	g := GameFromRecord("lib", rec, Passthrough{ParentGameID: "p1"})

	assert.Equal(t, "lib", g.LibraryID)
	assert.Equal(t, "13", g.BGGID)
	assert.Equal(t, rec.SourceURL, g.BGGURL)
	assert.True(t, g.IsExpansion)
	assert.Equal(t, "p1", g.ParentGameID)
}

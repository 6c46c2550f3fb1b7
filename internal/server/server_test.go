package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/gameshelf/internal/bgg"
	"github.com/lepinkainen/gameshelf/internal/datastore"
	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
	"github.com/lepinkainen/gameshelf/internal/importer"
	"github.com/lepinkainen/gameshelf/internal/metrics"
)

type fakeImporter struct {
	req          importer.Request
	result       *importer.Result
	err          error
	refreshLimit int
	report       *importer.RefreshReport
	refreshErr   error
}

func (f *fakeImporter) Import(_ context.Context, req importer.Request) (*importer.Result, error) {
	f.req = req
	return f.result, f.err
}

func (f *fakeImporter) Refresh(_ context.Context, limit int) (*importer.RefreshReport, error) {
	f.refreshLimit = limit
	return f.report, f.refreshErr
}

func do(t *testing.T, s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&fakeImporter{}), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestImportSuccess(t *testing.T) {
	imp := &fakeImporter{result: &importer.Result{
		Action: importer.ActionCreated,
		Game:   &datastore.Game{ID: "g1", Title: "Catan", BGGID: "13"},
	}}
	s := New(imp)

	body := `{"url":"https://boardgamegeek.com/boardgame/13/catan","library_id":"lib-1",
		"is_expansion":false,"for_sale":true,"sale_price":20,"location_shelf":"B2","sleeved":true}`
	rec := do(t, s, http.MethodPost, "/api/games/import", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ImportResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, importer.ActionCreated, resp.Action)
	assert.Equal(t, "Catan", resp.Game.Title)

	assert.Equal(t, "lib-1", imp.req.LibraryID)
	require.NotNil(t, imp.req.IsExpansion)
	assert.False(t, *imp.req.IsExpansion)
	assert.True(t, imp.req.Extra.ForSale)
	require.NotNil(t, imp.req.Extra.SalePrice)
	assert.InDelta(t, 20, *imp.req.Extra.SalePrice, 0)
	assert.Equal(t, "B2", imp.req.Extra.LocationShelf)
	assert.True(t, imp.req.Extra.Sleeved)
}

func TestImportLibraryHeaderWins(t *testing.T) {
	imp := &fakeImporter{result: &importer.Result{Action: importer.ActionUpdated, Game: &datastore.Game{}}}
	s := New(imp)

	rec := do(t, s, http.MethodPost, "/api/games/import",
		`{"url":"https://boardgamegeek.com/boardgame/13","library_id":"from-body"}`,
		map[string]string{LibraryHeader: "from-auth"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-auth", imp.req.LibraryID)
	assert.Nil(t, imp.req.IsExpansion)
}

func TestImportValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed json", `{"url":`, "Invalid request body"},
		{"missing url", `{"library_id":"lib-1"}`, "url is required"},
		{"negative price", `{"url":"https://boardgamegeek.com/boardgame/13","sale_price":-1}`, "sale_price must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := &fakeImporter{}
			rec := do(t, New(imp), http.MethodPost, "/api/games/import", tt.body, nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error)
			assert.Empty(t, imp.req.URL, "importer is not called")
		})
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", gserrors.NewValidationError(bgg.MsgCollectionURL), http.StatusBadRequest, bgg.MsgCollectionURL},
		{"exhausted", gserrors.NewExhaustedError(importer.MsgBGGUnavailable, errors.New("rate limited")),
			http.StatusBadRequest, importer.MsgBGGUnavailable},
		{"internal", errors.New("database is locked"), http.StatusInternalServerError,
			"Import failed due to an internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeImporter{err: tt.err})
			rec := do(t, s, http.MethodPost, "/api/games/import",
				`{"url":"https://boardgamegeek.com/boardgame/13","library_id":"lib-1"}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.message, resp.Error)
			assert.NotContains(t, resp.Error, "database", "internal details are not leaked")
		})
	}
}

func TestRefreshAuth(t *testing.T) {
	report := &importer.RefreshReport{Checked: 3, Refreshed: 2, Failed: 1}

	t.Run("disabled without token", func(t *testing.T) {
		rec := do(t, New(&fakeImporter{report: report}), http.MethodPost, "/api/catalog/refresh", "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		s := New(&fakeImporter{report: report}, WithRefreshToken("s3cret"))
		rec := do(t, s, http.MethodPost, "/api/catalog/refresh", "",
			map[string]string{"Authorization": "Bearer nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		imp := &fakeImporter{report: report}
		s := New(imp, WithRefreshToken("s3cret"))
		rec := do(t, s, http.MethodPost, "/api/catalog/refresh?limit=25", "",
			map[string]string{"Authorization": "Bearer s3cret"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 25, imp.refreshLimit)
		assert.JSONEq(t, `{"success":true,"checked":3,"refreshed":2,"failed":1}`, rec.Body.String())
	})

	t.Run("bad limit", func(t *testing.T) {
		s := New(&fakeImporter{report: report}, WithRefreshToken("s3cret"))
		rec := do(t, s, http.MethodPost, "/api/catalog/refresh?limit=0", "",
			map[string]string{"Authorization": "Bearer s3cret"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("refresh error", func(t *testing.T) {
		s := New(&fakeImporter{refreshErr: errors.New("boom")}, WithRefreshToken("s3cret"))
		rec := do(t, s, http.MethodPost, "/api/catalog/refresh", "",
			map[string]string{"Authorization": "Bearer s3cret"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	m.RecordImport(importer.ActionCreated, 1)

	rec := do(t, New(&fakeImporter{}, WithMetrics(m)), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gameshelf_imports_total")

	rec = do(t, New(&fakeImporter{}), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	s := New(&fakeImporter{}, WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}

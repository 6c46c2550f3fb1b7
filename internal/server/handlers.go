package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lepinkainen/gameshelf/internal/datastore"
	gserrors "github.com/lepinkainen/gameshelf/internal/errors"
	"github.com/lepinkainen/gameshelf/internal/importer"
)

// LibraryHeader carries the library id resolved by the upstream auth layer.
const LibraryHeader = "X-Library-ID"

const maxRefreshLimit = 100

// ImportRequest is the JSON payload of POST /api/games/import. Everything
// except url, library_id and is_expansion is stored as given.
type ImportRequest struct {
	URL         string `json:"url" validate:"required"`
	LibraryID   string `json:"library_id"`
	IsExpansion *bool  `json:"is_expansion"`

	datastore.Passthrough
}

// ImportResponse is returned on success.
type ImportResponse struct {
	Success bool            `json:"success"`
	Action  string          `json:"action"`
	Game    *datastore.Game `json:"game"`
}

// ErrorResponse is returned on failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RefreshResponse is returned by the catalog refresh endpoint.
type RefreshResponse struct {
	Success bool `json:"success"`
	importer.RefreshReport
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImport(c echo.Context) error {
	var req ImportRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}

	// The header is set by the auth layer and wins over the payload.
	libraryID := strings.TrimSpace(c.Request().Header.Get(LibraryHeader))
	if libraryID == "" {
		libraryID = strings.TrimSpace(req.LibraryID)
	}

	res, err := s.importer.Import(c.Request().Context(), importer.Request{
		URL:         req.URL,
		LibraryID:   libraryID,
		IsExpansion: req.IsExpansion,
		Extra:       req.Passthrough,
	})
	if err != nil {
		return importFailure(c, req.URL, err)
	}

	return c.JSON(http.StatusOK, ImportResponse{Success: true, Action: res.Action, Game: res.Game})
}

func importFailure(c echo.Context, url string, err error) error {
	if importErr, ok := gserrors.AsImportError(err); ok {
		slog.Info("Import rejected", "url", url, "status", importErr.Status, "error", err)
		return fail(c, importErr.Status, importErr.Message)
	}
	slog.Error("Import failed", "url", url, "error", err)
	return fail(c, http.StatusInternalServerError, "Import failed due to an internal error")
}

func (s *Server) handleRefresh(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRefreshLimit {
			return fail(c, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxRefreshLimit))
		}
		limit = n
	}

	report, err := s.importer.Refresh(c.Request().Context(), limit)
	if err != nil {
		slog.Error("Catalog refresh failed", "error", err)
		return fail(c, http.StatusInternalServerError, "Catalog refresh failed")
	}

	return c.JSON(http.StatusOK, RefreshResponse{Success: true, RefreshReport: *report})
}

// requireRefreshToken checks the bearer token of the refresh endpoint.
func (s *Server) requireRefreshToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.refreshToken == "" {
			return fail(c, http.StatusForbidden, "Catalog refresh is not enabled")
		}

		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.refreshToken)) != 1 {
			return fail(c, http.StatusUnauthorized, "Invalid or missing token")
		}
		return next(c)
	}
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Success: false, Error: message})
}

// This file defines handlers for the public glossary.  These routes allow
// unauthenticated readers to browse published terms.  Drafts, authoring ids
// and history are never exposed.

package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/finiti-glossary/internal/model"
    "github.com/iliyamo/finiti-glossary/internal/repository"
)

// PublishedTerms is the read side used by PublicHandler.  *repository.TermRepo
// satisfies it.
type PublishedTerms interface {
    SearchPublished(ctx context.Context, q repository.PublishedQuery) ([]repository.PublicTermRow, int64, error)
    ActiveByStableID(ctx context.Context, stableID uuid.UUID) (*model.ActiveTerm, error)
}

// PublicHandler serves the reader-facing glossary.
type PublicHandler struct {
    Terms PublishedTerms
    log   zerolog.Logger
}

// NewPublicHandler returns a PublicHandler.
func NewPublicHandler(terms PublishedTerms, log zerolog.Logger) *PublicHandler {
    return &PublicHandler{Terms: terms, log: log.With().Str("component", "public_glossary").Logger()}
}

// SearchTerms lists published terms.  Query: search, page (1-based),
// page_size (default 20, max 100).
func (h *PublicHandler) SearchTerms(c echo.Context) error {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    if page < 1 { page = 1 }
    ps, _ := strconv.Atoi(c.QueryParam("page_size"))
    if ps < 1 { ps = 20 }
    if ps > 100 { ps = 100 }

    q := repository.PublishedQuery{
        Search:   strings.TrimSpace(c.QueryParam("search")),
        Page:     page,
        PageSize: ps,
    }
    items, total, err := h.Terms.SearchPublished(c.Request().Context(), q)
    if err != nil {
        h.log.Error().Err(err).Msg("search published terms")
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "An unexpected server error occurred."})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data":     items,
        "total":    total,
        "page":     page,
        "pageSize": ps,
    })
}

// GetTerm returns one published term by stable id.  Drafts and archived
// terms are reported as not found.
func (h *PublicHandler) GetTerm(c echo.Context) error {
    stableID, err := uuid.Parse(c.Param("stableId"))
    if err != nil {
        return badRequest(c, "Invalid stable id.")
    }
    t, err := h.Terms.ActiveByStableID(c.Request().Context(), stableID)
    if errors.Is(err, repository.ErrNotFound) || (err == nil && t.Status != model.StatusPublished) {
        return c.JSON(http.StatusNotFound, echo.Map{"message": "Term not found."})
    }
    if err != nil {
        h.log.Error().Err(err).Msg("get published term")
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "An unexpected server error occurred."})
    }
    return c.JSON(http.StatusOK, repository.PublicTermRow{
        StableID:   t.StableID,
        Term:       t.Term,
        Definition: t.Definition,
        Version:    t.Version,
        CreatedAt:  t.CreatedAt,
    })
}

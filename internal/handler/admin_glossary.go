package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/finiti-glossary/internal/glossary"
	"github.com/iliyamo/finiti-glossary/internal/middleware"
)

// GlossaryService is the term lifecycle the admin endpoints drive.
// *glossary.Service satisfies it.
type GlossaryService interface {
	Create(ctx context.Context, caller glossary.Caller, term, definition string) (*glossary.Result, error)
	Publish(ctx context.Context, caller glossary.Caller, id int64) (*glossary.Result, error)
	Update(ctx context.Context, caller glossary.Caller, id int64, term, definition string) (*glossary.Result, error)
	Archive(ctx context.Context, caller glossary.Caller, id int64) (*glossary.Result, error)
	Restore(ctx context.Context, caller glossary.Caller, stableID uuid.UUID, version int) (*glossary.Result, error)
	Delete(ctx context.Context, caller glossary.Caller, id int64) (*glossary.Result, error)
	History(ctx context.Context, caller glossary.Caller, stableID uuid.UUID) ([]glossary.AdminRow, error)
	ListForAdmin(ctx context.Context, caller glossary.Caller, q glossary.ListQuery) (*glossary.Page, error)
}

// Purger drops cached admin responses after a mutation.
type Purger interface {
	Purge(ctx context.Context) error
}

// GlossaryHandler serves the /admin glossary endpoints.
type GlossaryHandler struct {
	svc   GlossaryService
	cache Purger
	log   zerolog.Logger
}

// NewGlossaryHandler returns a handler.  cache may be nil.
func NewGlossaryHandler(svc GlossaryService, cache Purger, log zerolog.Logger) *GlossaryHandler {
	return &GlossaryHandler{svc: svc, cache: cache, log: log.With().Str("component", "admin_glossary").Logger()}
}

type termReq struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

const opTimeout = 5 * time.Second

// List handles GET /admin/all.
func (h *GlossaryHandler) List(c echo.Context) error {
	q := glossary.ListQuery{
		Sort:   c.QueryParam("sort"),
		Search: c.QueryParam("search"),
		Tab:    c.QueryParam("tab"),
	}
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "Offset must be an integer.")
		}
		q.Offset = n
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "Limit must be an integer.")
		}
		if n < 1 {
			return badRequest(c, "Limit must be greater than zero.")
		}
		q.Limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()
	page, err := h.svc.ListForAdmin(ctx, middleware.Identity(c), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Create handles POST /admin/create.
func (h *GlossaryHandler) Create(c echo.Context) error {
	var req termReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	return h.mutate(c, func(ctx context.Context, caller glossary.Caller) (*glossary.Result, error) {
		return h.svc.Create(ctx, caller, req.Term, req.Definition)
	})
}

// Publish handles POST /admin/publish/:id.
func (h *GlossaryHandler) Publish(c echo.Context) error {
	id, ok := termID(c)
	if !ok {
		return badRequest(c, "Invalid term id.")
	}
	return h.mutate(c, func(ctx context.Context, caller glossary.Caller) (*glossary.Result, error) {
		return h.svc.Publish(ctx, caller, id)
	})
}

// Update handles PUT /admin/update/:id.  The updated term is always
// published; a status in the body is ignored.
func (h *GlossaryHandler) Update(c echo.Context) error {
	id, ok := termID(c)
	if !ok {
		return badRequest(c, "Invalid term id.")
	}
	var req termReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	return h.mutate(c, func(ctx context.Context, caller glossary.Caller) (*glossary.Result, error) {
		return h.svc.Update(ctx, caller, id, req.Term, req.Definition)
	})
}

// Archive handles POST /admin/archive/:id.
func (h *GlossaryHandler) Archive(c echo.Context) error {
	id, ok := termID(c)
	if !ok {
		return badRequest(c, "Invalid term id.")
	}
	return h.mutate(c, func(ctx context.Context, caller glossary.Caller) (*glossary.Result, error) {
		return h.svc.Archive(ctx, caller, id)
	})
}

// Restore handles POST /admin/restore/:stableId/:version.
func (h *GlossaryHandler) Restore(c echo.Context) error {
	stableID, err := uuid.Parse(c.Param("stableId"))
	if err != nil {
		return badRequest(c, "Invalid stable id.")
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		return badRequest(c, "Invalid version.")
	}
	return h.mutate(c, func(ctx context.Context, caller glossary.Caller) (*glossary.Result, error) {
		return h.svc.Restore(ctx, caller, stableID, version)
	})
}

// History handles GET /admin/history/:stableId.
func (h *GlossaryHandler) History(c echo.Context) error {
	stableID, err := uuid.Parse(c.Param("stableId"))
	if err != nil {
		return badRequest(c, "Invalid stable id.")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()
	rows, err := h.svc.History(ctx, middleware.Identity(c), stableID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// Delete handles DELETE /admin/delete/:id.
func (h *GlossaryHandler) Delete(c echo.Context) error {
	id, ok := termID(c)
	if !ok {
		return badRequest(c, "Invalid term id.")
	}
	return h.mutate(c, func(ctx context.Context, caller glossary.Caller) (*glossary.Result, error) {
		return h.svc.Delete(ctx, caller, id)
	})
}

// mutate runs op for the authenticated caller and purges the response
// cache when the store changed.
func (h *GlossaryHandler) mutate(c echo.Context, op func(context.Context, glossary.Caller) (*glossary.Result, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), opTimeout)
	defer cancel()

	res, err := op(ctx, middleware.Identity(c))
	if err != nil {
		return h.fail(c, err)
	}
	if res.Applied && h.cache != nil {
		if err := h.cache.Purge(ctx); err != nil {
			h.log.Warn().Err(err).Msg("cache purge failed")
		}
	}
	return c.JSON(http.StatusOK, res)
}

func (h *GlossaryHandler) fail(c echo.Context, err error) error {
	msg := "An unexpected server error occurred."
	var ge *glossary.Error
	if errors.As(err, &ge) {
		msg = ge.Message
	}
	switch glossary.KindOf(err) {
	case glossary.KindValidation:
		return badRequest(c, msg)
	case glossary.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": msg})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("glossary operation failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": msg})
}

func termID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	return id, err == nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
}

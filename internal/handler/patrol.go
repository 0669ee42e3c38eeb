package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dormguard/patrol-service/internal/middleware"
	"github.com/dormguard/patrol-service/internal/repository"
	"github.com/dormguard/patrol-service/internal/service"
)

// PatrolHandler exposes the patrol orchestrator over REST.  It assumes
// JWT authentication and role enforcement already ran in middleware.
// The optional Redis client is used to drop cached reads after every
// mutation.
type PatrolHandler struct {
	svc         *service.PatrolService
	rdb         *redis.Client
	cachePrefix string
}

// NewPatrolHandler constructs a PatrolHandler.  rdb may be nil when
// caching is disabled.
func NewPatrolHandler(svc *service.PatrolService, rdb *redis.Client, cachePrefix string) *PatrolHandler {
	if svc == nil {
		panic("nil service passed to NewPatrolHandler")
	}
	return &PatrolHandler{svc: svc, rdb: rdb, cachePrefix: cachePrefix}
}

func (h *PatrolHandler) invalidate(c echo.Context) {
	middleware.InvalidateCache(c.Request().Context(), h.rdb, h.cachePrefix)
}

// List handles GET /v1/patrols.  Optional query filters: date,
// building, entrance, status; page and size paginate (clamped in the
// orchestrator, newest patrols first).
func (h *PatrolHandler) List(c echo.Context) error {
	var f repository.ListFilter
	f.Date = c.QueryParam("date")
	f.Building = c.QueryParam("building")
	f.Status = c.QueryParam("status")
	if v := c.QueryParam("entrance"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": echo.Map{"code": codeValidation, "message": "invalid entrance filter", "trace_id": traceID(c)},
			})
		}
		f.Entrance = n
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	items, total, err := h.svc.List(c.Request().Context(), f, page, size)
	if err != nil {
		return writeError(c, err)
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	pages := 0
	if total > 0 {
		pages = (total + size - 1) / size
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
		"pages": pages,
	})
}

// Create handles POST /v1/patrols.  The body carries the slot; the
// roster and leave lookups plus all entry seeding happen inside the
// orchestrator.  Responds 201 with the patrol and its entries.
func (h *PatrolHandler) Create(c echo.Context) error {
	var body struct {
		Date     string `json:"date"`
		Building string `json:"building"`
		Entrance int    `json:"entrance"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": echo.Map{"code": codeValidation, "message": "invalid request body", "trace_id": traceID(c)},
		})
	}
	p, err := h.svc.Create(c.Request().Context(), body.Date, body.Building, body.Entrance)
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusCreated, p)
}

// Get handles GET /v1/patrols/:patrolId and returns the patrol with
// all of its entries.
func (h *PatrolHandler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("patrolId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Complete handles PATCH /v1/patrols/:patrolId.  The only supported
// transition is to "completed"; anything else is a validation error.
func (h *PatrolHandler) Complete(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil || body.Status != "completed" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": echo.Map{"code": codeValidation, "message": `status must be "completed"`, "trace_id": traceID(c)},
		})
	}
	p, err := h.svc.Complete(c.Request().Context(), c.Param("patrolId"))
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /v1/patrols/:patrolId.  Entries cascade away
// with the patrol; responds 204 on success.
func (h *PatrolHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("patrolId")); err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.NoContent(http.StatusNoContent)
}

// GetEntry handles GET /v1/patrols/:patrolId/entries/:entryId.
func (h *PatrolHandler) GetEntry(c echo.Context) error {
	e, err := h.svc.GetEntry(c.Request().Context(), c.Param("patrolId"), c.Param("entryId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// UpdateEntry handles PATCH /v1/patrols/:patrolId/entries/:entryId.
// Both fields are optional; omitted fields stay as they are.  The
// orchestrator stamps checked_at and enforces the in-progress gate.
func (h *PatrolHandler) UpdateEntry(c echo.Context) error {
	var body struct {
		IsPresent     *bool   `json:"is_present"`
		AbsenceReason *string `json:"absence_reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": echo.Map{"code": codeValidation, "message": "invalid request body", "trace_id": traceID(c)},
		})
	}
	e, err := h.svc.UpdateEntry(c.Request().Context(), c.Param("patrolId"), c.Param("entryId"), body.IsPresent, body.AbsenceReason)
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, e)
}

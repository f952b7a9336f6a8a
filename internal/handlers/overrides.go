package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/calendar"
	"stadiumtix/internal/models"
	"stadiumtix/internal/service"
)

// GetOverride - GET /api/admin/overrides?stadium_id=&ticket_id=&kind=&date=
// Строка учета на дату; создается из определения, если ее еще нет
func (h *Handlers) GetOverride(c *gin.Context) {
	stadiumID, ok := int64Query(c, "stadium_id")
	if !ok {
		return
	}
	ticketID, ok := int64Query(c, "ticket_id")
	if !ok {
		return
	}

	key, err := service.ParseKey(stadiumID, ticketID, c.Query("kind"), c.Query("date"))
	if err != nil {
		handleServiceError(c, err, "get override")
		return
	}

	o, err := h.services.Overrides.Get(c.Request.Context(), key)
	if err != nil {
		handleServiceError(c, err, "get override")
		return
	}

	c.JSON(http.StatusOK, models.NewOverrideResponse(o))
}

// UpdateOverride - PATCH /api/admin/overrides
func (h *Handlers) UpdateOverride(c *gin.Context) {
	var req models.UpdateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	key, err := service.ParseKey(req.StadiumID, req.TicketID, req.Kind, req.Date)
	if err != nil {
		handleServiceError(c, err, "update override")
		return
	}

	o, err := h.services.Overrides.SetOverrides(c.Request.Context(), key, service.PatchFromRequest(&req))
	if err != nil {
		handleServiceError(c, err, "update override")
		return
	}

	c.JSON(http.StatusOK, models.NewOverrideResponse(o))
}

// PurgeOverrides - POST /api/admin/overrides/purge
// Удаляет строки учета за даты раньше before; dry_run только считает
func (h *Handlers) PurgeOverrides(c *gin.Context) {
	var req models.PurgeOverridesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	before, err := calendar.ParseDate(req.Before)
	if err != nil {
		handleServiceError(c, err, "purge overrides")
		return
	}

	var n int64
	if req.DryRun {
		n, err = h.services.Overrides.CountBefore(c.Request.Context(), before)
	} else {
		n, err = h.services.Overrides.PurgeBefore(c.Request.Context(), before)
	}
	if err != nil {
		handleServiceError(c, err, "purge overrides")
		return
	}

	c.JSON(http.StatusOK, models.PurgeOverridesResponse{
		Before:  calendar.FormatDate(before),
		Deleted: n,
		DryRun:  req.DryRun,
	})
}

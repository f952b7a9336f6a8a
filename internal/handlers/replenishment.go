package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/calendar"
	"stadiumtix/internal/models"
)

// RunReplenishment - POST /api/admin/replenishment/run[?dry_run=true]
// Без month работает как ежемесячный запуск (не чаще раза в месяц);
// с month YYYY-MM досоздает билеты на указанный месяц.
// dry_run в обоих случаях только считает план и ничего не пишет.
func (h *Handlers) RunReplenishment(c *gin.Context) {
	var req models.RunReplenishmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	dryRun := c.Query("dry_run") == "true"

	var (
		result *models.GenerationResult
		err    error
	)
	switch {
	case req.Month == "" && dryRun:
		result, err = h.services.Replenishment.PlanNextMonth(ctx, req.StadiumID)
	case req.Month == "":
		result, err = h.services.Replenishment.RunMonthlyGeneration(ctx, req.StadiumID)
	default:
		year, month, perr := calendar.ParseMonthKey(req.Month)
		if perr != nil {
			handleServiceError(c, perr, "run replenishment")
			return
		}
		if dryRun {
			result, err = h.services.Replenishment.PlanForMonth(ctx, req.StadiumID, year, month)
		} else {
			result, err = h.services.Replenishment.GenerateForMonth(ctx, req.StadiumID, year, month)
		}
	}
	if err != nil {
		handleServiceError(c, err, "run replenishment")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReplenishmentStatus - GET /api/admin/replenishment/status?stadium_id=
func (h *Handlers) ReplenishmentStatus(c *gin.Context) {
	stadiumID, ok := int64Query(c, "stadium_id")
	if !ok {
		return
	}
	if stadiumID == 0 {
		stadiumID = h.services.Replenishment.StadiumID()
	}

	state, err := h.services.Replenishment.Status(c.Request.Context(), stadiumID)
	if err != nil {
		handleServiceError(c, err, "get replenishment status")
		return
	}

	c.JSON(http.StatusOK, state)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/models"
)

// ListOffers - GET /api/stadiums/:stadiumId/offers?date=YYYY-MM-DD
// Предложения на дату с учетом скидок и переопределений
func (h *Handlers) ListOffers(c *gin.Context) {
	stadiumID, ok := int64Param(c, "stadiumId")
	if !ok {
		return
	}

	offers, err := h.services.Availability.ResolveOffers(c.Request.Context(), stadiumID, c.Query("date"))
	if err != nil {
		handleServiceError(c, err, "resolve offers")
		return
	}

	c.JSON(http.StatusOK, offers)
}

// CheckAvailability - GET /api/stadiums/:stadiumId/availability?date=
func (h *Handlers) CheckAvailability(c *gin.Context) {
	stadiumID, ok := int64Param(c, "stadiumId")
	if !ok {
		return
	}
	date := c.Query("date")

	available, err := h.services.Availability.HasAvailability(c.Request.Context(), stadiumID, date)
	if err != nil {
		handleServiceError(c, err, "check availability")
		return
	}

	c.JSON(http.StatusOK, models.AvailabilityResponse{Date: date, Available: available})
}

// GetCalendar - GET /api/stadiums/:stadiumId/calendar?from=&days=
// Календарь доступности, по умолчанию 31 день с сегодняшнего
func (h *Handlers) GetCalendar(c *gin.Context) {
	stadiumID, ok := int64Param(c, "stadiumId")
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "31"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
		return
	}

	result, err := h.services.Availability.Calendar(c.Request.Context(), stadiumID, c.Query("from"), days)
	if err != nil {
		handleServiceError(c, err, "build calendar")
		return
	}

	c.JSON(http.StatusOK, result)
}

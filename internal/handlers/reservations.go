package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/models"
)

// Reserve - POST /api/reservations
// Списать количество билетов на дату. Нехватка остатка и закрытые продажи
// отдаются как 409 с признаком sold_out.
func (h *Handlers) Reserve(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	response, err := h.services.Reservations.Reserve(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "reserve tickets")
		return
	}

	c.JSON(http.StatusOK, response)
}

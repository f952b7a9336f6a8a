package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/models"
)

// CreateDiscount - POST /api/admin/discounts
func (h *Handlers) CreateDiscount(c *gin.Context) {
	var req models.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	rule, err := h.services.Discounts.Create(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "create discount")
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListDiscounts - GET /api/admin/discounts?stadium_id=&ticket_id=
func (h *Handlers) ListDiscounts(c *gin.Context) {
	stadiumID, ok := int64Query(c, "stadium_id")
	if !ok {
		return
	}
	ticketID, ok := int64Query(c, "ticket_id")
	if !ok {
		return
	}

	rules, err := h.services.Discounts.List(c.Request.Context(), stadiumID, ticketID)
	if err != nil {
		handleServiceError(c, err, "list discounts")
		return
	}

	c.JSON(http.StatusOK, rules)
}

// DeleteDiscount - DELETE /api/admin/discounts/:id
func (h *Handlers) DeleteDiscount(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := h.services.Discounts.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "delete discount")
		return
	}

	c.Status(http.StatusNoContent)
}

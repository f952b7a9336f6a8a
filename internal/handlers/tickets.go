package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/models"
	"stadiumtix/internal/search"
)

// CreateTicket - POST /api/admin/tickets
func (h *Handlers) CreateTicket(c *gin.Context) {
	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.services.Catalog.Create(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "create ticket")
		return
	}

	c.JSON(http.StatusCreated, models.NewTicketResponse(t))
}

// ListTickets - GET /api/admin/tickets?stadium_id=&kind=
func (h *Handlers) ListTickets(c *gin.Context) {
	stadiumID, ok := int64Query(c, "stadium_id")
	if !ok {
		return
	}

	tickets, err := h.services.Catalog.List(c.Request.Context(), stadiumID, c.Query("kind"))
	if err != nil {
		handleServiceError(c, err, "list tickets")
		return
	}

	response := make([]*models.TicketResponse, len(tickets))
	for i := range tickets {
		response[i] = models.NewTicketResponse(&tickets[i])
	}
	c.JSON(http.StatusOK, response)
}

// GetTicket - GET /api/admin/tickets/:id
func (h *Handlers) GetTicket(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	t, err := h.services.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, "get ticket")
		return
	}

	c.JSON(http.StatusOK, models.NewTicketResponse(t))
}

// UpdateTicket - PATCH /api/admin/tickets/:id
func (h *Handlers) UpdateTicket(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req models.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.services.Catalog.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(c, err, "update ticket")
		return
	}

	c.JSON(http.StatusOK, models.NewTicketResponse(t))
}

// DeleteTicket - DELETE /api/admin/tickets/:id
// Удаляет тип билета вместе со строками учета и скидками
func (h *Handlers) DeleteTicket(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := h.services.Catalog.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "delete ticket")
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchTickets - GET /api/admin/tickets/search?query=&stadium_id=&kind=&date=&page=&pageSize=
func (h *Handlers) SearchTickets(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is disabled"})
		return
	}

	stadiumID, ok := int64Query(c, "stadium_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}
	if pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be between 1 and 100"})
		return
	}

	result, err := h.searcher.Search(c.Request.Context(), search.SearchParams{
		Query:     c.Query("query"),
		StadiumID: stadiumID,
		Kind:      c.Query("kind"),
		Date:      c.Query("date"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		handleServiceError(c, err, "search tickets")
		return
	}

	c.JSON(http.StatusOK, result)
}

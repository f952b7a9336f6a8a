package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "stadiumtix/internal/errors"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/search"
	"stadiumtix/internal/service"
)

// TicketSearcher ищет по каталогу билетов
type TicketSearcher interface {
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

type Handlers struct {
	services *service.Services
	searcher TicketSearcher
}

// NewHandlers builds the HTTP adapters. A nil searcher disables catalog search.
func NewHandlers(services *service.Services, searcher TicketSearcher) *Handlers {
	return &Handlers{
		services: services,
		searcher: searcher,
	}
}

// Register mounts the public routes on api and the administrative ones on admin
func (h *Handlers) Register(api, admin *gin.RouterGroup) {
	stadiums := api.Group("/stadiums/:stadiumId")
	{
		stadiums.GET("/offers", h.ListOffers)
		stadiums.GET("/availability", h.CheckAvailability)
		stadiums.GET("/calendar", h.GetCalendar)
	}
	api.POST("/reservations", h.Reserve)

	tickets := admin.Group("/tickets")
	{
		tickets.POST("", h.CreateTicket)
		tickets.GET("", h.ListTickets)
		tickets.GET("/search", h.SearchTickets)
		tickets.GET("/:id", h.GetTicket)
		tickets.PATCH("/:id", h.UpdateTicket)
		tickets.DELETE("/:id", h.DeleteTicket)
	}

	overrides := admin.Group("/overrides")
	{
		overrides.GET("", h.GetOverride)
		overrides.PATCH("", h.UpdateOverride)
		overrides.POST("/purge", h.PurgeOverrides)
	}

	discounts := admin.Group("/discounts")
	{
		discounts.POST("", h.CreateDiscount)
		discounts.GET("", h.ListDiscounts)
		discounts.DELETE("/:id", h.DeleteDiscount)
	}

	replenishment := admin.Group("/replenishment")
	{
		replenishment.POST("/run", h.RunReplenishment)
		replenishment.GET("/status", h.ReplenishmentStatus)
	}
}

// handleServiceError переводит ошибки сервисов в HTTP ответ
func handleServiceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrTicketNotFound), errors.Is(err, apperrors.ErrDiscountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsSoldOut(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "sold_out": true})
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		logger.WithContext(c.Request.Context()).Error("Store unavailable", "action", action, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		logger.WithContext(c.Request.Context()).Error("Failed to "+action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// int64Param разбирает положительный числовой параметр пути
func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

// int64Query разбирает необязательный числовой параметр запроса
func int64Query(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// DiscountInfo - сведения о применённой скидке
type DiscountInfo struct {
	OriginalPrice  decimal.Decimal `json:"original_price"`
	DiscountPrice  decimal.Decimal `json:"discount_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Offer - предложение к продаже на конкретную дату
type Offer struct {
	TicketID          int64           `json:"ticket_id"`
	Kind              TicketKind      `json:"kind"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	DisplayOrder      int             `json:"display_order"`
	Discount          *DiscountInfo   `json:"discount,omitempty"`
}

// AvailabilityResponse - есть ли что продавать на дату
type AvailabilityResponse struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

// CalendarDay - элемент календаря доступности
type CalendarDay struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

// ReserveRequest - модель для списания остатка
type ReserveRequest struct {
	StadiumID int64  `json:"stadium_id" binding:"required"`
	TicketID  int64  `json:"ticket_id" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// ReserveResponse - модель ответа при успешном списании
type ReserveResponse struct {
	Reserved  bool       `json:"reserved"`
	StadiumID int64      `json:"stadium_id"`
	TicketID  int64      `json:"ticket_id"`
	Kind      TicketKind `json:"kind"`
	Date      string     `json:"date"`
	Quantity  int        `json:"quantity"`
	Remaining int        `json:"remaining"`
}

// CreateTicketRequest - модель для создания типа билета
type CreateTicketRequest struct {
	StadiumID    int64           `json:"stadium_id" binding:"required"`
	Kind         string          `json:"kind" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	BasePrice    decimal.Decimal `json:"base_price"`
	BaseQuantity int             `json:"base_quantity"`
	DisplayOrder int             `json:"display_order"`
	Weekdays     []int           `json:"weekdays,omitempty"`
	Date         string          `json:"date,omitempty"`
}

// UpdateTicketRequest - частичное обновление типа билета
type UpdateTicketRequest struct {
	Name         *string          `json:"name,omitempty"`
	BasePrice    *decimal.Decimal `json:"base_price,omitempty"`
	BaseQuantity *int             `json:"base_quantity,omitempty"`
	DisplayOrder *int             `json:"display_order,omitempty"`
	Weekdays     []int            `json:"weekdays,omitempty"`
	Date         *string          `json:"date,omitempty"`
}

// TicketResponse - тип билета в ответах API
type TicketResponse struct {
	ID           int64           `json:"id"`
	StadiumID    int64           `json:"stadium_id"`
	Kind         TicketKind      `json:"kind"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	BaseQuantity int             `json:"base_quantity"`
	DisplayOrder int             `json:"display_order"`
	Weekdays     []int64         `json:"weekdays,omitempty"`
	Date         string          `json:"date,omitempty"`
}

// NewTicketResponse converts a definition for the API
func NewTicketResponse(t *TicketDefinition) *TicketResponse {
	resp := &TicketResponse{
		ID:           t.ID,
		StadiumID:    t.StadiumID,
		Kind:         t.Kind,
		Name:         t.Name,
		BasePrice:    t.BasePrice,
		BaseQuantity: t.BaseQuantity,
		DisplayOrder: t.DisplayOrder,
		Weekdays:     []int64(t.Weekdays),
	}
	if t.Date != nil {
		resp.Date = t.Date.Format(DateLayout)
	}
	return resp
}

// UpdateOverrideRequest - модель для изменения строки учета на дату
type UpdateOverrideRequest struct {
	StadiumID          int64            `json:"stadium_id" binding:"required"`
	TicketID           int64            `json:"ticket_id" binding:"required"`
	Kind               string           `json:"kind" binding:"required"`
	Date               string           `json:"date" binding:"required"`
	Enabled            *FlexibleBool    `json:"enabled,omitempty"`
	NameOverride       *string          `json:"name_override,omitempty"`
	ClearNameOverride  bool             `json:"clear_name_override,omitempty"`
	PriceOverride      *decimal.Decimal `json:"price_override,omitempty"`
	ClearPriceOverride bool             `json:"clear_price_override,omitempty"`
	Quantity           *int             `json:"quantity,omitempty"`
}

// OverrideResponse - строка учета в ответах API
type OverrideResponse struct {
	*DateOverride
	Date string `json:"date"`
}

func NewOverrideResponse(o *DateOverride) *OverrideResponse {
	return &OverrideResponse{DateOverride: o, Date: o.Date.Format(DateLayout)}
}

// PurgeOverridesRequest - удаление строк учета за прошедшие даты
type PurgeOverridesRequest struct {
	Before string `json:"before" binding:"required"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// PurgeOverridesResponse - результат удаления
type PurgeOverridesResponse struct {
	Before  string `json:"before"`
	Deleted int64  `json:"deleted"`
	DryRun  bool   `json:"dry_run"`
}

// CreateDiscountRequest - модель для создания правила скидки
type CreateDiscountRequest struct {
	StadiumID     int64           `json:"stadium_id" binding:"required"`
	TicketID      int64           `json:"ticket_id" binding:"required"`
	TicketKind    string          `json:"ticket_kind" binding:"required"`
	DayOfMonth    int             `json:"day_of_month" binding:"required"`
	Month         int             `json:"month" binding:"required"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
}

// RunReplenishmentRequest - ручной запуск пополнения
type RunReplenishmentRequest struct {
	StadiumID int64  `json:"stadium_id" binding:"required"`
	Month     string `json:"month,omitempty"`
}

// DateGeneration - итог генерации по одной дате
type DateGeneration struct {
	Date       string `json:"date"`
	Existing   int    `json:"existing"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	CapReached bool   `json:"cap_reached"`
}

// GenerationResult - итог запуска пополнения
type GenerationResult struct {
	StadiumID    int64            `json:"stadium_id"`
	Month        string           `json:"month"`
	Skipped      bool             `json:"skipped"`
	Reason       string           `json:"reason,omitempty"`
	DryRun       bool             `json:"dry_run,omitempty"`
	TotalCreated int              `json:"total_created"`
	Dates        []DateGeneration `json:"dates,omitempty"`
	TicketIDs    []int64          `json:"-"`
}

package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// DateLayout формат календарной даты в API и в БД
const DateLayout = "2006-01-02"

// TicketKind вид билета: регулярный (по дням недели) или специальный (на конкретную дату)
type TicketKind string

const (
	KindRegular TicketKind = "regular"
	KindSpecial TicketKind = "special"
)

func (k TicketKind) Valid() bool {
	return k == KindRegular || k == KindSpecial
}

// TicketDefinition represents a sellable ticket type of a stadium
type TicketDefinition struct {
	ID           int64           `json:"id" db:"id"`
	StadiumID    int64           `json:"stadium_id" db:"stadium_id"`
	Kind         TicketKind      `json:"kind" db:"kind"`
	Name         string          `json:"name" db:"name"`
	BasePrice    decimal.Decimal `json:"base_price" db:"base_price"`
	BaseQuantity int             `json:"base_quantity" db:"base_quantity"`
	DisplayOrder int             `json:"display_order" db:"display_order"`
	Weekdays     pq.Int64Array   `json:"weekdays,omitempty" db:"weekdays"`
	Date         *time.Time      `json:"-" db:"ticket_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Ref returns the (id, kind) pair used to key ledger rows and discount rules
func (t *TicketDefinition) Ref() TicketRef {
	return TicketRef{ID: t.ID, Kind: t.Kind}
}

// SoldOn reports whether the definition is offered on the civil date d
func (t *TicketDefinition) SoldOn(d time.Time) bool {
	switch t.Kind {
	case KindRegular:
		wd := int64(d.Weekday())
		for _, w := range t.Weekdays {
			if w == wd {
				return true
			}
		}
		return false
	case KindSpecial:
		return t.Date != nil && t.Date.Format(DateLayout) == d.Format(DateLayout)
	}
	return false
}

// TicketRef identifies a ticket definition together with its kind
type TicketRef struct {
	ID   int64
	Kind TicketKind
}

// OverrideKey is the unique key of a ledger row
type OverrideKey struct {
	StadiumID int64
	TicketID  int64
	Kind      TicketKind
	Date      time.Time
}

// DateOverride is the per-date ledger row: remaining stock plus optional
// name and price overrides for one ticket on one date.
type DateOverride struct {
	ID              int64               `json:"id" db:"id"`
	StadiumID       int64               `json:"stadium_id" db:"stadium_id"`
	TicketID        int64               `json:"ticket_id" db:"ticket_id"`
	Kind            TicketKind          `json:"kind" db:"ticket_kind"`
	Date            time.Time           `json:"-" db:"sale_date"`
	Quantity        int                 `json:"quantity" db:"quantity"`
	InitialQuantity int                 `json:"initial_quantity" db:"initial_quantity"`
	Enabled         bool                `json:"enabled" db:"enabled"`
	NameOverride    *string             `json:"name_override" db:"name_override"`
	PriceOverride   decimal.NullDecimal `json:"price_override" db:"price_override"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

func (o *DateOverride) Key() OverrideKey {
	return OverrideKey{StadiumID: o.StadiumID, TicketID: o.TicketID, Kind: o.Kind, Date: o.Date}
}

// Sellable reports whether the row can currently be offered
func (o *DateOverride) Sellable() bool {
	return o.Enabled && o.Quantity > 0
}

// OverridePatch is a partial update of a ledger row. Nil fields stay unchanged.
type OverridePatch struct {
	Enabled            *bool
	NameOverride       *string
	ClearNameOverride  bool
	PriceOverride      *decimal.Decimal
	ClearPriceOverride bool
	Quantity           *int
}

func (p OverridePatch) Empty() bool {
	return p.Enabled == nil && p.NameOverride == nil && !p.ClearNameOverride &&
		p.PriceOverride == nil && !p.ClearPriceOverride && p.Quantity == nil
}

// DiscountRule sets a discounted price for a ticket on a (day, month) of every year
type DiscountRule struct {
	ID            int64           `json:"id" db:"id"`
	StadiumID     int64           `json:"stadium_id" db:"stadium_id"`
	TicketID      int64           `json:"ticket_id" db:"ticket_id"`
	TicketKind    TicketKind      `json:"ticket_kind" db:"ticket_kind"`
	DayOfMonth    int             `json:"day_of_month" db:"day_of_month"`
	Month         int             `json:"month" db:"month"`
	DiscountPrice decimal.Decimal `json:"discount_price" db:"discount_price"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Matches ignores the year
func (r *DiscountRule) Matches(d time.Time) bool {
	return r.DayOfMonth == d.Day() && r.Month == int(d.Month())
}

// GenerationState хранит ключ месяца последней генерации для стадиона
type GenerationState struct {
	StadiumID   int64      `json:"stadium_id" db:"stadium_id"`
	MonthKey    string     `json:"month_key" db:"month_key"`
	GeneratedAt *time.Time `json:"generated_at" db:"generated_at"`
}

package models

import "time"

// NATS Event Types
const (
	EventTicketReserved   = "ticket.reserved"
	EventTicketCreated    = "ticket.created"
	EventTicketUpdated    = "ticket.updated"
	EventTicketDeleted    = "ticket.deleted"
	EventOverrideUpdated  = "override.updated"
	EventTicketsGenerated = "tickets.generated"
)

// TicketReservedEvent публикуется после успешного списания остатка
type TicketReservedEvent struct {
	StadiumID int64      `json:"stadium_id"`
	TicketID  int64      `json:"ticket_id"`
	Kind      TicketKind `json:"kind"`
	Date      string     `json:"date"`
	Quantity  int        `json:"quantity"`
	Remaining int        `json:"remaining"`
	Timestamp time.Time  `json:"timestamp"`
}

// TicketChangedEvent is published on catalog create, update and delete
type TicketChangedEvent struct {
	TicketID  int64           `json:"ticket_id"`
	StadiumID int64           `json:"stadium_id"`
	Ticket    *TicketResponse `json:"ticket,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// OverrideUpdatedEvent is published after an administrative ledger change
type OverrideUpdatedEvent struct {
	StadiumID int64      `json:"stadium_id"`
	TicketID  int64      `json:"ticket_id"`
	Kind      TicketKind `json:"kind"`
	Date      string     `json:"date"`
	Quantity  int        `json:"quantity"`
	Enabled   bool       `json:"enabled"`
	Timestamp time.Time  `json:"timestamp"`
}

// TicketsGeneratedEvent is published after replenishment created tickets
type TicketsGeneratedEvent struct {
	StadiumID int64     `json:"stadium_id"`
	Month     string    `json:"month"`
	TicketIDs []int64   `json:"ticket_ids"`
	Timestamp time.Time `json:"timestamp"`
}

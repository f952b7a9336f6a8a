package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/stan.go"

	"stadiumtix/internal/logger"
	"stadiumtix/internal/models"
	"stadiumtix/internal/search"
)

const handlerTimeout = 10 * time.Second

// TicketIndexer is the search side of the catalog
type TicketIndexer interface {
	IndexTicket(ctx context.Context, doc *search.TicketDocument) error
	DeleteTicket(ctx context.Context, id int64) error
}

// TicketLookup читает определения билетов для переиндексации
type TicketLookup interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.TicketDefinition, error)
}

type Handlers struct {
	indexer           TicketIndexer
	tickets           TicketLookup
	lowStockThreshold int
}

// NewHandlers. indexer может быть nil: тогда события каталога только подтверждаются.
func NewHandlers(indexer TicketIndexer, tickets TicketLookup, lowStockThreshold int) *Handlers {
	return &Handlers{
		indexer:           indexer,
		tickets:           tickets,
		lowStockThreshold: lowStockThreshold,
	}
}

// ackOnSuccess adapts a handler to manual ack mode. A malformed payload is
// acknowledged so it is not redelivered forever; any other error leaves the
// message for redelivery after AckWait.
func ackOnSuccess(subject string, handle func(ctx context.Context, data []byte) error) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		err := handle(ctx, m.Data)
		var malformed *malformedError
		switch {
		case err == nil:
		case errors.As(err, &malformed):
			logger.Get().Error("Dropping malformed event", "subject", subject, "error", err)
		default:
			logger.Get().Error("Failed to process event, will be redelivered",
				"subject", subject, "sequence", m.Sequence, "error", err)
			return
		}
		if ackErr := m.Ack(); ackErr != nil {
			logger.Get().Error("Failed to ack event", "subject", subject, "error", ackErr)
		}
	}
}

type malformedError struct{ err error }

func (e *malformedError) Error() string { return "malformed event: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &malformedError{err: err}
	}
	return nil
}

// HandleTicketChanged индексирует созданный или измененный билет
func (h *Handlers) HandleTicketChanged(ctx context.Context, data []byte) error {
	var event models.TicketChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if h.indexer == nil || event.Ticket == nil {
		return nil
	}

	doc := search.NewTicketDocument(event.Ticket)
	doc.UpdatedAt = event.Timestamp
	if err := h.indexer.IndexTicket(ctx, doc); err != nil {
		return fmt.Errorf("index ticket %d: %w", event.TicketID, err)
	}
	logger.Get().Debug("Ticket indexed", "ticket_id", event.TicketID)
	return nil
}

func (h *Handlers) HandleTicketDeleted(ctx context.Context, data []byte) error {
	var event models.TicketChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if h.indexer == nil {
		return nil
	}
	if err := h.indexer.DeleteTicket(ctx, event.TicketID); err != nil {
		return fmt.Errorf("delete ticket %d from index: %w", event.TicketID, err)
	}
	return nil
}

// HandleTicketsGenerated переиндексирует билеты, созданные пополнением
func (h *Handlers) HandleTicketsGenerated(ctx context.Context, data []byte) error {
	var event models.TicketsGeneratedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	logger.Get().Info("Replenishment finished",
		"stadium_id", event.StadiumID, "month", event.Month, "created", len(event.TicketIDs))

	if h.indexer == nil || len(event.TicketIDs) == 0 {
		return nil
	}

	tickets, err := h.tickets.GetByIDs(ctx, event.TicketIDs)
	if err != nil {
		return fmt.Errorf("load generated tickets: %w", err)
	}
	for i := range tickets {
		doc := search.NewTicketDocument(models.NewTicketResponse(&tickets[i]))
		doc.UpdatedAt = event.Timestamp
		if err := h.indexer.IndexTicket(ctx, doc); err != nil {
			return fmt.Errorf("index generated ticket %d: %w", tickets[i].ID, err)
		}
	}
	return nil
}

// HandleTicketReserved warns when a date runs low on stock
func (h *Handlers) HandleTicketReserved(_ context.Context, data []byte) error {
	var event models.TicketReservedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.Remaining <= h.lowStockThreshold {
		logger.Get().Warn("Low stock",
			"stadium_id", event.StadiumID,
			"ticket_id", event.TicketID,
			"kind", event.Kind,
			"date", event.Date,
			"remaining", event.Remaining)
	}
	return nil
}

func (h *Handlers) HandleOverrideUpdated(_ context.Context, data []byte) error {
	var event models.OverrideUpdatedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	logger.Get().Info("Override updated",
		"stadium_id", event.StadiumID,
		"ticket_id", event.TicketID,
		"date", event.Date,
		"quantity", event.Quantity,
		"enabled", event.Enabled)
	return nil
}

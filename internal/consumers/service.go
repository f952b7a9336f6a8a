package consumers

import (
	"context"
	"fmt"

	"stadiumtix/internal/cache"
	"stadiumtix/internal/config"
	"stadiumtix/internal/database"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/messaging"
	"stadiumtix/internal/models"
	"stadiumtix/internal/repository"
	"stadiumtix/internal/search"
	"stadiumtix/internal/service"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	closers  []func() error
	services *service.Services
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	cutoff, err := cfg.Inventory.NewCutoff()
	if err != nil {
		natsClient.Close()
		db.Close()
		return nil, err
	}

	stores := repository.NewStores(db)
	var closers []func() error

	// Пополнение меняет предложения, поэтому кэш API надо сбрасывать и отсюда
	var offersCache service.OffersCache
	if cfg.Redis.Enabled {
		c, err := cache.NewOffersCache(cfg.Redis)
		if err != nil {
			logger.Get().Warn("Offers cache unavailable, invalidation skipped", "error", err)
		} else {
			offersCache = c
			closers = append(closers, c.Close)
		}
	}

	var indexer TicketIndexer
	if cfg.Elasticsearch.Enabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, catalog indexing disabled", "error", err)
		} else {
			indexer = es
		}
	}

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		closers:  closers,
		services: service.NewServices(stores, cutoff, offersCache, natsClient, service.ReplenishmentOptions{
			StadiumID:  cfg.Replenishment.StadiumID,
			MaxPerDate: cfg.Replenishment.MaxPerDate,
		}),
		handlers: NewHandlers(indexer, stores.Tickets, cfg.Inventory.LowStockThreshold),
	}, nil
}

// Services отдает сервисы для фоновых задач процесса
func (cs *ConsumerService) Services() *service.Services {
	return cs.services
}

func (cs *ConsumerService) Start() error {
	if !cs.nats.Connected() {
		logger.Get().Warn("NATS disabled, consumers not started")
		return nil
	}

	logger.Get().Info("Starting NATS consumers...")

	subscriptions := map[string]func(ctx context.Context, data []byte) error{
		models.EventTicketCreated:    cs.handlers.HandleTicketChanged,
		models.EventTicketUpdated:    cs.handlers.HandleTicketChanged,
		models.EventTicketDeleted:    cs.handlers.HandleTicketDeleted,
		models.EventTicketsGenerated: cs.handlers.HandleTicketsGenerated,
		models.EventTicketReserved:   cs.handlers.HandleTicketReserved,
		models.EventOverrideUpdated:  cs.handlers.HandleOverrideUpdated,
	}
	for subject, handle := range subscriptions {
		if _, err := cs.nats.SubscribeQueue(subject, queueGroup, ackOnSuccess(subject, handle)); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}

	logger.Get().Info("All consumers started successfully", "subjects", len(subscriptions))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	logger.Get().Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	for _, closeFn := range cs.closers {
		if err := closeFn(); err != nil {
			logger.Get().Error("Error closing connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}

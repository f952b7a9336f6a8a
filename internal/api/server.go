package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stadiumtix/internal/cache"
	"stadiumtix/internal/config"
	"stadiumtix/internal/database"
	"stadiumtix/internal/handlers"
	"stadiumtix/internal/logger"
	"stadiumtix/internal/messaging"
	"stadiumtix/internal/metrics"
	"stadiumtix/internal/middleware"
	"stadiumtix/internal/repository"
	"stadiumtix/internal/search"
	"stadiumtix/internal/service"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	cache    *cache.OffersCache
	search   *search.ElasticsearchClient
	services *service.Services
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	cutoff, err := cfg.Inventory.NewCutoff()
	if err != nil {
		logger.Fatal("Invalid inventory configuration", "error", err)
	}

	server := &Server{
		config: cfg,
		db:     db,
		nats:   natsClient,
	}

	// Кэш и поиск необязательны: без них сервис работает напрямую с базой
	var offersCache service.OffersCache
	if cfg.Redis.Enabled {
		c, err := cache.NewOffersCache(cfg.Redis)
		if err != nil {
			logger.Get().Warn("Offers cache unavailable, continuing without it", "error", err)
		} else {
			server.cache = c
			offersCache = c
		}
	}

	var searcher handlers.TicketSearcher
	if cfg.Elasticsearch.Enabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, search disabled", "error", err)
		} else {
			server.search = es
			searcher = es
		}
	}

	server.services = service.NewServices(repository.NewStores(db), cutoff, offersCache, natsClient,
		service.ReplenishmentOptions{
			StadiumID:  cfg.Replenishment.StadiumID,
			MaxPerDate: cfg.Replenishment.MaxPerDate,
		})

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	server.router = router

	server.setupRoutes(handlers.NewHandlers(server.services, searcher))

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes(h *handlers.Handlers) {
	api := s.router.Group("/api")
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(s.config.Admin.Username, s.config.Admin.PasswordHash))
	h.Register(api, admin)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := s.db.HealthCheck(ctx)
	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	response := gin.H{
		"status":   dbHealth.Status,
		"service":  "stadiumtix-api",
		"database": dbHealth,
		"nats":     s.nats.Connected(),
	}
	if s.cache != nil {
		response["cache"] = componentStatus(s.cache.Ping(ctx))
	}
	if s.search != nil {
		response["search"] = componentStatus(s.search.HealthCheck(ctx))
	}

	c.JSON(status, response)
}

func componentStatus(err error) string {
	if err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if err := s.nats.Close(); err != nil {
		logger.Get().Error("Error closing NATS connection", "error", err)
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Get().Error("Error closing cache connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stadiumtix/internal/cache"
	"stadiumtix/internal/calendar"
	"stadiumtix/internal/database"
	"stadiumtix/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Performance monitoring
	PprofEnabled bool
	PprofPort    string

	Database      database.Config
	NATS          messaging.Config
	Redis         cache.Config
	Elasticsearch ElasticsearchConfig
	Inventory     InventoryConfig
	Replenishment ReplenishmentConfig
	Admin         AdminConfig
}

// InventoryConfig правила продажи
type InventoryConfig struct {
	Timezone          string
	Cutoff            string
	LowStockThreshold int
}

// NewCutoff builds the purchase cutoff on the system clock
func (c InventoryConfig) NewCutoff() (*calendar.Cutoff, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return calendar.NewCutoff(calendar.SystemClock(), loc, c.Cutoff)
}

// ReplenishmentConfig настройки ежемесячного пополнения и очистки
type ReplenishmentConfig struct {
	Enabled            bool
	StadiumID          int64
	MaxPerDate         int
	CheckInterval      time.Duration
	PurgeInterval      time.Duration
	PurgeRetentionDays int
}

// AdminConfig учетные данные административного API. Пустой хэш отключает проверку.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// Load загружает конфигурацию из переменных окружения. Файл .env, если есть,
// подхватывается первым и не перекрывает уже заданные переменные.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		// Performance monitoring
		PprofEnabled: getEnvBool("PPROF_ENABLED", false),
		PprofPort:    getEnv("PPROF_PORT", "6060"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "stadiumtix"),
			Password:           getEnv("DB_PASSWORD", "stadiumtix"),
			DBName:             getEnv("DB_NAME", "stadiumtix"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
			ConnectAttempts:    getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", false),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "stadiumtix"),
			ClientID:  getEnv("NATS_CLIENT_ID", "stadiumtix-api"),
		},

		Redis: cache.Config{
			Enabled:  getEnvBool("VALKEY_ENABLED", false),
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			DB:       getEnvInt("VALKEY_DB", 0),
			TTL:      getEnvDuration("OFFERS_CACHE_TTL", cache.DefaultTTL),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Inventory: InventoryConfig{
			Timezone:          getEnv("TIMEZONE", "Asia/Almaty"),
			Cutoff:            getEnv("CUTOFF", "20:30"),
			LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 5),
		},

		Replenishment: ReplenishmentConfig{
			Enabled:            getEnvBool("REPLENISHMENT_ENABLED", true),
			StadiumID:          int64(getEnvInt("REPLENISHMENT_STADIUM_ID", 1)),
			MaxPerDate:         getEnvInt("REPLENISHMENT_MAX_PER_DATE", 8),
			CheckInterval:      getEnvDuration("REPLENISHMENT_CHECK_INTERVAL", time.Hour),
			PurgeInterval:      getEnvDuration("PURGE_INTERVAL", 24*time.Hour),
			PurgeRetentionDays: getEnvInt("PURGE_RETENTION_DAYS", 1),
		},

		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultValue
}

// getEnvDuration принимает "90s", "1h" и т.п.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stadiumtix/internal/models"
)

// DefaultTTL ограничивает жизнь записи, если инвалидация не дошла
const DefaultTTL = 30 * time.Second

// versionTTL держит счетчики инвалидаций дольше любой записи кэша
const versionTTL = 24 * time.Hour

var errStaleVersion = errors.New("offers version changed")

// Config настройки подключения к Valkey/Redis
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// OffersCache хранит вычисленные предложения по ключу offers:{stadium}:{date}.
// Источник истины остается в базе; кэш только ускоряет чтение.
// Каждая инвалидация увеличивает счетчик версии (на дату или на стадион), и
// Set пишет только если версия не изменилась с момента Version.
type OffersCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOffersCache(cfg Config) (*OffersCache, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewOffersCacheWithClient(rdb, cfg.TTL), nil
}

// NewOffersCacheWithClient wraps an existing client
func NewOffersCacheWithClient(client *redis.Client, ttl time.Duration) *OffersCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &OffersCache{client: client, ttl: ttl}
}

func offersKey(stadiumID int64, date string) string {
	return fmt.Sprintf("offers:%d:%s", stadiumID, date)
}

func stadiumVersionKey(stadiumID int64) string {
	return fmt.Sprintf("offers:ver:%d", stadiumID)
}

func dateVersionKey(stadiumID int64, date string) string {
	return fmt.Sprintf("offers:ver:%d:%s", stadiumID, date)
}

// Version returns a token that changes with every invalidation covering the date
func (c *OffersCache) Version(ctx context.Context, stadiumID int64, date string) (string, error) {
	v, err := readVersion(ctx, c.client, stadiumID, date)
	if err != nil {
		return "", fmt.Errorf("cache version error: %w", err)
	}
	return v, nil
}

// client и Tx внутри WATCH
type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readVersion(ctx context.Context, r multiGetter, stadiumID int64, date string) (string, error) {
	vals, err := r.MGet(ctx, stadiumVersionKey(stadiumID), dateVersionKey(stadiumID, date)).Result()
	if err != nil {
		return "", err
	}
	parts := [2]string{"0", "0"}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			parts[i] = s
		}
	}
	return parts[0] + "/" + parts[1], nil
}

func (c *OffersCache) Get(ctx context.Context, stadiumID int64, date string) ([]models.Offer, bool, error) {
	data, err := c.client.Get(ctx, offersKey(stadiumID, date)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup error: %w", err)
	}

	var offers []models.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		// битую запись просто выбрасываем
		_ = c.client.Del(ctx, offersKey(stadiumID, date)).Err()
		return nil, false, nil
	}
	return offers, true, nil
}

// Set stores offers computed under version. If an invalidation happened since
// Version was read, the offers may be stale and nothing is stored.
func (c *OffersCache) Set(ctx context.Context, stadiumID int64, date, version string, offers []models.Offer) error {
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("failed to marshal offers: %w", err)
	}

	key := offersKey(stadiumID, date)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, stadiumID, date)
		if err != nil {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, stadiumVersionKey(stadiumID), dateVersionKey(stadiumID, date))

	switch {
	case err == nil, errors.Is(err, errStaleVersion), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("cache store error: %w", err)
	}
}

func (c *OffersCache) InvalidateDate(ctx context.Context, stadiumID int64, date string) error {
	verKey := dateVersionKey(stadiumID, date)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionTTL)
		pipe.Del(ctx, offersKey(stadiumID, date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate error: %w", err)
	}
	return nil
}

// InvalidateStadium drops every cached date of a stadium
func (c *OffersCache) InvalidateStadium(ctx context.Context, stadiumID int64) error {
	verKey := stadiumVersionKey(stadiumID)
	if _, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionTTL)
		return nil
	}); err != nil {
		return fmt.Errorf("cache invalidate error: %w", err)
	}

	pattern := fmt.Sprintf("offers:%d:*", stadiumID)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache invalidate error: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *OffersCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *OffersCache) Close() error {
	return c.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/scribe/internal/models"
)

// connectTimeout bounds the ping issued by NewRedis.
const connectTimeout = 5 * time.Second

// RedisConfig holds connection settings for the shared cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Redis is a Store shared between processes. Expiry is delegated to the
// server TTL.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig, logger *slog.Logger) (*Redis, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "scribe:doc:"
	}
	return &Redis{client: client, prefix: prefix, logger: logger}, nil
}

// Get implements Store. Decode and transport failures count as misses.
func (r *Redis) Get(ctx context.Context, key string) (*models.GeneratedDocument, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache: redis get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	var doc models.GeneratedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		r.logger.Warn("cache: redis decode failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return &doc, true
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, doc *models.GeneratedDocument, ttl time.Duration) error {
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/config"
)

// ErrNotConfigured is returned when no Redis address is configured.
var ErrNotConfigured = errors.New("REDIS_ADDR not set")

// RedisClient holds the Redis client connection
type RedisClient struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient initializes and returns a new Redis client
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	if cfg.Addr == "" {
		return nil, ErrNotConfigured
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Addr))

	return &RedisClient{client: client, logger: logger}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, logger *zap.Logger) *RedisClient {
	return &RedisClient{client: client, logger: logger}
}

// Close closes the Redis connection
func (c *RedisClient) Close() {
	if c.client != nil {
		c.client.Close()
		c.logger.Debug("Redis connection closed")
	}
}

// GetClient returns the underlying *redis.Client instance
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

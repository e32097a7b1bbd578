package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// ErrCacheMiss means the product is not cached for the given run.
var ErrCacheMiss = errors.New("cache miss")

// Keys embed the run id, so a new ingestion never serves a previous run's entries.
func productKey(runID, code string) string {
	return fmt.Sprintf("sepa:%s:producto:%s", runID, code)
}

// GetProduct returns the cached lookup response for code.
func (c *RedisClient) GetProduct(ctx context.Context, runID, code string) (*models.ProductResponse, error) {
	raw, err := c.client.Get(ctx, productKey(runID, code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s from Redis: %w", code, err)
	}

	var resp models.ProductResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode cached product %s: %w", code, err)
	}
	return &resp, nil
}

// SetProduct caches resp for code under runID.
func (c *RedisClient) SetProduct(ctx context.Context, runID, code string, resp *models.ProductResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", code, err)
	}
	if err := c.client.Set(ctx, productKey(runID, code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set product %s in Redis: %w", code, err)
	}
	return nil
}

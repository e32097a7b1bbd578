package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const readyKey = "sepa:ready"

// MarkNotReady withdraws the readiness marker; the lookup API refuses
// queries until MarkReady is called by a finished run.
func (c *RedisClient) MarkNotReady(ctx context.Context) error {
	if err := c.client.Del(ctx, readyKey).Err(); err != nil {
		return fmt.Errorf("clear readiness marker: %w", err)
	}
	return nil
}

// MarkReady publishes runID as the run whose data is being served.
func (c *RedisClient) MarkReady(ctx context.Context, runID string) error {
	if err := c.client.Set(ctx, readyKey, runID, 0).Err(); err != nil {
		return fmt.Errorf("set readiness marker: %w", err)
	}
	return nil
}

// ReadyRun returns the id of the run currently served, or "" while an
// ingestion is in progress.
func (c *RedisClient) ReadyRun(ctx context.Context) (string, error) {
	runID, err := c.client.Get(ctx, readyKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get readiness marker: %w", err)
	}
	return runID, nil
}

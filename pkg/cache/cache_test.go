package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcavicchiaUADE/sepa-app/models"
	"github.com/mcavicchiaUADE/sepa-app/pkg/config"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, mr
}

func TestNewRedisClient_NotConfigured(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestReadiness(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	run, err := c.ReadyRun(ctx)
	require.NoError(t, err)
	assert.Empty(t, run)

	require.NoError(t, c.MarkReady(ctx, "run-1"))
	run, err = c.ReadyRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run)
	assert.Equal(t, "run-1", mustGet(t, mr, readyKey))

	require.NoError(t, c.MarkNotReady(ctx))
	run, err = c.ReadyRun(ctx)
	require.NoError(t, err)
	assert.Empty(t, run)
	assert.False(t, mr.Exists(readyKey))
}

func TestProducts(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetProduct(ctx, "run-1", "779")
	assert.ErrorIs(t, err, ErrCacheMiss)

	resp := &models.ProductResponse{
		ProductCode: "779",
		Name:        "Leche",
		Merchants:   []models.MerchantOffer{{MerchantID: "9", VariantID: "1", Name: "Vea", Price: "$1200"}},
	}
	require.NoError(t, c.SetProduct(ctx, "run-1", "779", resp, time.Minute))

	got, err := c.GetProduct(ctx, "run-1", "779")
	require.NoError(t, err)
	assert.Equal(t, resp, got)
	assert.Equal(t, time.Minute, mr.TTL("sepa:run-1:producto:779"))

	_, err = c.GetProduct(ctx, "run-2", "779")
	assert.ErrorIs(t, err, ErrCacheMiss, "entries are scoped to their run")

	mr.FastForward(2 * time.Minute)
	_, err = c.GetProduct(ctx, "run-1", "779")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGetProduct_Corrupt(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set(productKey("run-1", "779"), "{not json"))

	_, err := c.GetProduct(context.Background(), "run-1", "779")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNewFromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zaptest.NewLogger(t))
	defer c.Close()

	require.NoError(t, c.MarkReady(context.Background(), "run-9"))
	assert.Equal(t, "run-9", mustGet(t, mr, readyKey))
	assert.NotNil(t, c.GetClient())
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

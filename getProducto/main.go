package main

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/cache"
	"github.com/mcavicchiaUADE/sepa-app/pkg/config"
	"github.com/mcavicchiaUADE/sepa-app/pkg/database"
	"github.com/mcavicchiaUADE/sepa-app/pkg/logging"
	"github.com/mcavicchiaUADE/sepa-app/pkg/lookup"
)

// cacheTTL bounds how long a product response is served from Redis.
const cacheTTL = 5 * time.Minute

var (
	logger      *zap.Logger
	dbClient    *database.DBClient
	redisClient *cache.RedisClient
	handler     *lookup.Handler
)

func init() {
	boot := logging.Must("info", false)
	config.LoadEnv(boot) // Load environment variables first

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("failed to load configuration", zap.Error(err))
	}
	logger = logging.Must(cfg.LogLevel, cfg.PrettyLogs)
	if cfg.APIKey == "" {
		logger.Warn("API_KEY not set, every authenticated request will be rejected")
	}

	ctx := context.Background()
	dbClient, err = database.NewPostgresClient(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to initialize DB client", zap.Error(err))
	}

	var productCache lookup.Cache
	redisClient, err = cache.NewRedisClient(ctx, cfg.Redis, logger)
	switch {
	case err == nil:
		productCache = redisClient
	case errors.Is(err, cache.ErrNotConfigured):
		logger.Info("Redis not configured, serving lookups from PostgreSQL only")
	default:
		logger.Fatal("failed to initialize Redis client", zap.Error(err))
	}

	svc := lookup.NewService(lookup.NewRepository(dbClient.GetDB()), productCache, cacheTTL, logger)
	handler = lookup.NewHandler(svc, cfg.APIKey, logger)
}

func main() {
	defer dbClient.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}
	defer logger.Sync()
	lambda.Start(handler.Handle)
}

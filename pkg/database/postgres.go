package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/config"
)

// DBClient holds the PostgreSQL connection pool shared by every phase of a run.
type DBClient struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresClient opens the pool and verifies connectivity.
func NewPostgresClient(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*DBClient, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("database", cfg.DBName))
	return &DBClient{db: db, logger: logger}, nil
}

// NewFromDB wraps an already open pool.
func NewFromDB(db *sqlx.DB, logger *zap.Logger) *DBClient {
	return &DBClient{db: db, logger: logger}
}

// Close closes the database connection
func (c *DBClient) Close() {
	if c.db != nil {
		c.db.Close()
		c.logger.Debug("PostgreSQL connection closed")
	}
}

// GetDB returns the underlying *sqlx.DB instance
func (c *DBClient) GetDB() *sqlx.DB {
	return c.db
}

// Package store owns the three ingestion tables: the merchant registry
// (comercios), the final listing table (productos) and the unconstrained
// staging table (productos_staging).
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/database"
)

const (
	tableMerchants = "comercios"
	tableListings  = "productos"
	tableStaging   = "productos_staging"

	indexProductCode = "idx_codigo_barras"
	indexMerchant    = "idx_comercio_bandera"
)

// Store runs set-oriented statements against the listing store. Every method
// commits its own transaction.
type Store struct {
	client *database.DBClient
	db     *sqlx.DB
	logger *zap.Logger

	suspendForeignKeys bool
}

// Option configures a Store.
type Option func(*Store)

// WithForeignKeySuspension controls whether Compact disables referential
// triggers for its insert. Turning it off is required on databases where the
// role may not set session_replication_role.
func WithForeignKeySuspension(enabled bool) Option {
	return func(s *Store) {
		s.suspendForeignKeys = enabled
	}
}

// New returns a Store over client.
func New(client *database.DBClient, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		client:             client,
		db:                 client.GetDB(),
		logger:             logger,
		suspendForeignKeys: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks that the database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTables applies the embedded schema migrations.
func (s *Store) CreateTables(ctx context.Context) error {
	return s.client.Migrate(ctx)
}

// Truncate empties all three tables and drops the listing indexes, so the
// run is a full replace and the bulk load pays no index maintenance.
func (s *Store) Truncate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin truncate: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf("TRUNCATE TABLE %s, %s CASCADE", tableListings, tableMerchants),
		fmt.Sprintf("TRUNCATE TABLE %s", tableStaging),
		fmt.Sprintf("DROP INDEX IF EXISTS %s, %s", indexProductCode, indexMerchant),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit truncate: %w", err)
	}
	s.logger.Debug("tables truncated")
	return nil
}

// Counts reads back the registry and final listing sizes.
func (s *Store) Counts(ctx context.Context) (merchants, listings int64, err error) {
	if err := s.db.GetContext(ctx, &merchants, "SELECT COUNT(*) FROM "+tableMerchants); err != nil {
		return 0, 0, fmt.Errorf("count %s: %w", tableMerchants, err)
	}
	if err := s.db.GetContext(ctx, &listings, "SELECT COUNT(*) FROM "+tableListings); err != nil {
		return 0, 0, fmt.Errorf("count %s: %w", tableListings, err)
	}
	return merchants, listings, nil
}

// StagedCount returns the number of rows currently in staging.
func (s *Store) StagedCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+tableStaging); err != nil {
		return 0, fmt.Errorf("count %s: %w", tableStaging, err)
	}
	return n, nil
}

package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// compactSQL keeps the cheapest row per (merchant, variant, product). Equal prices fall
// back to description then brand, which is deterministic but arbitrary.
// Staged rows whose merchant is not registered are dropped.
var compactSQL = fmt.Sprintf(`
INSERT INTO %[1]s (id_comercio, id_bandera, id_producto, productos_precio_lista, productos_descripcion, productos_marca)
SELECT DISTINCT ON (s.id_comercio, s.id_bandera, s.id_producto)
    s.id_comercio, s.id_bandera, s.id_producto, s.productos_precio_lista, s.productos_descripcion, s.productos_marca
FROM %[2]s s
WHERE EXISTS (
    SELECT 1 FROM %[3]s c
    WHERE c.id_comercio = s.id_comercio AND c.id_bandera = s.id_bandera
)
ORDER BY s.id_comercio, s.id_bandera, s.id_producto,
    s.productos_precio_lista, s.productos_descripcion, s.productos_marca`,
	tableListings, tableStaging, tableMerchants)

// Compact moves staging into the final listing table in one statement and
// truncates staging, all in one transaction. It returns the rows inserted.
func (s *Store) Compact(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin compaction: %w", err)
	}
	defer tx.Rollback()

	// SET LOCAL reverts at commit or rollback.
	if s.suspendForeignKeys {
		if _, err := tx.ExecContext(ctx, "SET LOCAL session_replication_role = replica"); err != nil {
			return 0, fmt.Errorf("suspend foreign keys: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, compactSQL)
	if err != nil {
		return 0, fmt.Errorf("compact staging: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("compaction row count: %w", err)
	}

	if s.suspendForeignKeys {
		if _, err := tx.ExecContext(ctx, "SET LOCAL session_replication_role = DEFAULT"); err != nil {
			return 0, fmt.Errorf("restore foreign keys: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+tableStaging); err != nil {
		return 0, fmt.Errorf("truncate staging: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit compaction: %w", err)
	}
	s.logger.Info("staging compacted", zap.Int64("rows", moved))
	return moved, nil
}

// BuildIndexes creates the lookup indexes on the final listing table if they
// are missing, then refreshes planner statistics.
func (s *Store) BuildIndexes(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (id_producto)", indexProductCode, tableListings),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (id_comercio, id_bandera)", indexMerchant, tableListings),
		"ANALYZE " + tableListings,
	}
	for _, stmt := range stmts {
		s.logger.Debug("index builder", zap.String("stmt", stmt))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

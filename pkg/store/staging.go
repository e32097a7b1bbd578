package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// ListingSource yields normalization results; rejected rows are skipped.
type ListingSource interface {
	Next() bool
	Result() models.ListingResult
	Err() error
}

var stagingColumns = []string{
	"id_comercio", "id_bandera", "id_producto",
	"productos_precio_lista", "productos_descripcion", "productos_marca",
}

// StageListings bulk-appends the accepted rows of src to the staging table
// with COPY, in one transaction. It returns 0 and rolls back on any error, so
// a merchant's rows are either all staged or none are. A source with no
// accepted rows opens no transaction.
func (s *Store) StageListings(ctx context.Context, src ListingSource) (int, error) {
	var (
		tx    *sqlx.Tx
		stmt  *sql.Stmt
		count int
		err   error
	)
	defer func() {
		if stmt != nil {
			stmt.Close()
		}
		if tx != nil {
			tx.Rollback()
		}
	}()

	for src.Next() {
		res := src.Result()
		if !res.OK() {
			continue
		}
		if tx == nil {
			if tx, err = s.db.BeginTxx(ctx, nil); err != nil {
				return 0, fmt.Errorf("begin staging load: %w", err)
			}
			if stmt, err = tx.PrepareContext(ctx, pq.CopyIn(tableStaging, stagingColumns...)); err != nil {
				return 0, fmt.Errorf("prepare copy: %w", err)
			}
		}

		l := res.Listing
		if _, err = stmt.ExecContext(ctx, l.MerchantID, l.VariantID, l.ProductCode, l.Price, l.Description, nullString(l.Brand)); err != nil {
			return 0, fmt.Errorf("copy row %d: %w", count+1, err)
		}
		count++
	}
	if err = src.Err(); err != nil {
		return 0, fmt.Errorf("read listings: %w", err)
	}
	if tx == nil {
		return 0, nil
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	err = stmt.Close()
	stmt = nil
	if err != nil {
		return 0, fmt.Errorf("close copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit staging load: %w", err)
	}
	tx = nil

	s.logger.Debug("listings staged", zap.Int("rows", count))
	return count, nil
}

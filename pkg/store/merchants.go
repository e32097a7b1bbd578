package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// MerchantSource yields normalized merchants.
type MerchantSource interface {
	Next() bool
	Merchant() models.Merchant
	Err() error
}

var upsertMerchantSQL = func() string {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(tableMerchants)
	ib.Cols("id_comercio", "id_bandera", "comercio_razon_social", "comercio_bandera_nombre", "comercio_bandera_url")
	ib.Values(0, 0, "", "", "")
	ib.SQL(`ON CONFLICT (id_comercio, id_bandera) DO UPDATE SET
		comercio_razon_social = EXCLUDED.comercio_razon_social,
		comercio_bandera_nombre = EXCLUDED.comercio_bandera_nombre,
		comercio_bandera_url = EXCLUDED.comercio_bandera_url`)
	query, _ := ib.Build()
	return query
}()

// UpsertMerchants inserts or overwrites every merchant from src keyed by
// (id_comercio, id_bandera), in one transaction. Nothing is written when src fails.
func (s *Store) UpsertMerchants(ctx context.Context, src MerchantSource) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin merchant upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertMerchantSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare merchant upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for src.Next() {
		m := src.Merchant()
		if _, err := stmt.ExecContext(ctx, m.MerchantID, m.VariantID, m.LegalName, m.DisplayName, nullString(m.URL)); err != nil {
			return 0, fmt.Errorf("upsert merchant %d/%d: %w", m.MerchantID, m.VariantID, err)
		}
		count++
	}
	if err := src.Err(); err != nil {
		return 0, fmt.Errorf("read merchants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit merchant upsert: %w", err)
	}
	s.logger.Debug("merchants upserted", zap.Int("count", count))
	return count, nil
}

// nullString converts a Go string to sql.NullString for nullable DB columns
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

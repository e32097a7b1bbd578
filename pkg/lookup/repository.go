// Package lookup answers product queries against the final listing store.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// DefaultSearchLimit caps description searches when no limit is given.
const DefaultSearchLimit = 20

const maxSearchLimit = 100

// findByCodeSQL keeps the cheapest listing per (id_comercio, id_bandera).
const findByCodeSQL = `
SELECT DISTINCT ON (p.id_comercio, p.id_bandera)
	p.id_producto,
	p.productos_descripcion,
	p.productos_marca,
	p.productos_precio_lista,
	p.id_comercio,
	p.id_bandera,
	c.comercio_bandera_nombre,
	c.comercio_razon_social,
	c.comercio_bandera_url
FROM productos p
INNER JOIN comercios c ON p.id_comercio = c.id_comercio AND p.id_bandera = c.id_bandera
WHERE p.id_producto = $1
ORDER BY p.id_comercio, p.id_bandera, p.productos_precio_lista ASC`

// Repository reads the final listing store.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps db.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindByCode returns one row per merchant variant carrying code, ordered by
// merchant and variant. An empty slice means the code is unknown.
func (r *Repository) FindByCode(ctx context.Context, code string) ([]models.ListingMatch, error) {
	var matches []models.ListingMatch
	if err := r.db.SelectContext(ctx, &matches, findByCodeSQL, code); err != nil {
		return nil, fmt.Errorf("find product %s: %w", code, err)
	}
	return matches, nil
}

// SearchByDescription returns products whose description contains term,
// case-insensitively, with their price range, most widely sold first.
func (r *Repository) SearchByDescription(ctx context.Context, term string, limit int) ([]models.ProductSummary, error) {
	query, args := searchQuery(term, limit)

	var summaries []models.ProductSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("search products %q: %w", term, err)
	}
	return summaries, nil
}

func searchQuery(term string, limit int) (string, []interface{}) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"id_producto",
		"productos_descripcion",
		"productos_marca",
		"MIN(productos_precio_lista) AS precio_minimo",
		"MAX(productos_precio_lista) AS precio_maximo",
		"COUNT(*) AS cantidad_comercios",
	)
	sb.From("productos")
	sb.Where("productos_descripcion ILIKE " + sb.Var("%"+escapeLike(term)+"%"))
	sb.GroupBy("id_producto", "productos_descripcion", "productos_marca")
	sb.OrderBy("cantidad_comercios DESC", "id_producto")
	sb.Limit(limit)
	return sb.Build()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

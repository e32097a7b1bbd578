package models

import "database/sql"

// ListingMatch is one final-store row joined to its merchant, as read by the lookup API.
type ListingMatch struct {
	ProductCode string         `db:"id_producto"`
	Description string         `db:"productos_descripcion"`
	Brand       sql.NullString `db:"productos_marca"`
	Price       float64        `db:"productos_precio_lista"`
	MerchantID  int            `db:"id_comercio"`
	VariantID   int            `db:"id_bandera"`
	DisplayName sql.NullString `db:"comercio_bandera_nombre"`
	LegalName   sql.NullString `db:"comercio_razon_social"`
	URL         sql.NullString `db:"comercio_bandera_url"`
}

// ProductSummary aggregates a product across every merchant carrying it.
type ProductSummary struct {
	ProductCode   string          `db:"id_producto" json:"id_producto"`
	Description   string          `db:"productos_descripcion" json:"nombre_producto"`
	Brand         sql.NullString  `db:"productos_marca" json:"-"`
	MinPrice      sql.NullFloat64 `db:"precio_minimo" json:"-"`
	MaxPrice      sql.NullFloat64 `db:"precio_maximo" json:"-"`
	MerchantCount int             `db:"cantidad_comercios" json:"cantidad_comercios"`
}

// MerchantOffer is the per-merchant entry of a ProductResponse.
type MerchantOffer struct {
	MerchantID string `json:"id_comercio"`
	VariantID  string `json:"id_bandera"`
	Name       string `json:"nombre_comercio"`
	Price      string `json:"precio_producto"`
}

// ProductResponse is the lookup API payload for one product code.
type ProductResponse struct {
	ProductCode string          `json:"id_producto"`
	Name        string          `json:"nombre_producto"`
	Brand       string          `json:"marca_producto"`
	Merchants   []MerchantOffer `json:"comercios"`
}

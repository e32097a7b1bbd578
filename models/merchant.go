package models

import "sort"

// MerchantKey is the composite identity of a merchant banner.
type MerchantKey struct {
	MerchantID int `db:"id_comercio" json:"id_comercio"`
	VariantID  int `db:"id_bandera" json:"id_bandera"`
}

// Merchant represents one row of comercio.csv after normalization
type Merchant struct {
	MerchantKey
	LegalName   string `db:"comercio_razon_social" json:"comercio_razon_social"`
	DisplayName string `db:"comercio_bandera_nombre" json:"comercio_bandera_nombre"`
	URL         string `db:"comercio_bandera_url" json:"comercio_bandera_url"` // empty string is stored as NULL
}

// AllowList is the configured set of merchant ids eligible for ingestion.
type AllowList map[int]struct{}

// NewAllowList builds an AllowList from ids.
func NewAllowList(ids ...int) AllowList {
	a := make(AllowList, len(ids))
	for _, id := range ids {
		a[id] = struct{}{}
	}
	return a
}

// Allowed reports whether merchantID may be ingested.
func (a AllowList) Allowed(merchantID int) bool {
	_, ok := a[merchantID]
	return ok
}

// IDs returns the allowed ids in ascending order.
func (a AllowList) IDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

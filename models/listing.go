package models

// Listing is one price observation for a product at one merchant banner.
type Listing struct {
	MerchantKey
	ProductCode string `db:"id_producto" json:"id_producto"`
	// Price is the decimal text as parsed from the source, at full precision.
	// The store rounds it to NUMERIC(10,2).
	Price       string `db:"productos_precio_lista" json:"productos_precio_lista"`
	Description string `db:"productos_descripcion" json:"productos_descripcion"`
	Brand       string `db:"productos_marca" json:"productos_marca"`
}

// RejectReason classifies why a raw listing row failed normalization.
type RejectReason string

const (
	RejectMissingProductCode    RejectReason = "missing_product_code"
	RejectMerchantNotAllowed    RejectReason = "merchant_not_allowed"
	RejectMissingVariantID      RejectReason = "missing_variant_id"
	RejectMissingOrInvalidPrice RejectReason = "missing_or_invalid_price"
	RejectMissingDescription    RejectReason = "missing_description"
	RejectOther                 RejectReason = "other"
)

// RejectReasons lists every reason in validation order.
var RejectReasons = []RejectReason{
	RejectMissingProductCode,
	RejectOther,
	RejectMerchantNotAllowed,
	RejectMissingVariantID,
	RejectMissingOrInvalidPrice,
	RejectMissingDescription,
}

// Rejections counts rejected rows by reason.
type Rejections map[RejectReason]int

// Total sums all reasons.
func (r Rejections) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Add merges other into r.
func (r Rejections) Add(other Rejections) {
	for reason, c := range other {
		r[reason] += c
	}
}

// ListingResult is the outcome of normalizing one raw listing row: either a
// Listing, or the Reason it was rejected.
type ListingResult struct {
	Listing Listing
	Reason  RejectReason
}

// OK reports whether the row was accepted.
func (r ListingResult) OK() bool {
	return r.Reason == ""
}

package normalize

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// ProgressEvery is how many accepted rows pass between progress callbacks.
const ProgressEvery = 100_000

// maxPrice is the smallest value NUMERIC(10,2) rounds out of range.
const maxPrice = 99999999.995

// ListingReader streams productos.csv, yielding one ListingResult per data row.
type ListingReader struct {
	cr       csvReader
	h        header
	allow    models.AllowList
	cur      models.ListingResult
	total    int
	accepted int
	rejected models.Rejections
	progress func(accepted int)
	err      error
	closer   io.Closer
}

// NewListingReader reads the header of r. progress, when non-nil, is called
// every ProgressEvery accepted rows.
func NewListingReader(r io.Reader, allow models.AllowList, progress func(accepted int)) (*ListingReader, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	return &ListingReader{
		cr:       cr,
		h:        h,
		allow:    allow,
		rejected: make(models.Rejections),
		progress: progress,
	}, nil
}

// OpenListingFile opens path for streaming. Close releases the file.
func OpenListingFile(path string, allow models.AllowList, progress func(accepted int)) (*ListingReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	lr, err := NewListingReader(f, allow, progress)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lr.closer = f
	return lr, nil
}

// Next advances to the next row, accepted or rejected.
func (l *ListingReader) Next() bool {
	if l.err != nil {
		return false
	}

	rec, err := l.cr.Read()
	if err == io.EOF {
		return false
	}
	if err != nil && !isParseError(err) {
		l.err = err
		return false
	}

	l.total++
	if err != nil {
		l.cur = models.ListingResult{Reason: models.RejectOther}
	} else {
		l.cur = normalizeListing(l.h, rec, l.allow)
	}

	if !l.cur.OK() {
		l.rejected[l.cur.Reason]++
		return true
	}
	l.accepted++
	if l.progress != nil && l.accepted%ProgressEvery == 0 {
		l.progress(l.accepted)
	}
	return true
}

// Result returns the row Next advanced to.
func (l *ListingReader) Result() models.ListingResult {
	return l.cur
}

// Total counts data rows read so far.
func (l *ListingReader) Total() int {
	return l.total
}

// Accepted counts rows that passed validation so far.
func (l *ListingReader) Accepted() int {
	return l.accepted
}

// Rejections returns rejected-row counts by reason.
func (l *ListingReader) Rejections() models.Rejections {
	return l.rejected
}

// Err returns the first I/O error, if any.
func (l *ListingReader) Err() error {
	return l.err
}

// Close closes the underlying file when the reader was opened from a path.
func (l *ListingReader) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// normalizeListing validates one productos.csv record. The first failing
// check decides the rejection reason.
func normalizeListing(h header, rec []string, allow models.AllowList) models.ListingResult {
	code := h.field(rec, colProductCode)
	if code == "" {
		return models.ListingResult{Reason: models.RejectMissingProductCode}
	}

	merchantID, err := strconv.Atoi(h.merchant(rec))
	if err != nil {
		return models.ListingResult{Reason: models.RejectOther}
	}
	if !allow.Allowed(merchantID) {
		return models.ListingResult{Reason: models.RejectMerchantNotAllowed}
	}

	variantID, err := strconv.Atoi(h.field(rec, colVariantID))
	if err != nil {
		return models.ListingResult{Reason: models.RejectMissingVariantID}
	}

	price, ok := parsePrice(h.field(rec, colPrice))
	if !ok {
		return models.ListingResult{Reason: models.RejectMissingOrInvalidPrice}
	}

	description := h.field(rec, colDescription)
	if description == "" {
		return models.ListingResult{Reason: models.RejectMissingDescription}
	}

	return models.ListingResult{Listing: models.Listing{
		MerchantKey: models.MerchantKey{MerchantID: merchantID, VariantID: variantID},
		ProductCode: code,
		Price:       price,
		Description: description,
		Brand:       h.field(rec, colBrand),
	}}
}

// parsePrice accepts a non-negative finite decimal that fits NUMERIC(10,2)
// and renders it at full precision.
func parsePrice(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= maxPrice {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

package normalize

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// MerchantReader streams normalized merchants from comercio.csv. Rows with a
// blank, non-numeric or disallowed merchant id, or a blank or non-numeric
// variant id, are skipped silently.
type MerchantReader struct {
	cr      csvReader
	h       header
	allow   models.AllowList
	cur     models.Merchant
	skipped int
	err     error
	closer  io.Closer
}

type csvReader interface {
	Read() ([]string, error)
}

// NewMerchantReader reads the header of r and prepares to stream rows.
func NewMerchantReader(r io.Reader, allow models.AllowList) (*MerchantReader, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	return &MerchantReader{cr: cr, h: h, allow: allow}, nil
}

// OpenMerchantFile opens path for streaming. Close releases the file.
func OpenMerchantFile(path string, allow models.AllowList) (*MerchantReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	mr, err := NewMerchantReader(f, allow)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	mr.closer = f
	return mr, nil
}

// Next advances to the next accepted merchant.
func (m *MerchantReader) Next() bool {
	if m.err != nil {
		return false
	}
	for {
		rec, err := m.cr.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			if isParseError(err) {
				m.skipped++
				continue
			}
			m.err = err
			return false
		}

		merchant, ok := normalizeMerchant(m.h, rec, m.allow)
		if !ok {
			m.skipped++
			continue
		}
		m.cur = merchant
		return true
	}
}

// Merchant returns the row Next advanced to.
func (m *MerchantReader) Merchant() models.Merchant {
	return m.cur
}

// Skipped counts rows dropped so far.
func (m *MerchantReader) Skipped() int {
	return m.skipped
}

// Err returns the first I/O error, if any.
func (m *MerchantReader) Err() error {
	return m.err
}

// Close closes the underlying file when the reader was opened from a path.
func (m *MerchantReader) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

// normalizeMerchant validates one comercio.csv record.
func normalizeMerchant(h header, rec []string, allow models.AllowList) (models.Merchant, bool) {
	merchantID, err := strconv.Atoi(h.merchant(rec))
	if err != nil || !allow.Allowed(merchantID) {
		return models.Merchant{}, false
	}
	variantID, err := strconv.Atoi(h.field(rec, colVariantID))
	if err != nil {
		return models.Merchant{}, false
	}

	return models.Merchant{
		MerchantKey: models.MerchantKey{MerchantID: merchantID, VariantID: variantID},
		LegalName:   h.field(rec, colLegalName),
		DisplayName: h.field(rec, colDisplayName),
		URL:         h.field(rec, colURL),
	}, true
}

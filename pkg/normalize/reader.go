// Package normalize validates and normalizes the pipe-delimited SEPA files
// row by row, without materializing them.
package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	delimiter = '|'

	colMerchantID  = "id_comercio"
	colVariantID   = "id_bandera"
	colLegalName   = "comercio_razon_social"
	colDisplayName = "comercio_bandera_nombre"
	colURL         = "comercio_bandera_url"
	colProductCode = "id_producto"
	colPrice       = "productos_precio_lista"
	colDescription = "productos_descripcion"
	colBrand       = "productos_marca"
)

// ErrNoMerchantColumn means the header has no column naming the merchant id.
var ErrNoMerchantColumn = errors.New("merchant id column not found")

// newCSVReader decodes UTF-8 with an optional byte-order mark. Quotes are
// strict: a malformed line fails alone with a *csv.ParseError instead of
// running into the lines after it.
func newCSVReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

func normalizeColumn(name string) string {
	name = strings.ReplaceAll(name, "\ufeff", "")
	name = strings.ReplaceAll(name, " ", "")
	return strings.ToLower(strings.TrimSpace(name))
}

// header maps normalized column names to record positions.
type header struct {
	index      map[string]int
	merchantID int
}

func readHeader(cr *csv.Reader) (header, error) {
	rec, err := cr.Read()
	if err == io.EOF {
		return header{}, fmt.Errorf("empty file: %w", ErrNoMerchantColumn)
	}
	if err != nil {
		return header{}, fmt.Errorf("read header: %w", err)
	}

	h := header{index: make(map[string]int, len(rec)), merchantID: -1}
	for i, col := range rec {
		name := normalizeColumn(col)
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
		if h.merchantID < 0 && strings.Contains(name, colMerchantID) {
			h.merchantID = i
		}
	}
	if h.merchantID < 0 {
		return header{}, ErrNoMerchantColumn
	}
	return h, nil
}

// field returns the trimmed value of col, or "" when the column or the cell is absent.
func (h header) field(rec []string, col string) string {
	i, ok := h.index[col]
	if !ok {
		return ""
	}
	return at(rec, i)
}

func (h header) merchant(rec []string) string {
	return at(rec, h.merchantID)
}

func at(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// isParseError reports whether err concerns a single malformed record, after
// which reading can continue.
func isParseError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

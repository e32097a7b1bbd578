package normalize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

const listingHeader = "id_comercio|id_bandera|id_sucursal|id_producto|productos_ean|productos_descripcion|productos_cantidad_presentacion|productos_unidad_medida_presentacion|productos_marca|productos_precio_lista\n"

func readAllListings(t *testing.T, lr *ListingReader) []models.ListingResult {
	t.Helper()
	var out []models.ListingResult
	for lr.Next() {
		out = append(out, lr.Result())
	}
	require.NoError(t, lr.Err())
	return out
}

func TestListingReader_AcceptsValidRows(t *testing.T) {
	input := listingHeader +
		"9|1|1|7790001|1|Leche entera 1L|1|lt|La Serenisima|1200.50\n" +
		"9|2|1|7790002|1|Yerba 500g|500|gr||850\n"

	lr, err := NewListingReader(strings.NewReader(input), models.NewAllowList(9), nil)
	require.NoError(t, err)
	rows := readAllListings(t, lr)

	require.Len(t, rows, 2)
	assert.True(t, rows[0].OK())
	assert.Equal(t, models.Listing{
		MerchantKey: models.MerchantKey{MerchantID: 9, VariantID: 1},
		ProductCode: "7790001",
		Price:       "1200.5",
		Description: "Leche entera 1L",
		Brand:       "La Serenisima",
	}, rows[0].Listing)
	assert.Equal(t, "", rows[1].Listing.Brand)
	assert.Equal(t, 2, lr.Accepted())
	assert.Zero(t, lr.Rejections().Total())
}

func TestListingReader_RejectionReasons(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		reason models.RejectReason
	}{
		{"missing product code", "9|1|1||1|Leche|1|lt|M|100", models.RejectMissingProductCode},
		{"code checked before merchant", "77|1|1||1|Leche|1|lt|M|100", models.RejectMissingProductCode},
		{"non numeric merchant", "abc|1|1|7790001|1|Leche|1|lt|M|100", models.RejectOther},
		{"merchant not allowed", "77|1|1|7790001|1|Leche|1|lt|M|100", models.RejectMerchantNotAllowed},
		{"missing variant", "9||1|7790001|1|Leche|1|lt|M|100", models.RejectMissingVariantID},
		{"non numeric variant", "9|x|1|7790001|1|Leche|1|lt|M|100", models.RejectMissingVariantID},
		{"missing price", "9|1|1|7790001|1|Leche|1|lt|M|", models.RejectMissingOrInvalidPrice},
		{"garbage price", "9|1|1|7790001|1|Leche|1|lt|M|12,50", models.RejectMissingOrInvalidPrice},
		{"price checked before description", "9|1|1|7790001|1||1|lt|M|", models.RejectMissingOrInvalidPrice},
		{"missing description", "9|1|1|7790001|1||1|lt|M|100", models.RejectMissingDescription},
		{"blank description", "9|1|1|7790001|1|   |1|lt|M|100", models.RejectMissingDescription},
		{"footer line", "Ultima actualizacion: 2024-11-05", models.RejectMissingProductCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr, err := NewListingReader(strings.NewReader(listingHeader+tt.row+"\n"), models.NewAllowList(9), nil)
			require.NoError(t, err)
			rows := readAllListings(t, lr)

			require.Len(t, rows, 1)
			assert.False(t, rows[0].OK())
			assert.Equal(t, tt.reason, rows[0].Reason)
			assert.Equal(t, 1, lr.Rejections()[tt.reason])
			assert.Zero(t, lr.Accepted())
		})
	}
}

func TestListingReader_MalformedQuoteRejectsOnlyItsLine(t *testing.T) {
	input := listingHeader +
		`9|1|1|7790111|1|"Oferta" 2x1 galletitas|1|u|Bagley|100` + "\n" +
		"9|1|1|7790222|1|Galletitas dulces|1|u|Bagley|200\n" +
		"9|1|1|7790333|1|Galletitas saladas|1|u|Bagley|300\n"

	lr, err := NewListingReader(strings.NewReader(input), models.NewAllowList(9), nil)
	require.NoError(t, err)
	rows := readAllListings(t, lr)

	require.Len(t, rows, 3)
	assert.Equal(t, models.RejectOther, rows[0].Reason)
	require.True(t, rows[1].OK())
	assert.Equal(t, "7790222", rows[1].Listing.ProductCode)
	require.True(t, rows[2].OK())
	assert.Equal(t, "7790333", rows[2].Listing.ProductCode)
	assert.Equal(t, 3, lr.Total())
	assert.Equal(t, 2, lr.Accepted())
	assert.Equal(t, 1, lr.Rejections()[models.RejectOther])
}

func TestListingReader_ByteOrderMarkAndHeaderNoise(t *testing.T) {
	input := "\ufeff ID_Comercio |id_bandera|id_producto|productos_descripcion|productos_marca|productos_precio_lista\n" +
		" 9 | 3 | 7790001 | Arroz | Gallo | 99.99 \n"

	lr, err := NewListingReader(strings.NewReader(input), models.NewAllowList(9), nil)
	require.NoError(t, err)
	rows := readAllListings(t, lr)

	require.Len(t, rows, 1)
	require.True(t, rows[0].OK(), "rejected: %s", rows[0].Reason)
	assert.Equal(t, 9, rows[0].Listing.MerchantID)
	assert.Equal(t, 3, rows[0].Listing.VariantID)
	assert.Equal(t, "7790001", rows[0].Listing.ProductCode)
	assert.Equal(t, "Arroz", rows[0].Listing.Description)
	assert.Equal(t, "99.99", rows[0].Listing.Price)
}

func TestListingReader_MerchantColumnVariant(t *testing.T) {
	input := "id_comercio_sepa|id_bandera|id_producto|productos_descripcion|productos_precio_lista\n" +
		"12|1|7790001|Azucar|500\n"

	lr, err := NewListingReader(strings.NewReader(input), models.NewAllowList(12), nil)
	require.NoError(t, err)
	rows := readAllListings(t, lr)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OK())
	assert.Equal(t, 12, rows[0].Listing.MerchantID)
}

func TestListingReader_NoMerchantColumn(t *testing.T) {
	_, err := NewListingReader(strings.NewReader("id_bandera|id_producto\n1|2\n"), models.NewAllowList(9), nil)
	assert.ErrorIs(t, err, ErrNoMerchantColumn)

	_, err = NewListingReader(strings.NewReader(""), models.NewAllowList(9), nil)
	assert.ErrorIs(t, err, ErrNoMerchantColumn)
}

func TestListingReader_Progress(t *testing.T) {
	var b strings.Builder
	b.WriteString(listingHeader)
	for i := 0; i < ProgressEvery*2+10; i++ {
		b.WriteString("9|1|1|779|1|Leche|1|lt|M|1\n")
	}
	b.WriteString("9|1|1||1|Leche|1|lt|M|1\n")

	var calls []int
	lr, err := NewListingReader(strings.NewReader(b.String()), models.NewAllowList(9), func(n int) {
		calls = append(calls, n)
	})
	require.NoError(t, err)
	for lr.Next() {
	}
	require.NoError(t, lr.Err())

	assert.Equal(t, []int{ProgressEvery, ProgressEvery * 2}, calls)
	assert.Equal(t, ProgressEvery*2+11, lr.Total())
	assert.Equal(t, ProgressEvery*2+10, lr.Accepted())
	assert.Equal(t, 1, lr.Rejections()[models.RejectMissingProductCode])
}

func TestOpenListingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "productos.csv")
	require.NoError(t, os.WriteFile(path, []byte(listingHeader+"9|1|1|779|1|Leche|1|lt|M|1\n"), 0o644))

	lr, err := OpenListingFile(path, models.NewAllowList(9), nil)
	require.NoError(t, err)
	rows := readAllListings(t, lr)
	assert.Len(t, rows, 1)
	assert.NoError(t, lr.Close())

	_, err = OpenListingFile(filepath.Join(t.TempDir(), "missing.csv"), models.NewAllowList(9), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"1200.50", "1200.5", true},
		{"0", "0", true},
		{"99999999.99", "99999999.99", true},
		{"99999999.994", "99999999.994", true},
		{"99999999.995", "", false},
		{"99999999.999", "", false},
		{"12.345", "12.345", true},
		{"", "", false},
		{"abc", "", false},
		{"-1", "", false},
		{"NaN", "", false},
		{"Inf", "", false},
		{"1e8", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parsePrice(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

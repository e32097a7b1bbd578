package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

const merchantHeader = "id_comercio|id_bandera|comercio_cuit|comercio_razon_social|comercio_bandera_nombre|comercio_bandera_url|comercio_ultima_actualizacion|comercio_version_sepa\n"

func TestMerchantReader(t *testing.T) {
	input := "\ufeff" + merchantHeader +
		"10|1|30-1|INC S.A.|Hipermercado|https://www.carrefour.com.ar|2024-11-05|v1\n" +
		"10|2|30-1|INC S.A.|Express||2024-11-05|v1\n" +
		"10||30-1|INC S.A.|Sin bandera||2024-11-05|v1\n" +
		"77|1|30-2|Otro S.A.|Otro||2024-11-05|v1\n" +
		"|1|30-3|Vacio||||\n" +
		"Ultima actualizacion: 2024-11-05\n"

	mr, err := NewMerchantReader(strings.NewReader(input), models.NewAllowList(10))
	require.NoError(t, err)

	var got []models.Merchant
	for mr.Next() {
		got = append(got, mr.Merchant())
	}
	require.NoError(t, mr.Err())

	assert.Equal(t, []models.Merchant{
		{
			MerchantKey: models.MerchantKey{MerchantID: 10, VariantID: 1},
			LegalName:   "INC S.A.",
			DisplayName: "Hipermercado",
			URL:         "https://www.carrefour.com.ar",
		},
		{
			MerchantKey: models.MerchantKey{MerchantID: 10, VariantID: 2},
			LegalName:   "INC S.A.",
			DisplayName: "Express",
		},
	}, got)
	assert.Equal(t, 4, mr.Skipped())
}

func TestMerchantReader_MissingOptionalColumns(t *testing.T) {
	input := "id_comercio|id_bandera\n9|1\n"

	mr, err := NewMerchantReader(strings.NewReader(input), models.NewAllowList(9))
	require.NoError(t, err)
	require.True(t, mr.Next())
	assert.Equal(t, models.Merchant{MerchantKey: models.MerchantKey{MerchantID: 9, VariantID: 1}}, mr.Merchant())
	assert.False(t, mr.Next())
	assert.NoError(t, mr.Close())
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "id_comercio", normalizeColumn("\ufeffid_comercio"))
	assert.Equal(t, "id_comercio", normalizeColumn(" ID_Comercio "))
	assert.Equal(t, "productos_precio_lista", normalizeColumn("productos_precio_ lista"))
}

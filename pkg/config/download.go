package config

const datasetBase = "https://datos.produccion.gob.ar/dataset/6f47ec76-d1ce-4e34-a7e1-621fe9b1d0b5/resource/"

// DefaultDownloadURLs returns the published archive per weekday.
// Monday has no dataset of its own and reuses Tuesday's.
func DefaultDownloadURLs() map[int]string {
	tuesday := datasetBase + "9dc06241-cc83-44f4-8e25-c9b1636b8bc8/download/sepa_martes.zip"
	return map[int]string{
		0: datasetBase + "f8e75128-515a-436e-bf8d-5c63a62f2005/download/sepa_domingo.zip",
		1: tuesday,
		2: tuesday,
		3: datasetBase + "1e92cd42-4f94-4071-a165-62c4cb2ce23c/download/sepa_miercoles.zip",
		4: datasetBase + "d076720f-a7f0-4af8-b1d6-1b99d5a90c14/download/sepa_jueves.zip",
		5: datasetBase + "91bc072a-4726-44a1-85ec-4a8467aad27e/download/sepa_viernes.zip",
		6: datasetBase + "b3c3da5d-213d-41e7-8d74-f23fda0a3c30/download/sepa_sabado.zip",
	}
}

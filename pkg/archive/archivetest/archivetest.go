// Package archivetest builds SEPA-shaped archives for tests.
package archivetest

import (
	"archive/zip"
	"bytes"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
)

// MerchantZip is one per-merchant archive: a file name and its entries.
type MerchantZip struct {
	Name  string
	Files map[string]string
}

// Merchant returns a MerchantZip named like the published dataset with the
// given comercio.csv and productos.csv contents.
func Merchant(id int, comercio, productos string) MerchantZip {
	return MerchantZip{
		Name: "sepa_1_comercio-sepa-" + strconv.Itoa(id) + "_2024-11-05_09-05-07.zip",
		Files: map[string]string{
			"comercio.csv":  comercio,
			"productos.csv": productos,
		},
	}
}

// ZipBytes encodes files as a zip, entries in name order.
func ZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteOuter writes dir/sepa.zip holding the merchant zips under folder,
// or at the root when folder is empty, and returns its path.
func WriteOuter(t testing.TB, dir, folder string, merchants ...MerchantZip) string {
	t.Helper()
	files := make(map[string]string, len(merchants))
	for _, m := range merchants {
		files[path.Join(folder, m.Name)] = string(ZipBytes(t, m.Files))
	}

	out := filepath.Join(dir, "sepa.zip")
	if err := os.WriteFile(out, ZipBytes(t, files), 0o644); err != nil {
		t.Fatalf("write outer archive: %v", err)
	}
	return out
}


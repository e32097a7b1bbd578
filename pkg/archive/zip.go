package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip unpacks src into dest. Entries that would land outside dest are rejected.
func extractZip(ctx context.Context, src, dest string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open zip %s: %w", src, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}

	files := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("zip entry %q escapes extraction dir", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", target, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	_, err = io.Copy(out, rc)
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("copy zip entry %s: %w", f.Name, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", target, closeErr)
	}
	return nil
}

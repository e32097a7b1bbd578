// Package archive walks the nested SEPA archive: one outer zip holding a
// dated folder of per-merchant zips, each holding comercio.csv and productos.csv.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

const (
	// MerchantFile is the merchant metadata file inside each merchant archive.
	MerchantFile = "comercio.csv"
	// ListingFile is the price listing file inside each merchant archive.
	ListingFile = "productos.csv"
)

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	merchantPattern = regexp.MustCompile(`comercio-sepa-(\d+)`)
)

// ErrFileNotFound is returned by FindFile when no file carries the wanted name.
var ErrFileNotFound = errors.New("file not found")

// MerchantArchive is one allowed per-merchant zip inside the data directory.
type MerchantArchive struct {
	Path       string
	MerchantID int
}

// Name is the archive file name.
func (m MerchantArchive) Name() string {
	return filepath.Base(m.Path)
}

// Walker owns the scratch area of one run. Close removes everything it created.
type Walker struct {
	base    string
	dataDir string
	allow   models.AllowList
	logger  *zap.Logger
	scratch int
}

// ResolvePath returns path if it exists, otherwise its base name in the
// working directory if that exists.
func ResolvePath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	alt := filepath.Base(path)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("archive %s: %w", path, os.ErrNotExist)
}

// Open extracts the outer archive under scratchRoot and locates the dated
// data directory, falling back to the extraction root when there is none.
func Open(ctx context.Context, archivePath, scratchRoot string, allow models.AllowList, logger *zap.Logger) (*Walker, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	base, err := os.MkdirTemp(scratchRoot, "sepa_import_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	w := &Walker{base: base, allow: allow, logger: logger}

	outer := filepath.Join(base, "outer")
	logger.Info("extracting outer archive",
		zap.String("archive", archivePath),
		zap.Float64("size_mb", float64(info.Size())/(1024*1024)),
		zap.String("dest", outer))

	files, err := extractZip(ctx, archivePath, outer)
	if err != nil {
		w.Close()
		return nil, err
	}
	logger.Debug("outer archive extracted", zap.Int("files", files))

	w.dataDir, err = findDateDir(outer)
	if err != nil {
		w.Close()
		return nil, err
	}
	if w.dataDir == outer {
		logger.Info("no dated folder found, using extraction root")
	} else {
		logger.Info("dated folder found", zap.String("folder", filepath.Base(w.dataDir)))
	}
	return w, nil
}

func findDateDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read extraction root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && datePattern.MatchString(e.Name()) {
			return filepath.Join(root, e.Name()), nil
		}
	}
	return root, nil
}

// DataDir is the directory holding the merchant archives.
func (w *Walker) DataDir() string {
	return w.dataDir
}

// MerchantArchives lists allowed merchant zips in name order. Zips whose
// name carries no merchant id, or an id outside the allow-list, are skipped.
func (w *Walker) MerchantArchives() ([]MerchantArchive, int, error) {
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		return nil, 0, fmt.Errorf("read data dir: %w", err)
	}

	var (
		allowed []MerchantArchive
		skipped int
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		id, ok := merchantIDFromName(e.Name())
		if !ok || !w.allow.Allowed(id) {
			skipped++
			continue
		}
		allowed = append(allowed, MerchantArchive{Path: filepath.Join(w.dataDir, e.Name()), MerchantID: id})
	}
	return allowed, skipped, nil
}

func merchantIDFromName(name string) (int, bool) {
	m := merchantPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// NewScratch creates a reusable extraction directory. Each concurrent worker
// needs its own.
func (w *Walker) NewScratch() (*Scratch, error) {
	w.scratch++
	dir := filepath.Join(w.base, fmt.Sprintf("extract-%d", w.scratch))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Close removes the outer extraction and every scratch directory.
func (w *Walker) Close() error {
	if w.base == "" {
		return nil
	}
	if err := os.RemoveAll(w.base); err != nil {
		return fmt.Errorf("remove scratch %s: %w", w.base, err)
	}
	w.logger.Debug("scratch removed", zap.String("dir", w.base))
	w.base = ""
	return nil
}

// Scratch is a directory that holds at most one extracted merchant archive.
type Scratch struct {
	dir string
}

// Dir is the scratch directory path.
func (s *Scratch) Dir() string {
	return s.dir
}

// Extract clears the scratch directory and unpacks a into it.
func (s *Scratch) Extract(ctx context.Context, a MerchantArchive) error {
	if err := s.clear(); err != nil {
		return err
	}
	if _, err := extractZip(ctx, a.Path, s.dir); err != nil {
		return err
	}
	return nil
}

// Find locates name in the extracted tree.
func (s *Scratch) Find(name string) (string, error) {
	return FindFile(s.dir, name)
}

func (s *Scratch) clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read scratch dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("clear scratch dir: %w", err)
		}
	}
	return nil
}

// FindFile walks dir in lexical path order and returns the first regular
// file whose base name equals name.
func FindFile(dir, name string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", name, err)
	}
	if found == "" {
		return "", fmt.Errorf("%s in %s: %w", name, dir, ErrFileNotFound)
	}
	return found, nil
}

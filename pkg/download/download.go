// Package download fetches the SEPA archive published for the current weekday.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one whole download.
	DefaultTimeout = 300 * time.Second

	// ArchiveName is the file the importer reads by default.
	ArchiveName = "sepa_data.zip"

	progressStep = 10 << 20
)

// Downloader fetches the dataset for the weekday in a fixed timezone.
type Downloader struct {
	client *http.Client
	urls   map[int]string
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Downloader. urls is keyed by time.Weekday.
func New(urls map[int]string, timezone string, logger *zap.Logger) (*Downloader, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Downloader{
		client: &http.Client{Timeout: DefaultTimeout},
		urls:   urls,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}, nil
}

// URLFor returns the dataset URL for the weekday of t in the configured timezone.
func (d *Downloader) URLFor(t time.Time) (string, error) {
	day := t.In(d.loc).Weekday()
	url, ok := d.urls[int(day)]
	if !ok || url == "" {
		return "", fmt.Errorf("no dataset URL configured for %s", day)
	}
	return url, nil
}

// Destination returns root/data/sepa_data.zip when root/data exists and
// root/sepa_data.zip otherwise.
func Destination(root string) string {
	dataDir := filepath.Join(root, "data")
	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		return filepath.Join(dataDir, ArchiveName)
	}
	return filepath.Join(root, ArchiveName)
}

// Download replaces dest with today's archive and returns the bytes written.
func (d *Downloader) Download(ctx context.Context, dest string) (int64, error) {
	now := d.now()
	url, err := d.URLFor(now)
	if err != nil {
		return 0, err
	}
	logger := d.logger.With(zap.String("url", url), zap.String("dest", dest), zap.Stringer("weekday", now.In(d.loc).Weekday()))

	if err := os.Remove(dest); err == nil {
		logger.Info("removed previous archive")
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("remove previous archive: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	logger.Info("download started")
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	pw := &progressWriter{total: resp.ContentLength, next: progressStep, logger: logger}
	n, err := io.Copy(io.MultiWriter(out, pw), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", tmp, err)
	}

	logger.Info("download completed", zap.Float64("mb", float64(n)/(1<<20)))
	return n, nil
}

// progressWriter logs every progressStep bytes.
type progressWriter struct {
	written int64
	total   int64
	next    int64
	logger  *zap.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.written >= p.next {
		fields := []zap.Field{zap.Float64("mb", float64(p.written)/(1<<20))}
		if p.total > 0 {
			fields = append(fields, zap.Float64("percent", float64(p.written)*100/float64(p.total)))
		}
		p.logger.Info("download progress", fields...)
		for p.next <= p.written {
			p.next += progressStep
		}
	}
	return len(b), nil
}

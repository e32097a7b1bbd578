package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcavicchiaUADE/sepa-app/models"
	"github.com/mcavicchiaUADE/sepa-app/pkg/archive"
	"github.com/mcavicchiaUADE/sepa-app/pkg/normalize"
)

// failures tracks distinct merchant archives that failed in any phase.
type failures struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// add reports whether name had not failed before.
func (f *failures) add(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names == nil {
		f.names = make(map[string]struct{})
	}
	if _, seen := f.names[name]; seen {
		return false
	}
	f.names[name] = struct{}{}
	return true
}

func (f *failures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.names)
}

// loadMerchants extracts each allowed archive in turn into one reused scratch
// directory and upserts its comercio.csv.
func (p *Pipeline) loadMerchants(ctx context.Context, w *archive.Walker, archives []archive.MerchantArchive, stats *Stats, logger *zap.Logger) error {
	scratch, err := w.NewScratch()
	if err != nil {
		return err
	}

	for i, a := range archives {
		alog := logger.With(zap.String("archive", a.Name()), zap.Int("merchant_id", a.MerchantID))
		alog.Info("importing merchants", zap.Int("n", i+1), zap.Int("of", len(archives)))

		n, err := p.upsertArchive(ctx, scratch, a)
		if err != nil {
			if err := p.absorb(ctx, StateMerchantsLoaded, err, alog); err != nil {
				return err
			}
			if p.failed.add(a.Name()) {
				p.metrics.ArchiveOutcome("failed")
			}
			continue
		}
		stats.MerchantsUpserted += n
		alog.Debug("merchants imported", zap.Int("rows", n))
	}
	stats.ArchivesFailed = p.failed.count()
	return nil
}

func (p *Pipeline) upsertArchive(ctx context.Context, scratch *archive.Scratch, a archive.MerchantArchive) (int, error) {
	if err := scratch.Extract(ctx, a); err != nil {
		return 0, archiveErr(ctx, a, err)
	}
	path, err := scratch.Find(archive.MerchantFile)
	if err != nil {
		return 0, &MerchantArchiveError{Archive: a.Name(), Err: err}
	}
	rows, err := normalize.OpenMerchantFile(path, p.opts.Allow)
	if err != nil {
		return 0, &MerchantArchiveError{Archive: a.Name(), Err: err}
	}
	defer rows.Close()

	n, err := p.store.UpsertMerchants(ctx, rows)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &MerchantArchiveError{Archive: a.Name(), Err: err}
	}
	return n, nil
}

type stageResult struct {
	staged   int
	rejected models.Rejections
}

// stageListings bulk-loads every allowed archive's productos.csv into
// staging. With more than one worker, archives are spread over workers that
// each own a scratch directory; the phase returns only after all of them finish.
func (p *Pipeline) stageListings(ctx context.Context, w *archive.Walker, archives []archive.MerchantArchive, stats *Stats, logger *zap.Logger) error {
	workers := min(p.opts.Workers, max(len(archives), 1))
	scratches := make([]*archive.Scratch, workers)
	for i := range scratches {
		s, err := w.NewScratch()
		if err != nil {
			return err
		}
		scratches[i] = s
	}

	type job struct {
		n int
		a archive.MerchantArchive
	}
	jobs := make(chan job)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i, a := range archives {
			select {
			case jobs <- job{n: i + 1, a: a}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for _, scratch := range scratches {
		g.Go(func() error {
			for j := range jobs {
				alog := logger.With(zap.String("archive", j.a.Name()), zap.Int("merchant_id", j.a.MerchantID))
				alog.Info("importing listings", zap.Int("n", j.n), zap.Int("of", len(archives)))

				res, err := p.stageArchive(gctx, scratch, j.a, alog)
				if err != nil {
					if err := p.absorb(gctx, StateProductsStaged, err, alog); err != nil {
						return err
					}
					if p.failed.add(j.a.Name()) {
						p.metrics.ArchiveOutcome("failed")
					}
					continue
				}

				mu.Lock()
				stats.ListingFilesProcessed++
				stats.RowsStaged += res.staged
				stats.Rejections.Add(res.rejected)
				mu.Unlock()

				p.metrics.ArchiveOutcome("processed")
				p.metrics.Staged(res.staged)
				p.metrics.Rejected(res.rejected)
				if res.staged > 0 {
					alog.Info("listings staged", zap.Int("rows", res.staged), zap.Int("rejected", res.rejected.Total()))
				} else {
					alog.Warn("no listings staged", zap.Int("rejected", res.rejected.Total()))
				}
			}
			return nil
		})
	}

	err := g.Wait()
	stats.ArchivesFailed = p.failed.count()
	return err
}

func (p *Pipeline) stageArchive(ctx context.Context, scratch *archive.Scratch, a archive.MerchantArchive, logger *zap.Logger) (stageResult, error) {
	if err := scratch.Extract(ctx, a); err != nil {
		return stageResult{}, archiveErr(ctx, a, err)
	}
	path, err := scratch.Find(archive.ListingFile)
	if err != nil {
		return stageResult{}, &MerchantArchiveError{Archive: a.Name(), Err: err}
	}

	progress := func(accepted int) {
		logger.Debug("normalizing listings", zap.Int("accepted", accepted))
	}
	rows, err := normalize.OpenListingFile(path, p.opts.Allow, progress)
	if err != nil {
		return stageResult{}, &MerchantArchiveError{Archive: a.Name(), Err: err}
	}
	defer rows.Close()

	staged, err := p.store.StageListings(ctx, rows)
	if err != nil {
		if ctx.Err() != nil {
			return stageResult{}, ctx.Err()
		}
		return stageResult{}, &BulkLoadError{Archive: a.Name(), Err: err}
	}
	return stageResult{staged: staged, rejected: rows.Rejections()}, nil
}

func archiveErr(ctx context.Context, a archive.MerchantArchive, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &MerchantArchiveError{Archive: a.Name(), Err: err}
}

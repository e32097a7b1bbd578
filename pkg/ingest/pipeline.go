// Package ingest sequences a full-replace SEPA import through five phases:
// tables, merchants, staged listings, compaction and indexes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/models"
	"github.com/mcavicchiaUADE/sepa-app/pkg/archive"
	"github.com/mcavicchiaUADE/sepa-app/pkg/metrics"
	"github.com/mcavicchiaUADE/sepa-app/pkg/store"
)

// State is a pipeline state. Transitions only move forward.
type State string

const (
	StateInit            State = "INIT"
	StateTablesReady     State = "TABLES_READY"
	StateMerchantsLoaded State = "MERCHANTS_LOADED"
	StateProductsStaged  State = "PRODUCTS_STAGED"
	StateCompacted       State = "COMPACTED"
	StateIndexed         State = "INDEXED"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

// Store is the listing store as the pipeline uses it.
type Store interface {
	Ping(ctx context.Context) error
	CreateTables(ctx context.Context) error
	Truncate(ctx context.Context) error
	UpsertMerchants(ctx context.Context, src store.MerchantSource) (int, error)
	StageListings(ctx context.Context, src store.ListingSource) (int, error)
	Compact(ctx context.Context) (int64, error)
	BuildIndexes(ctx context.Context) error
	Counts(ctx context.Context) (merchants, listings int64, err error)
}

// Readiness tells the read side whether the final table may be queried.
type Readiness interface {
	MarkNotReady(ctx context.Context) error
	MarkReady(ctx context.Context, runID string) error
}

// Options configures a Pipeline.
type Options struct {
	ArchivePath string
	ScratchDir  string
	Allow       models.AllowList
	// Workers bounds concurrent listing staging. 1 processes merchants strictly in order.
	Workers int
}

// Pipeline runs one import at a time.
type Pipeline struct {
	store   Store
	ready   Readiness
	metrics *metrics.Recorder
	logger  *zap.Logger
	opts    Options

	state  State
	failed failures
	now    func() time.Time
}

// New builds a Pipeline. ready may be nil when no read side is tracked.
func New(st Store, ready Readiness, rec *metrics.Recorder, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	return &Pipeline{
		store:   st,
		ready:   ready,
		metrics: rec,
		logger:  logger,
		opts:    opts,
		state:   StateInit,
		now:     time.Now,
	}
}

// State returns the state the last Run reached.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes every phase. Stats are returned on both success and failure;
// the error is a *FatalSetupError or a *PhaseError.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	start := p.now()
	stats := newStats(uuid.NewString(), p.opts.ArchivePath)
	logger := p.logger.With(zap.String("run_id", stats.RunID))
	p.state = StateInit
	p.failed = failures{}

	err := p.run(ctx, stats, logger)
	stats.Duration = p.now().Sub(start)
	stats.State = p.state

	if err != nil {
		p.state = StateFailed
		stats.State = StateFailed
		p.metrics.Failed()
		logger.Error("import failed", zap.Error(err), zap.Duration("duration", stats.Duration))
		return stats, err
	}

	p.metrics.Done(stats.MerchantCount, stats.ListingCount, p.now())
	logger.Info("import completed",
		zap.Int64("merchants", stats.MerchantCount),
		zap.Int64("listings", stats.ListingCount),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

func (p *Pipeline) run(ctx context.Context, stats *Stats, logger *zap.Logger) error {
	archivePath, err := archive.ResolvePath(p.opts.ArchivePath)
	if err != nil {
		return &FatalSetupError{Op: "locate archive", Err: err}
	}
	stats.Archive = archivePath

	if err := p.phase(StateTablesReady, logger, func() error { return p.prepareTables(ctx, stats.RunID, logger) }); err != nil {
		return err
	}

	walker, err := archive.Open(ctx, archivePath, p.opts.ScratchDir, p.opts.Allow, logger)
	if err != nil {
		return &FatalSetupError{Op: "extract archive", Err: err}
	}
	defer func() {
		if err := walker.Close(); err != nil {
			logger.Warn("scratch cleanup failed", zap.Error(err))
		}
	}()

	archives, skipped, err := walker.MerchantArchives()
	if err != nil {
		return &FatalSetupError{Op: "list merchant archives", Err: err}
	}
	stats.ArchivesFound = len(archives)
	stats.ArchivesSkipped = skipped
	for i := 0; i < skipped; i++ {
		p.metrics.ArchiveOutcome("skipped")
	}
	logger.Info("merchant archives found",
		zap.Ints("allowed_merchants", p.opts.Allow.IDs()),
		zap.Int("allowed", len(archives)),
		zap.Int("skipped", skipped))

	if err := p.phase(StateMerchantsLoaded, logger, func() error { return p.loadMerchants(ctx, walker, archives, stats, logger) }); err != nil {
		return err
	}
	if err := p.phase(StateProductsStaged, logger, func() error { return p.stageListings(ctx, walker, archives, stats, logger) }); err != nil {
		return err
	}
	if err := p.phase(StateCompacted, logger, func() error {
		moved, err := p.store.Compact(ctx)
		stats.RowsCompacted = moved
		p.metrics.Compacted(moved)
		return err
	}); err != nil {
		return err
	}
	if err := p.phase(StateIndexed, logger, func() error { return p.store.BuildIndexes(ctx) }); err != nil {
		return err
	}

	return p.phase(StateDone, logger, func() error {
		merchants, listings, err := p.store.Counts(ctx)
		if err != nil {
			return err
		}
		stats.MerchantCount, stats.ListingCount = merchants, listings
		if p.ready != nil {
			if err := p.ready.MarkReady(ctx, stats.RunID); err != nil {
				logger.Warn("could not publish readiness", zap.Error(err))
			}
		}
		return nil
	})
}

// phase runs fn and advances to next on success. Errors that are not
// already classified become a PhaseError for the state being entered.
func (p *Pipeline) phase(next State, logger *zap.Logger, fn func() error) error {
	start := p.now()
	logger.Info("phase started", zap.String("from", string(p.state)), zap.String("to", string(next)))

	if err := fn(); err != nil {
		var setupErr *FatalSetupError
		var phaseErr *PhaseError
		if errors.As(err, &setupErr) || errors.As(err, &phaseErr) {
			return err
		}
		return &PhaseError{State: next, Err: err}
	}

	elapsed := p.now().Sub(start)
	p.metrics.Phase(string(next), elapsed)
	p.state = next
	logger.Info("phase completed", zap.String("state", string(next)), zap.Duration("elapsed", elapsed))
	return nil
}

func (p *Pipeline) prepareTables(ctx context.Context, runID string, logger *zap.Logger) error {
	if err := p.store.Ping(ctx); err != nil {
		return &FatalSetupError{Op: "connect database", Err: err}
	}
	if p.ready != nil {
		if err := p.ready.MarkNotReady(ctx); err != nil {
			logger.Warn("could not withdraw readiness", zap.Error(err))
		}
	}
	if err := p.store.CreateTables(ctx); err != nil {
		return &FatalSetupError{Op: "create tables", Err: err}
	}
	if err := p.store.Truncate(ctx); err != nil {
		return &FatalSetupError{Op: "truncate tables", Err: err}
	}
	return nil
}

// absorb logs a merchant-scoped error and returns nil, or returns a
// PhaseError when the failure is not merchant-scoped or the database is gone.
func (p *Pipeline) absorb(ctx context.Context, state State, err error, logger *zap.Logger) error {
	if !recoverable(err) {
		return &PhaseError{State: state, Err: err}
	}
	if pingErr := p.store.Ping(ctx); pingErr != nil {
		return &PhaseError{State: state, Err: fmt.Errorf("database lost after %v: %w", err, pingErr)}
	}
	logger.Warn("merchant skipped", zap.Error(err))
	return nil
}

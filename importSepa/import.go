package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/ingest"
	"github.com/mcavicchiaUADE/sepa-app/pkg/metrics"
	"github.com/mcavicchiaUADE/sepa-app/pkg/store"
)

type importFlags struct {
	archive string
	workers int
}

func newImportCommand(a *app) *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a downloaded SEPA archive",
		Long: `
Replaces merchants and listings with the contents of the archive. Only the
merchants in ALLOWED_MERCHANTS are loaded.
`,
		RunE: func(c *cobra.Command, args []string) error {
			return a.runImport(c.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.archive, "archive", "a", "", "archive to import (default ARCHIVE_PATH)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "merchants staged concurrently (default IMPORT_WORKERS)")
	return cmd
}

func (a *app) runImport(ctx context.Context, flags importFlags) error {
	opts := ingest.Options{
		ArchivePath: a.cfg.ArchivePath,
		ScratchDir:  a.cfg.ScratchDir,
		Allow:       a.cfg.AllowList(),
		Workers:     a.cfg.ImportWorkers,
	}
	if flags.archive != "" {
		opts.ArchivePath = flags.archive
	}
	if flags.workers > 0 {
		opts.Workers = flags.workers
	}

	db, redis, closeAll, err := a.connect(ctx)
	if err != nil {
		return &ingest.FatalSetupError{Op: "connect database", Err: err}
	}
	defer closeAll()

	st := store.New(db, a.logger, store.WithForeignKeySuspension(a.cfg.SuspendForeignKeys))
	rec := metrics.NewRecorder()

	var ready ingest.Readiness
	if redis != nil {
		ready = redis
	}

	pipeline := ingest.New(st, ready, rec, opts, a.logger)
	stats, runErr := pipeline.Run(ctx)
	stats.WriteSummary(a.stdout)

	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rec.Push(pushCtx, a.cfg.PushgatewayURL); err != nil {
		a.logger.Warn("metrics push failed", zap.Error(err))
	}
	return runErr
}

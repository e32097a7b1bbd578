package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/cache"
	"github.com/mcavicchiaUADE/sepa-app/pkg/config"
	"github.com/mcavicchiaUADE/sepa-app/pkg/database"
	"github.com/mcavicchiaUADE/sepa-app/pkg/logging"
)

// app carries what every subcommand shares once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	root := &cobra.Command{
		Use:   "importSepa",
		Short: "Import the SEPA price dataset",
		Long: `
Downloads the weekly SEPA archive and replaces the contents of the listing
store with the allowed merchants' data.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			boot := logging.Must("info", false)
			config.LoadEnv(boot)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newImportCommand(a),
		newDownloadCommand(a),
		newRunCommand(a),
	)
	return root
}

// connect opens PostgreSQL and, when configured, Redis. The returned
// close func releases both.
func (a *app) connect(ctx context.Context) (*database.DBClient, *cache.RedisClient, func(), error) {
	db, err := database.NewPostgresClient(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	redis, err := cache.NewRedisClient(ctx, a.cfg.Redis, a.logger)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrNotConfigured):
		a.logger.Info("Redis not configured, readiness will not be published")
	default:
		a.logger.Warn("Redis unavailable, readiness will not be published", zap.Error(err))
		redis = nil
	}

	closeAll := func() {
		if redis != nil {
			redis.Close()
		}
		db.Close()
	}
	return db, redis, closeAll, nil
}

package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/pkg/download"
)

func newDownloadCommand(a *app) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download today's SEPA archive",
		Long: `
Fetches the archive published for the current weekday in SEPA_TIMEZONE and
replaces the previous copy.
`,
		RunE: func(c *cobra.Command, args []string) error {
			_, err := a.runDownload(c.Context(), dest)
			return err
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination file (default data/sepa_data.zip)")
	return cmd
}

func newRunCommand(a *app) *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download today's archive and import it",
		RunE: func(c *cobra.Command, args []string) error {
			path, err := a.runDownload(c.Context(), flags.archive)
			if err != nil {
				return err
			}
			flags.archive = path
			return a.runImport(c.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.archive, "archive", "a", "", "where to store the archive (default data/sepa_data.zip)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "merchants staged concurrently (default IMPORT_WORKERS)")
	return cmd
}

func (a *app) runDownload(ctx context.Context, dest string) (string, error) {
	if dest == "" {
		dest = download.Destination(".")
	}
	d, err := download.New(a.cfg.DownloadURLs, a.cfg.Timezone, a.logger)
	if err != nil {
		return "", err
	}
	n, err := d.Download(ctx, dest)
	if err != nil {
		a.logger.Error("download failed", zap.Error(err))
		return "", err
	}
	a.logger.Info("archive ready", zap.String("path", dest), zap.Int64("bytes", n))
	return dest, nil
}

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-quality/pkg/engine"
	"github.com/David-Botos/data-quality/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		sample  bool
		tempDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the data quality HTTP API",
		Long: `Serve the data quality HTTP API. With --sample every upload is checked
against its own freshly seeded SQLite database instead of the configured store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.ServerAddr
			}

			var store engine.DataStore
			if !sample {
				conn, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer closeQuietly(a.logger, "data store", conn)
				store = conn
			}

			results, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "results archive", results)

			srv, err := server.New(server.Options{
				UploadMaxBytes:      a.cfg.UploadMaxBytes,
				Sample:              sample,
				TempDir:             tempDir,
				QueryTimeout:        a.cfg.QueryTimeout,
				CoupleOutlierChecks: a.cfg.CoupleOutlierChecks,
			}, store, results, a.logger)
			if err != nil {
				return err
			}

			printInfo(cmd.OutOrStdout(), "Serving on %s", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from SERVER_ADDR or PORT)")
	cmd.Flags().BoolVar(&sample, "sample", false, "Check uploads against a per-request sample database")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "Directory for per-request sample databases")
	return cmd
}

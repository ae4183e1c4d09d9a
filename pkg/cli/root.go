// pkg/cli/root.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/archive"
	"github.com/David-Botos/data-quality/pkg/config"
	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/logger"
)

// app carries the resolved configuration shared by every command
type app struct {
	envFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *zap.Logger
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), "%v", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "dq",
		Short: "Data quality checker",
		Long: `Validate tables against per-field check configurations, archive the
results, and generate SQL from plain-language requests without sending real
table or column names to the text generation service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Env file to load settings from")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (json, console)")

	rootCmd.AddCommand(newSchemaCmd(a))
	rootCmd.AddCommand(newSeedCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newSamplesCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newGenerateCmd(a))
	rootCmd.AddCommand(newMappingCmd(a))
	rootCmd.AddCommand(newCredentialCmd(a))
	rootCmd.AddCommand(newArchiveCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newInitConfigCmd())

	return rootCmd
}

// setup loads the configuration and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = log.Named("cli").With(zap.String("command", cmd.Name()))
	return nil
}

// openStore connects to the configured data store
func (a *app) openStore(ctx context.Context) (connector.DatabaseConnector, error) {
	return connector.NewConnectorFactory(a.cfg.DataStore, a.logger).Create(ctx)
}

// openArchive opens the results archive, creating it on first use
func (a *app) openArchive(ctx context.Context) (*archive.ResultsArchive, error) {
	return archive.Open(ctx, a.cfg.ResultsDBPath, a.logger)
}

// requireSQLite returns the SQLite path or an error for other drivers
func (a *app) requireSQLite(action string) (string, error) {
	if a.cfg.DataStore.Driver != config.DriverSQLite {
		return "", fmt.Errorf("%s needs the sqlite data store, configured driver is %q", action, a.cfg.DataStore.Driver)
	}
	return a.cfg.DataStore.SQLite.Path, nil
}

func closeQuietly(log *zap.Logger, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Warn("Failed to close "+name, zap.Error(err))
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/masking"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/seed"
)

// Files written by init-config
const (
	SampleChecksFile = "data_quality_checks.csv"
	SampleCodesFile  = "system_codes.csv"
)

func newSchemaCmd(a *app) *cobra.Command {
	var masked bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe the tables of the data store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tables, err := a.describeStore(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tables) == 0 {
				printWarning(out, "No tables found")
				return nil
			}

			original, maskedSchema := masking.NewIdentifierMasker(a.logger).MaskSchema(tables)
			if masked {
				printHeading(out, "Masked schema")
				fmt.Fprintln(out, maskedSchema)
				return nil
			}
			printHeading(out, "Schema")
			fmt.Fprintln(out, original)
			return nil
		},
	}
	cmd.Flags().BoolVar(&masked, "masked", false, "Show the schema as the text generation service sees it")
	return cmd
}

func newMappingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mapping",
		Short: "Show the identifier masking tokens of the current schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := a.describeStore(cmd.Context())
			if err != nil {
				return err
			}
			masker := masking.NewIdentifierMasker(a.logger)
			masker.MaskSchema(tables)
			printMappings(cmd.OutOrStdout(), masker.Mappings())
			return nil
		},
	}
}

func printMappings(out io.Writer, mappings []masking.TableMapping) {
	if len(mappings) == 0 {
		printWarning(out, "No identifiers masked")
		return
	}
	var rows [][]string
	for _, tm := range mappings {
		rows = append(rows, []string{tm.Original, tm.Token, "", ""})
		for _, cm := range tm.Columns {
			rows = append(rows, []string{"", "", cm.Original, cm.Token})
		}
	}
	printTable(out, []string{"table", "token", "column", "token"}, rows)
}

// describeStore connects to the data store and describes every table
func (a *app) describeStore(ctx context.Context) ([]model.TableMetadata, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(a.logger, "data store", store)
	return connector.DescribeAll(ctx, store)
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample employees table in the SQLite data store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.requireSQLite("seed")
			if err != nil {
				return err
			}
			if err := seed.SeedFile(cmd.Context(), path); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Seeded %d sample employees into %s", len(seed.Employees()), path)
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <dir>",
		Short: "Write sample check and system code configurations",
		Args:  cobra.ExactArgs(1),
		// needs no data store or logger
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			checksPath := filepath.Join(dir, SampleChecksFile)
			if err := writeFile(checksPath, func(w io.Writer) error {
				return configstore.WriteCheckCSV(w, configstore.SampleCheckConfigs())
			}); err != nil {
				return err
			}

			codesPath := filepath.Join(dir, SampleCodesFile)
			if err := writeFile(codesPath, func(w io.Writer) error {
				return configstore.WriteCodeCSV(w, configstore.SampleCodeRows())
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "Wrote %s", checksPath)
			printSuccess(out, "Wrote %s", codesPath)
			return nil
		},
	}
}

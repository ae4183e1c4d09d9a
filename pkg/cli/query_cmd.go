package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/masking"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/textgen"
)

type queryOptions struct {
	store       bool
	description string
}

func (o *queryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.store, "store", false, "Store the result set in the archive")
	cmd.Flags().StringVar(&o.description, "description", "", "Description recorded with the stored result")
}

func newQueryCmd(a *app) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:     "query <sql>",
		Short:   "Run a SQL statement against the data store",
		Example: `  dq query "SELECT name, email FROM employees" --store --description "contact list"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "data store", store)
			return a.runQuery(ctx, cmd.OutOrStdout(), store, args[0], opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		opts       queryOptions
		execute    bool
		showMasked bool
	)

	cmd := &cobra.Command{
		Use:   "generate <request>",
		Short: "Generate SQL from a plain-language request",
		Long: `Generate SQL from a plain-language request. Table and column names are
replaced by tokens before anything is sent to the text generation service and
restored in the returned statement.`,
		Example: `  dq generate "names of employees hired in 2023" --execute`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			client := textgen.NewClient(a.cfg.TextGen, a.logger)
			if !client.Configured() {
				return fmt.Errorf("%w: run \"dq credential set\" first", textgen.ErrNoAPIKey)
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "data store", store)

			schema, err := connector.DescribeAll(ctx, store)
			if err != nil {
				return err
			}

			gen, err := textgen.NewGenerator(client, masking.NewIdentifierMasker(a.logger), a.logger).Generate(ctx, args[0], schema)
			if err != nil {
				var extErr *model.ExternalServiceError
				if errors.As(err, &extErr) {
					a.logger.Error("Text generation failed", zap.Int("status", extErr.StatusCode), zap.String("body", extErr.Body))
				}
				return err
			}

			if showMasked {
				printHeading(out, "Sent")
				fmt.Fprintln(out, styles.Muted.Render(gen.MaskedRequest))
				printHeading(out, "Received")
				fmt.Fprintln(out, styles.Muted.Render(gen.MaskedSQL))
			}
			printHeading(out, "Generated SQL")
			fmt.Fprintln(out, gen.SQL)

			if !execute {
				return nil
			}
			return a.runQuery(ctx, out, store, gen.SQL, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&execute, "execute", false, "Run the generated statement")
	cmd.Flags().BoolVar(&showMasked, "show-masked", false, "Also print the masked request and response")
	return cmd
}

// runQuery executes query, prints its result set and optionally archives it
func (a *app) runQuery(ctx context.Context, out io.Writer, store connector.DatabaseConnector, query string, opts queryOptions) error {
	columns, rows, err := fetchAll(ctx, store, query, a.cfg.QueryTimeout)
	if err != nil {
		return err
	}

	if len(columns) == 0 || len(rows) == 0 {
		printInfo(out, "Query returned no rows")
	} else {
		display := make([][]string, len(rows))
		for i, row := range rows {
			display[i] = make([]string, len(row))
			for j, v := range row {
				display[i][j] = formatValue(v)
			}
		}
		printTable(out, columns, display)
		printInfo(out, "%d rows", len(rows))
	}

	if !opts.store {
		return nil
	}
	results, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "results archive", results)

	table, err := results.StoreQuery(ctx, query, rows, columns, opts.description)
	if errors.Is(err, model.ErrNothingToStore) {
		printWarning(out, "Nothing to store")
		return nil
	}
	if err != nil {
		return err
	}
	printSuccess(out, "Stored %d rows in %s", len(rows), table)
	return nil
}

// fetchAll reads a whole result set
func fetchAll(ctx context.Context, store connector.DatabaseConnector, query string, timeout time.Duration) ([]string, [][]interface{}, error) {
	rows, err := store.QueryWithTimeout(ctx, query, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return columns, out, nil
}

func formatValue(v interface{}) string {
	if v == nil {
		return styles.Muted.Render("NULL")
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-quality/pkg/archive"
)

func newArchiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse and delete archived results",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived result tables, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			results, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "results archive", results)

			entries, err := results.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				printWarning(out, "No stored results in %s", results.Path())
				return nil
			}

			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.TableName, e.ExecutionDate, strconv.Itoa(e.Version),
					strconv.Itoa(e.RowCount), strconv.Itoa(e.ColumnCount),
					e.Description, e.CreatedTimestamp,
				}
			}
			printTable(out, []string{"table", "date", "version", "rows", "columns", "description", "created"}, rows)
			return nil
		},
	})

	var limit int
	view := &cobra.Command{
		Use:   "view <table>",
		Short: "Show the rows of an archived result table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			results, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "results archive", results)

			entry, err := results.Entry(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := results.View(ctx, args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printHeading(out, "%s (%d rows)", entry.TableName, entry.RowCount)
			if entry.Description != "" {
				printInfo(out, "%s", entry.Description)
			}
			printInfo(out, "Source: %s", entry.OriginalQuery)
			printTable(out, data.Columns, data.Rows)
			if entry.RowCount > len(data.Rows) {
				fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("showing %d of %d rows", len(data.Rows), entry.RowCount)))
			}
			return nil
		},
	}
	view.Flags().IntVar(&limit, "limit", archive.DefaultViewLimit, "Maximum rows to show")
	cmd.AddCommand(view)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <table>",
		Short: "Drop an archived result table and its catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			results, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "results archive", results)

			if err := results.Delete(ctx, args[0]); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Deleted stored result: %s", args[0])
			return nil
		},
	})

	return cmd
}

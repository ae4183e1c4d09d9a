package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/engine"
	"github.com/David-Botos/data-quality/pkg/model"
)

// Archive targets of the check command
const (
	archiveFailed = "failed"
	archivePassed = "passed"
	archiveBoth   = "both"
)

type checkOptions struct {
	checks      string
	codes       string
	table       string
	failedOnly  bool
	csvDir      string
	archive     string
	description string
	metrics     bool
}

func newCheckCmd(a *app) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the configured data quality checks",
		Example: `  dq check --checks checks.csv --codes codes.csv
  dq check --checks checks.yaml --table employees --failed-only --archive failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.archive {
			case "", archiveFailed, archivePassed, archiveBoth:
			default:
				return fmt.Errorf("invalid --archive %q: use failed, passed or both", opts.archive)
			}
			return a.runCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.checks, "checks", "", "Check configuration file (CSV, or YAML with optional allow-lists)")
	cmd.Flags().StringVar(&opts.codes, "codes", "", "System codes allow-list CSV")
	cmd.Flags().StringVar(&opts.table, "table", "", "Only check this configured table")
	cmd.Flags().BoolVar(&opts.failedOnly, "failed-only", false, "Only print FAIL and ERROR results")
	cmd.Flags().StringVar(&opts.csvDir, "csv-dir", "", "Write the report and failing values as CSV into this directory")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "Store results in the archive: failed, passed or both")
	cmd.Flags().StringVar(&opts.description, "description", "", "Description recorded with archived results")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print the run metrics report")
	_ = cmd.MarkFlagRequired("checks")

	return cmd
}

// loadConfigs reads the allow-lists first so YAML allow-lists merge over them
func (a *app) loadConfigs(checks, codes string) (*configstore.Store, error) {
	configs := configstore.New(a.logger)
	if codes != "" {
		if err := configs.LoadCodesFile(codes); err != nil {
			return nil, err
		}
	}
	if err := configs.LoadChecksFile(checks); err != nil {
		return nil, err
	}
	return configs, nil
}

func (a *app) engineOptions() []engine.Option {
	opts := []engine.Option{engine.WithQueryTimeout(a.cfg.QueryTimeout)}
	if a.cfg.CoupleOutlierChecks {
		opts = append(opts, engine.WithLegacyOutlierCoupling())
	}
	return opts
}

func (a *app) runCheck(ctx context.Context, out io.Writer, opts checkOptions) error {
	configs, err := a.loadConfigs(opts.checks, opts.codes)
	if err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "data store", store)

	e := engine.New(store, configs, a.logger, a.engineOptions()...)

	var report *engine.Report
	if opts.table != "" {
		report, err = e.RunTable(ctx, opts.table)
	} else {
		report, err = e.RunAll(ctx)
	}
	if errors.Is(err, engine.ErrNoConfiguration) {
		printWarning(out, "No checks configured in %s", opts.checks)
		return nil
	}
	if err != nil {
		return err
	}

	printResults(out, report.Results, opts.failedOnly)
	printSummary(out, report)
	if opts.metrics {
		fmt.Fprint(out, report.Metrics.GenerateMetricsReport())
	}

	if report.Results.Empty() {
		printWarning(out, "No results to export")
		return nil
	}
	if opts.csvDir != "" {
		if err := a.exportCSV(ctx, out, e, report, opts.csvDir); err != nil {
			return err
		}
	}
	if opts.archive != "" {
		return a.archiveResults(ctx, out, e, report, opts)
	}
	return nil
}

func printResults(out io.Writer, results *engine.Results, failedOnly bool) {
	for _, table := range results.Order {
		var rows [][]string
		for _, res := range results.Table(table) {
			if failedOnly && !res.Status.IsFailure() {
				continue
			}
			rows = append(rows, []string{res.Field, string(res.CheckType), statusStyle(res.Status).Render(string(res.Status)), res.Message})
		}
		if len(rows) == 0 {
			continue
		}
		printHeading(out, "\nTable: %s", table)
		printTable(out, []string{"field", "check", "status", "message"}, rows)
	}
}

func printSummary(out io.Writer, report *engine.Report) {
	s := report.Summary
	printHeading(out, "\nSummary")
	fmt.Fprintf(out, "  Tables checked: %d\n", s.TablesChecked)
	fmt.Fprintf(out, "  Total checks:   %d\n", s.TotalChecks)
	fmt.Fprintf(out, "  %s\n", styles.Success.Render(fmt.Sprintf("Passed:         %d", s.PassedChecks)))
	fmt.Fprintf(out, "  %s\n", styles.Error.Render(fmt.Sprintf("Failed:         %d", s.FailedChecks)))
	fmt.Fprintf(out, "  %s\n", styles.Warning.Render(fmt.Sprintf("Warnings:       %d", s.Warnings)))
	if s.Errors > 0 {
		fmt.Fprintf(out, "  %s\n", styles.Error.Render(fmt.Sprintf("Errors:         %d", s.Errors)))
	}
	if s.Info > 0 {
		fmt.Fprintf(out, "  Info:           %d\n", s.Info)
	}

	failed := report.Results.FailedFields()
	for _, table := range report.Results.Order {
		fields, ok := failed[table]
		if !ok {
			continue
		}
		printHeading(out, "\nFailing fields in %s", table)
		seen := make(map[string]bool, len(fields))
		for _, res := range report.Results.Table(table) {
			checks, ok := fields[res.Field]
			if !ok || seen[res.Field] {
				continue
			}
			seen[res.Field] = true
			fmt.Fprintf(out, "  %s: %v\n", res.Field, checks)
		}
	}
}

// exportCSV writes data_quality_report_<ts>.csv and, when any result failed,
// failing_values_report_<ts>.csv
func (a *app) exportCSV(ctx context.Context, out io.Writer, e *engine.Engine, report *engine.Report, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	stamp := report.StartedAt.Format("20060102_150405")

	reportPath := filepath.Join(dir, fmt.Sprintf("data_quality_report_%s.csv", stamp))
	if err := writeFile(reportPath, func(w io.Writer) error {
		return e.WriteReportCSV(w, report.Results)
	}); err != nil {
		return err
	}
	printSuccess(out, "All results exported to: %s", reportPath)

	if report.Summary.FailedChecks+report.Summary.Errors == 0 {
		return nil
	}

	valuesPath := filepath.Join(dir, fmt.Sprintf("failing_values_report_%s.csv", stamp))
	var written int
	if err := writeFile(valuesPath, func(w io.Writer) (err error) {
		written, err = e.WriteFailingValuesCSV(ctx, w, report.Results)
		return err
	}); err != nil {
		return err
	}
	if written == 0 {
		a.logger.Debug("No failing values to export, removing empty file", zap.String("path", valuesPath))
		return os.Remove(valuesPath)
	}
	printSuccess(out, "Failing values exported to: %s (%d rows)", valuesPath, written)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) archiveResults(ctx context.Context, out io.Writer, e *engine.Engine, report *engine.Report, opts checkOptions) error {
	results, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "results archive", results)

	store := func(kind string, records [][]string, columns []string, save func(context.Context, [][]string, []string, string) (string, error)) error {
		table, err := save(ctx, records, columns, opts.description)
		if errors.Is(err, model.ErrNothingToStore) {
			printWarning(out, "No %s checks to store", kind)
			return nil
		}
		if err != nil {
			return err
		}
		printSuccess(out, "Stored %d %s check rows in %s", len(records), kind, table)
		return nil
	}

	if opts.archive == archiveFailed || opts.archive == archiveBoth {
		if err := store(archiveFailed, e.FailedRecords(ctx, report.Results), model.FailedExportColumns, results.StoreFailed); err != nil {
			return err
		}
	}
	if opts.archive == archivePassed || opts.archive == archiveBoth {
		if err := store(archivePassed, e.PassedRecords(report.Results), model.PassedExportColumns, results.StorePassed); err != nil {
			return err
		}
	}
	return nil
}

type samplesOptions struct {
	checks string
	codes  string
	table  string
	field  string
	check  string
}

func newSamplesCmd(a *app) *cobra.Command {
	var opts samplesOptions

	cmd := &cobra.Command{
		Use:     "samples",
		Short:   "List the values of a field that fail a check",
		Example: `  dq samples --table employees --field email --check email_check`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSamples(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.checks, "checks", "", "Check configuration file")
	cmd.Flags().StringVar(&opts.codes, "codes", "", "System codes allow-list CSV, needed for system_codes_check")
	cmd.Flags().StringVar(&opts.table, "table", "", "Table name")
	cmd.Flags().StringVar(&opts.field, "field", "", "Field name")
	cmd.Flags().StringVar(&opts.check, "check", "", "Check type, e.g. email_check")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("check")

	return cmd
}

func (a *app) runSamples(ctx context.Context, out io.Writer, opts samplesOptions) error {
	ct, err := model.ParseCheckType(opts.check)
	if err != nil {
		return err
	}

	configs := configstore.New(a.logger)
	if opts.codes != "" {
		if err := configs.LoadCodesFile(opts.codes); err != nil {
			return err
		}
	}
	if opts.checks != "" {
		if err := configs.LoadChecksFile(opts.checks); err != nil {
			return err
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "data store", store)

	samples, err := engine.New(store, configs, a.logger, a.engineOptions()...).ListFailingSamples(ctx, opts.table, opts.field, ct)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		printSuccess(out, "No failing values for %s on %s.%s", ct, opts.table, opts.field)
		return nil
	}

	printHeading(out, "Failing values for %s on %s.%s", ct, opts.table, opts.field)
	for _, s := range samples {
		if s.Truncated {
			fmt.Fprintln(out, styles.Muted.Render("  "+s.String()))
			continue
		}
		fmt.Fprintf(out, "  • %s\n", s.String())
	}
	return nil
}

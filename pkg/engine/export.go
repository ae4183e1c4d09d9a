package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/validator"
)

const (
	noSpecificValues = "No specific values"
	notApplicable    = "N/A"
)

// ReportColumns are the columns of the full results CSV
var ReportColumns = []string{"table", "field", "check_type", "status", "message", "timestamp"}

// FailingValuesColumns are the columns of the failing values CSV
var FailingValuesColumns = []string{"table", "field_name", "check_type", "failing_value", "status", "message", "timestamp"}

// ListFailingSamples returns the concrete values of a field that fail a check.
// Structural check types and rules without value samples return nil.
func (e *Engine) ListFailingSamples(ctx context.Context, table, field string, ct model.CheckType) ([]model.FailingSample, error) {
	if _, ok := validator.Lookup(ct); !ok {
		return nil, nil
	}

	exists, err := e.tableExists(ctx, table)
	if err != nil {
		return nil, &model.DatabaseError{Table: table, Field: field, Err: err}
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", model.ErrTableMissing, table)
	}

	// SQLite reads an unknown double-quoted identifier as a string literal,
	// so the column has to be confirmed before querying it
	meta, err := e.describe(ctx, table)
	if err != nil {
		return nil, &model.DatabaseError{Table: table, Field: field, Err: err}
	}
	if !meta.HasColumn(field) {
		return nil, fmt.Errorf("%w: %s.%s", model.ErrColumnMissing, table, field)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	target := validator.NewTarget(table, e.store.QuoteTable(table), field, 0, e.configs.ValidCodes(table, field))
	samples, err := validator.FailingSamples(ctx, e.store.DB(), target, ct)
	if err != nil {
		return nil, &model.DatabaseError{Table: table, Field: field, Err: err}
	}
	return samples, nil
}

// failingValues renders the samples of a failed result, falling back to a
// placeholder when there are none or they cannot be read
func (e *Engine) failingValues(ctx context.Context, res model.CheckResult) []string {
	samples, err := e.ListFailingSamples(ctx, res.Table, res.Field, res.CheckType)
	if err != nil {
		e.logger.Warn("Could not retrieve failing values",
			zap.String("table", res.Table),
			zap.String("field", res.Field),
			zap.String("check", string(res.CheckType)),
			zap.Error(err))
		return []string{fmt.Sprintf("Error retrieving values: %s", err)}
	}

	values := make([]string, len(samples))
	for i, s := range samples {
		values[i] = s.String()
	}
	return values
}

// FailedRecords builds one export row per failing value of every FAIL or ERROR
// result, in model.FailedExportColumns order
func (e *Engine) FailedRecords(ctx context.Context, results *Results) [][]string {
	now := e.now()
	date, ts := model.ExportDate(now), model.ExportTimestamp(now)

	var records [][]string
	results.Each(func(res model.CheckResult) {
		if !res.Status.IsFailure() {
			return
		}
		values := e.failingValues(ctx, res)
		if len(values) == 0 {
			values = []string{noSpecificValues}
		}
		for _, v := range values {
			records = append(records, []string{
				res.Table, res.Field, string(res.CheckType), string(res.Status), res.Message, v, date, ts,
			})
		}
	})
	return records
}

// PassedRecords builds one export row per PASS or INFO result, in
// model.PassedExportColumns order
func (e *Engine) PassedRecords(results *Results) [][]string {
	now := e.now()
	date, ts := model.ExportDate(now), model.ExportTimestamp(now)

	var records [][]string
	results.Each(func(res model.CheckResult) {
		if res.Status != model.StatusPass && res.Status != model.StatusInfo {
			return
		}
		records = append(records, []string{
			res.Table, res.Field, string(res.CheckType), string(res.Status), res.Message, notApplicable, date, ts,
		})
	})
	return records
}

// WriteReportCSV writes every result as one CSV row
func (e *Engine) WriteReportCSV(w io.Writer, results *Results) error {
	ts := model.ExportTimestamp(e.now())

	cw := csv.NewWriter(w)
	if err := cw.Write(ReportColumns); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	var err error
	results.Each(func(res model.CheckResult) {
		if err != nil {
			return
		}
		err = cw.Write([]string{res.Table, res.Field, string(res.CheckType), string(res.Status), res.Message, ts})
	})
	if err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// WriteFailingValuesCSV writes one row per failing value and returns how many
// rows it wrote. Nothing is written when no failed result has values.
func (e *Engine) WriteFailingValuesCSV(ctx context.Context, w io.Writer, results *Results) (int, error) {
	ts := model.ExportTimestamp(e.now())

	var rows [][]string
	results.Each(func(res model.CheckResult) {
		if !res.Status.IsFailure() {
			return
		}
		for _, v := range e.failingValues(ctx, res) {
			rows = append(rows, []string{res.Table, res.Field, string(res.CheckType), v, string(res.Status), res.Message, ts})
		}
	})
	if len(rows) == 0 {
		return 0, nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(FailingValuesColumns); err != nil {
		return 0, fmt.Errorf("failed to write failing values header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, fmt.Errorf("failed to write failing values: %w", err)
	}
	return len(rows), nil
}

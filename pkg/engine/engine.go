// pkg/engine/engine.go
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/validator"
)

// DefaultQueryTimeout bounds each rule evaluation unless WithQueryTimeout says otherwise
const DefaultQueryTimeout = 300 * time.Second

// DataStore is what the engine needs from the validated store.
// Every connector.DatabaseConnector satisfies it.
type DataStore interface {
	DB() *sql.DB
	QuoteTable(table string) string
	TableExists(ctx context.Context, table string) (bool, error)
	DescribeTable(ctx context.Context, table string) (*model.TableMetadata, error)
}

// Engine runs the configured rules against a data store
type Engine struct {
	store          DataStore
	configs        *configstore.Store
	logger         *zap.Logger
	timeout        time.Duration
	coupleOutliers bool
	now            func() time.Time
	rules          []validator.Rule
}

// Option configures an Engine
type Option func(*Engine)

// WithQueryTimeout bounds each rule evaluation, catalog lookup and row count
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLegacyOutlierCoupling only evaluates max_value_check and min_value_check
// on fields that also enable max_count_check
func WithLegacyOutlierCoupling() Option {
	return func(e *Engine) {
		e.coupleOutliers = true
	}
}

// WithClock replaces time.Now for report and export timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine over a data store and a configuration store
func New(store DataStore, configs *configstore.Store, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.L()
	}
	e := &Engine{
		store:   store,
		configs: configs,
		logger:  logger.Named("engine"),
		timeout: DefaultQueryTimeout,
		now:     time.Now,
		rules:   validator.Catalog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunAll evaluates every configured table
func (e *Engine) RunAll(ctx context.Context) (*Report, error) {
	cfg := e.configs.Checks()
	if cfg.Empty() {
		return nil, ErrNoConfiguration
	}

	report := e.start()
	for _, table := range cfg.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.runTable(ctx, report, table, cfg.Fields(table))
	}
	report.complete(e.now())

	e.logger.Info("Data quality checks completed",
		zap.String("run", report.ID.String()),
		zap.Int("total", report.Summary.TotalChecks),
		zap.Int("passed", report.Summary.PassedChecks),
		zap.Int("failed", report.Summary.FailedChecks),
		zap.Int("warnings", report.Summary.Warnings),
		zap.Int("errors", report.Summary.Errors))
	return report, nil
}

// RunTable evaluates one configured table. A configured table missing from
// the store yields an empty report.
func (e *Engine) RunTable(ctx context.Context, table string) (*Report, error) {
	cfg := e.configs.Checks()
	if cfg.Empty() {
		return nil, ErrNoConfiguration
	}
	if !cfg.HasTable(table) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotConfigured, table)
	}

	report := e.start()
	e.runTable(ctx, report, table, cfg.Fields(table))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.complete(e.now())
	return report, nil
}

func (e *Engine) start() *Report {
	metrics := NewRunMetrics(e.logger, e.now)
	errs := NewErrorTracker(e.logger)
	return newReport(metrics, errs, e.now())
}

func (e *Engine) runTable(ctx context.Context, report *Report, table string, fields []model.FieldCheckConfig) {
	exists, err := e.tableExists(ctx, table)
	if err != nil {
		e.logger.Warn("Could not check table existence, skipping table",
			zap.String("table", table), zap.Error(err))
		e.record(report, NewErrorRecord(err, ErrorCategoryCatalog, e.now()).WithField(table, ""))
		report.Metrics.RecordSkippedTable(table, "catalog error")
		return
	}
	if !exists {
		e.logger.Info("Table does not exist in data store", zap.String("table", table))
		report.Metrics.RecordSkippedTable(table, model.ErrTableMissing.Error())
		return
	}

	report.Metrics.StartTable(table)
	defer report.Metrics.EndTable(table)

	meta, err := e.describe(ctx, table)
	if err != nil {
		e.failFields(report, table, fields, err, ErrorCategoryCatalog)
		return
	}

	total, err := e.countRows(ctx, table)
	if err != nil {
		e.failFields(report, table, fields, err, CategorizeError(err))
		return
	}
	report.Metrics.SetRowCount(table, total)

	for _, fc := range fields {
		if ctx.Err() != nil {
			return
		}
		results := e.runField(ctx, report, fc, meta, total)
		report.Results.Add(table, results...)
		report.Metrics.RecordField(table, fc.Field, results)
	}
}

// failFields reports one database_error per field when the table itself cannot be read
func (e *Engine) failFields(report *Report, table string, fields []model.FieldCheckConfig, err error, category ErrorCategory) {
	for _, fc := range fields {
		res := databaseError(table, fc.Field, err)
		e.record(report, NewErrorRecord(err, category, e.now()).WithField(table, fc.Field))
		report.Results.Add(table, res)
		report.Metrics.RecordField(table, fc.Field, []model.CheckResult{res})
	}
}

func (e *Engine) runField(ctx context.Context, report *Report, fc model.FieldCheckConfig, meta *model.TableMetadata, total int64) []model.CheckResult {
	table, field := fc.Table, fc.Field
	logger := e.logger.With(zap.String("table", table), zap.String("field", field))
	logger.Debug("Checking field")

	if !meta.HasColumn(field) {
		e.record(report, NewErrorRecord(fmt.Errorf("%w: %s.%s", model.ErrColumnMissing, table, field),
			ErrorCategoryStructural, e.now()).WithField(table, field))
		return []model.CheckResult{model.NewCheckResult(table, field, model.CheckColumnExistence, model.StatusFail,
			"Column '%s' does not exist in table '%s'", field, table)}
	}

	if total == 0 {
		return []model.CheckResult{model.NewCheckResult(table, field, model.CheckDataExistence, model.StatusWarning,
			"Table '%s' has no data", table)}
	}

	target := validator.NewTarget(table, e.store.QuoteTable(table), field, total, e.configs.ValidCodes(table, field))

	var results []model.CheckResult
	for _, rule := range e.rules {
		ct := rule.Type()
		if !e.enabled(fc, ct) {
			continue
		}

		started := time.Now()
		rctx, cancel := context.WithTimeout(ctx, e.timeout)
		out, err := rule.Evaluate(rctx, e.store.DB(), target)
		cancel()
		report.Metrics.RecordCheckDuration(ct, time.Since(started))

		if err != nil {
			// keep what the field already produced, skip its remaining checks
			e.record(report, NewErrorRecord(err, CategorizeError(err), e.now()).WithField(table, field).WithCheck(ct))
			return append(results, databaseError(table, field, err))
		}
		results = append(results, out...)
	}
	return results
}

func (e *Engine) enabled(fc model.FieldCheckConfig, ct model.CheckType) bool {
	if !fc.Enabled(ct) {
		return false
	}
	if e.coupleOutliers && (ct == model.CheckMaxValue || ct == model.CheckMinValue) {
		return fc.MaxCountCheck
	}
	return true
}

func (e *Engine) record(report *Report, rec ErrorRecord) {
	report.Errors.Record(rec)
	report.Metrics.RecordError(rec.Category)
}

func databaseError(table, field string, err error) model.CheckResult {
	return model.NewCheckResult(table, field, model.CheckDatabaseError, model.StatusError, "Database error: %s", err)
}

func (e *Engine) tableExists(ctx context.Context, table string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.TableExists(ctx, table)
}

func (e *Engine) describe(ctx context.Context, table string) (*model.TableMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.DescribeTable(ctx, table)
}

func (e *Engine) countRows(ctx context.Context, table string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", e.store.QuoteTable(table))
	if err := e.store.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/seed"
	"github.com/David-Botos/data-quality/pkg/validator"
)

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func field(table, name string, checks ...model.CheckType) model.FieldCheckConfig {
	fc := model.FieldCheckConfig{Table: table, Field: name}
	for _, ct := range checks {
		fc.Set(ct, true)
	}
	return fc
}

func newEngine(t *testing.T, fields []model.FieldCheckConfig, codes model.CodeAllowList, opts ...Option) (*Engine, *connector.SQLiteConnector) {
	t.Helper()
	conn := connector.OpenTestSQLite(t)
	require.NoError(t, seed.Seed(context.Background(), conn.DB()))

	store := configstore.New(zap.NewNop())
	if fields != nil {
		cfg := model.NewCheckConfig()
		for _, fc := range fields {
			cfg.Put(fc)
		}
		store.ReplaceChecks(cfg)
	}
	store.ReplaceCodes(codes)

	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(conn, store, zap.NewNop(), opts...), conn
}

func statuses(results []model.CheckResult) map[model.CheckType]model.Status {
	out := make(map[model.CheckType]model.Status, len(results))
	for _, r := range results {
		out[r.CheckType] = r.Status
	}
	return out
}

func TestRunAll_NoConfiguration(t *testing.T) {
	e, _ := newEngine(t, nil, nil)

	_, err := e.RunAll(context.Background())
	assert.ErrorIs(t, err, ErrNoConfiguration)

	_, err = e.RunTable(context.Background(), "employees")
	assert.ErrorIs(t, err, ErrNoConfiguration)
}

func TestRunAll_SampleData(t *testing.T) {
	codes := model.CodeAllowList{}
	codes.Put("employees", "department_code", []string{"IT001", "HR002", "FIN003", "MKT004", "OPS005"})

	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("employees", "name", model.CheckNull, model.CheckBlank, model.CheckLanguage),
		field("employees", "email", model.CheckNull, model.CheckBlank, model.CheckEmail, model.CheckDuplicate),
		field("employees", "phone", model.CheckPhoneNumber),
		field("employees", "department_code", model.CheckSystemCodes),
		field("employees", "salary", model.CheckMinValue, model.CheckMaxValue),
		field("employees", "hire_date", model.CheckDate),
	}, codes)

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	results := report.Results.Table("employees")
	byField := make(map[string][]model.CheckResult)
	for _, r := range results {
		byField[r.Field] = append(byField[r.Field], r)
	}

	assert.Equal(t, map[model.CheckType]model.Status{
		model.CheckNull:     model.StatusPass,
		model.CheckBlank:    model.StatusFail,
		model.CheckLanguage: model.StatusPass,
	}, statuses(byField["name"]))

	email := statuses(byField["email"])
	assert.Equal(t, model.StatusFail, email[model.CheckEmail])
	assert.Equal(t, model.StatusPass, email[model.CheckDuplicate])

	assert.Equal(t, "Found 5 invalid phone numbers out of 5 values", byField["phone"][0].Message)
	assert.Equal(t, "Found 1 invalid system codes out of 5 values (Valid codes: 5 defined)", byField["department_code"][0].Message)
	assert.Equal(t, "Found 1 invalid date formats out of 5 values", byField["hire_date"][0].Message)

	// catalog order puts max before min
	require.Len(t, byField["salary"], 2)
	assert.Equal(t, "Max numeric value 80000.0 appears reasonable (avg: 57000.00)", byField["salary"][0].Message)
	assert.Equal(t, "Found negative minimum value: -5000.0", byField["salary"][1].Message)

	s := report.Summary
	assert.Equal(t, s.PassedChecks+s.FailedChecks+s.Warnings+s.Errors+s.Info, s.TotalChecks)
	assert.Equal(t, len(results), s.TotalChecks)
	assert.Equal(t, 1, s.TablesChecked)
	assert.Equal(t, fixedNow, report.StartedAt)
	assert.NotEqual(t, uuid.Nil, report.ID)

	failed := report.Results.FailedFields()
	assert.Equal(t, []model.CheckType{model.CheckBlank}, failed["employees"]["name"])
	assert.NotContains(t, failed["employees"], "salary")
}

func TestRunAll_MissingColumn(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("employees", "nickname", model.CheckNull, model.CheckBlank, model.CheckDuplicate),
	}, nil)

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	results := report.Results.Table("employees")
	require.Len(t, results, 1)
	assert.Equal(t, model.CheckColumnExistence, results[0].CheckType)
	assert.Equal(t, model.StatusFail, results[0].Status)
	assert.Equal(t, "Column 'nickname' does not exist in table 'employees'", results[0].Message)
	assert.Equal(t, 1, report.Errors.Summary()[ErrorCategoryStructural])
}

func TestRunAll_MissingTableIsSkipped(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("ghosts", "name", model.CheckNull),
		field("employees", "name", model.CheckNull),
	}, nil)

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"employees"}, report.Results.Order)
	assert.Empty(t, report.Results.Table("ghosts"))
	assert.Contains(t, report.Metrics.SkippedTables, "ghosts")
	assert.Equal(t, 0, report.Errors.Total())
}

func TestRunTable(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("ghosts", "name", model.CheckNull),
		field("employees", "email", model.CheckEmail),
	}, nil)
	ctx := context.Background()

	_, err := e.RunTable(ctx, "payroll")
	assert.ErrorIs(t, err, ErrTableNotConfigured)

	report, err := e.RunTable(ctx, "ghosts")
	require.NoError(t, err)
	assert.True(t, report.Results.Empty())
	assert.Equal(t, 0, report.Summary.TotalChecks)

	report, err = e.RunTable(ctx, "employees")
	require.NoError(t, err)
	require.Len(t, report.Results.Table("employees"), 1)
	assert.Equal(t, "Found 1 invalid email formats out of 5 values", report.Results.Table("employees")[0].Message)
}

func TestRunAll_EmptyTable(t *testing.T) {
	e, conn := newEngine(t, []model.FieldCheckConfig{
		field("audit", "event", model.CheckNull, model.CheckBlank),
	}, nil)
	_, err := conn.DB().Exec(`CREATE TABLE audit (event TEXT)`)
	require.NoError(t, err)

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	results := report.Results.Table("audit")
	require.Len(t, results, 1)
	assert.Equal(t, model.CheckDataExistence, results[0].CheckType)
	assert.Equal(t, model.StatusWarning, results[0].Status)
	assert.Equal(t, "Table 'audit' has no data", results[0].Message)
}

func TestRunAll_OutlierCoupling(t *testing.T) {
	fields := []model.FieldCheckConfig{field("employees", "salary", model.CheckMaxValue, model.CheckMinValue)}

	e, _ := newEngine(t, fields, nil)
	report, err := e.RunAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results.Table("employees"), 2)

	e, _ = newEngine(t, fields, nil, WithLegacyOutlierCoupling())
	report, err = e.RunAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Results.Table("employees"))

	coupled := field("employees", "salary", model.CheckMaxValue, model.CheckMinValue, model.CheckMaxCount)
	e, _ = newEngine(t, []model.FieldCheckConfig{coupled}, nil, WithLegacyOutlierCoupling())
	report, err = e.RunAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results.Table("employees"), 3)
}

// stubRule passes, or fails with err, or waits for its deadline when block is set
type stubRule struct {
	ct    model.CheckType
	err   error
	block bool
}

func (s stubRule) Type() model.CheckType { return s.ct }

func (s stubRule) Evaluate(ctx context.Context, _ validator.Querier, t validator.Target) ([]model.CheckResult, error) {
	if s.block {
		<-ctx.Done()
		return nil, fmt.Errorf("stub query: %w", ctx.Err())
	}
	if s.err != nil {
		return nil, s.err
	}
	return []model.CheckResult{model.NewCheckResult(t.Table, t.Field, s.ct, model.StatusPass, "ok")}, nil
}

func TestRunAll_DatabaseErrorStopsField(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("employees", "email", model.CheckNull, model.CheckBlank, model.CheckEmail),
		field("employees", "name", model.CheckNull),
	}, nil)
	e.rules = []validator.Rule{
		stubRule{ct: model.CheckNull},
		stubRule{ct: model.CheckBlank, err: errors.New("disk I/O error")},
		stubRule{ct: model.CheckEmail},
	}

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	results := report.Results.Table("employees")
	require.Len(t, results, 3)
	assert.Equal(t, model.CheckNull, results[0].CheckType)
	assert.Equal(t, model.StatusPass, results[0].Status)
	assert.Equal(t, model.CheckDatabaseError, results[1].CheckType)
	assert.Equal(t, model.StatusError, results[1].Status)
	assert.Equal(t, "Database error: disk I/O error", results[1].Message)
	assert.Equal(t, "name", results[2].Field)
	assert.Equal(t, model.StatusPass, results[2].Status)

	assert.Equal(t, 1, report.Summary.Errors)
	assert.Equal(t, 1, report.Errors.Summary()[ErrorCategoryDatabase])
	assert.Equal(t, map[string]int{"employees": 1}, report.Errors.TableErrorCounts())
	assert.Equal(t, []model.CheckType{model.CheckDatabaseError}, report.Results.FailedFields()["employees"]["email"])
	assert.Equal(t, model.CheckBlank, report.Errors.Samples()[ErrorCategoryDatabase][0].CheckType)
}

func TestRunAll_RuleTimeout(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("employees", "email", model.CheckNull, model.CheckBlank),
	}, nil, WithQueryTimeout(20*time.Millisecond))
	e.rules = []validator.Rule{
		stubRule{ct: model.CheckNull, block: true},
		stubRule{ct: model.CheckBlank},
	}

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	results := report.Results.Table("employees")
	require.Len(t, results, 1)
	assert.Equal(t, model.CheckDatabaseError, results[0].CheckType)
	assert.Contains(t, results[0].Message, context.DeadlineExceeded.Error())
	assert.Equal(t, 1, report.Errors.Summary()[ErrorCategoryTimeout])
}

func TestFieldStatus(t *testing.T) {
	r := NewResults()
	r.Add("t",
		model.NewCheckResult("t", "a", model.CheckNull, model.StatusPass, "ok"),
		model.NewCheckResult("t", "a", model.CheckBlank, model.StatusFail, "bad"),
		model.NewCheckResult("t", "b", model.CheckMinValue, model.StatusWarning, "hmm"),
		model.NewCheckResult("t", "b", model.CheckMaxValue, model.StatusInfo, "fyi"),
		model.NewCheckResult("t", "c", model.CheckNull, model.StatusPass, "ok"),
		model.NewCheckResult("t", "d", model.CheckDatabaseError, model.StatusError, "Database error: x"),
	)
	r.Add("empty")

	assert.Equal(t, []FieldStatus{
		{Table: "t", Field: "a", Pass: 1, Fail: 1, Status: model.StatusFail},
		{Table: "t", Field: "b", Warning: 1, Status: model.StatusWarning},
		{Table: "t", Field: "c", Pass: 1, Status: model.StatusPass},
		{Table: "t", Field: "d", Fail: 1, Status: model.StatusFail},
	}, r.FieldStatus())
	assert.Equal(t, []string{"t"}, r.Order)

	s := Summarize(r)
	assert.Equal(t, Summary{
		TotalChecks: 6, PassedChecks: 2, FailedChecks: 1, Warnings: 1, Errors: 1, Info: 1, TablesChecked: 1,
	}, s)
}

func TestListFailingSamples(t *testing.T) {
	codes := model.CodeAllowList{}
	codes.Put("employees", "department_code", []string{"IT001", "HR002", "FIN003"})
	e, _ := newEngine(t, []model.FieldCheckConfig{field("employees", "email", model.CheckEmail)}, codes)
	ctx := context.Background()

	samples, err := e.ListFailingSamples(ctx, "employees", "email", model.CheckEmail)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "jane.smith@company", samples[0].String())

	samples, err = e.ListFailingSamples(ctx, "employees", "department_code", model.CheckSystemCodes)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "INVALID (not in external config)", samples[0].String())

	_, err = e.ListFailingSamples(ctx, "ghosts", "name", model.CheckNull)
	assert.ErrorIs(t, err, model.ErrTableMissing)

	_, err = e.ListFailingSamples(ctx, "employees", "nickname", model.CheckNull)
	assert.ErrorIs(t, err, model.ErrColumnMissing)

	samples, err = e.ListFailingSamples(ctx, "employees", "nickname", model.CheckColumnExistence)
	require.NoError(t, err)
	assert.Nil(t, samples)
}

func TestExports(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("employees", "name", model.CheckNull, model.CheckBlank),
		field("employees", "salary", model.CheckMaxCount),
		field("employees", "nickname", model.CheckNull),
	}, nil)
	ctx := context.Background()

	report, err := e.RunAll(ctx)
	require.NoError(t, err)

	failed := e.FailedRecords(ctx, report.Results)
	require.Len(t, failed, 2)
	assert.Equal(t, []string{
		"employees", "name", "blank_check", "FAIL", "Found 1 blank values out of 5 total rows",
		"", "2024-03-09", "2024-03-09T14:30:00.000000",
	}, failed[0])
	assert.Equal(t, "column_existence", failed[1][2])
	assert.Equal(t, "No specific values", failed[1][5])
	for _, rec := range failed {
		assert.Len(t, rec, len(model.FailedExportColumns))
	}

	passed := e.PassedRecords(report.Results)
	require.Len(t, passed, 2)
	assert.Equal(t, "null_check", passed[0][2])
	assert.Equal(t, "INFO", passed[1][3])
	assert.Equal(t, "N/A", passed[1][5])

	var buf bytes.Buffer
	require.NoError(t, e.WriteReportCSV(&buf, report.Results))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, ReportColumns, rows[0])
	assert.Len(t, rows, 1+report.Results.Len())

	buf.Reset()
	n, err := e.WriteFailingValuesCSV(ctx, &buf, report.Results)
	require.NoError(t, err)
	// the missing column has no values to list
	assert.Equal(t, 1, n)
	rows, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, FailingValuesColumns, rows[0])
	assert.Equal(t, "", rows[1][3])
}

func TestExports_SamplerError(t *testing.T) {
	e, _ := newEngine(t, nil, nil)

	r := NewResults()
	r.Add("employees", model.NewCheckResult("employees", "phantom", model.CheckEmail, model.StatusFail, "x"))

	failed := e.FailedRecords(context.Background(), r)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0][5], "Error retrieving values: ")
}

func TestErrorRecord_String(t *testing.T) {
	rec := NewErrorRecord(fmt.Errorf("boom"), ErrorCategoryTimeout, fixedNow).
		WithField("employees", "email").
		WithCheck(model.CheckEmail)
	assert.Equal(t, "[Timeout] Table: employees Field: email Check: email_check Error: boom", rec.String())
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, ErrorCategoryNone, CategorizeError(nil))
	assert.Equal(t, ErrorCategoryTimeout, CategorizeError(fmt.Errorf("q: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorCategoryStructural, CategorizeError(fmt.Errorf("%w: t.f", model.ErrColumnMissing)))
	assert.Equal(t, ErrorCategoryDatabase, CategorizeError(errors.New("no such table")))
}

func TestRunMetrics(t *testing.T) {
	e, _ := newEngine(t, []model.FieldCheckConfig{
		field("employees", "name", model.CheckNull),
		field("ghosts", "name", model.CheckNull),
	}, nil)

	report, err := e.RunAll(context.Background())
	require.NoError(t, err)

	m := report.Metrics
	assert.Equal(t, int64(5), m.Tables["employees"].RowCount)
	assert.Equal(t, 1, m.TotalFields)
	assert.Equal(t, 1, m.TotalChecks)
	assert.Contains(t, m.GenerateMetricsReport(), "- employees: 5 rows, 1 fields, 1 results")

	data, err := m.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"skippedTables":{"ghosts":"table does not exist"}`)
}

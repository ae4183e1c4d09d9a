// pkg/validator/rules.go
package validator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/model"
)

// Querier is the read interface rules need. *sql.DB, *sql.Tx, *sql.Conn and *sqlx.DB satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Target is one (table, field) under evaluation
type Target struct {
	Table       string
	Field       string
	QuotedTable string
	QuotedField string
	TotalRows   int64
	ValidCodes  []string
}

// NewTarget builds a target; quotedTable comes from the connector so it can be schema-qualified
func NewTarget(table, quotedTable, field string, totalRows int64, validCodes []string) Target {
	return Target{
		Table:       table,
		Field:       field,
		QuotedTable: quotedTable,
		QuotedField: connector.QuoteIdentifier(field),
		TotalRows:   totalRows,
		ValidCodes:  validCodes,
	}
}

func (t Target) text() string {
	return fmt.Sprintf("CAST(%s AS TEXT)", t.QuotedField)
}

// nonBlank filters out NULL and empty-string values
func (t Target) nonBlank() string {
	return fmt.Sprintf("%s IS NOT NULL AND %s <> ''", t.QuotedField, t.text())
}

func (t Target) result(ct model.CheckType, status model.Status, format string, args ...interface{}) model.CheckResult {
	return model.NewCheckResult(t.Table, t.Field, ct, status, format, args...)
}

// Rule evaluates one check against a target
type Rule interface {
	Type() model.CheckType
	Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error)
}

// Catalog returns every rule in evaluation order
func Catalog() []Rule {
	return []Rule{
		nullRule{},
		blankRule{},
		emailRule,
		phoneRule,
		dateRule,
		numericRule,
		duplicateRule{},
		specialCharactersRule,
		systemCodesRule{},
		languageRule,
		maxCountRule{},
		outlierRule{checkType: model.CheckMaxValue},
		outlierRule{checkType: model.CheckMinValue},
	}
}

// Lookup returns the rule for a check type
func Lookup(ct model.CheckType) (Rule, bool) {
	for _, r := range Catalog() {
		if r.Type() == ct {
			return r, true
		}
	}
	return nil, false
}

type nullRule struct{}

func (nullRule) Type() model.CheckType { return model.CheckNull }

func (nullRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	n, err := count(ctx, q, t, fmt.Sprintf("%s IS NULL", t.QuotedField))
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return []model.CheckResult{t.result(model.CheckNull, model.StatusFail,
			"Found %d NULL values out of %d total rows", n, t.TotalRows)}, nil
	}
	return []model.CheckResult{t.result(model.CheckNull, model.StatusPass, "No NULL values found")}, nil
}

type blankRule struct{}

func (blankRule) Type() model.CheckType { return model.CheckBlank }

func (blankRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	n, err := count(ctx, q, t, fmt.Sprintf("%s = ''", t.text()))
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return []model.CheckResult{t.result(model.CheckBlank, model.StatusFail,
			"Found %d blank values out of %d total rows", n, t.TotalRows)}, nil
	}
	return []model.CheckResult{t.result(model.CheckBlank, model.StatusPass, "No blank values found")}, nil
}

// predicateRule fails when any non-blank value is invalid. It yields nothing
// when the field has no non-blank values.
type predicateRule struct {
	checkType model.CheckType
	invalid   func(v string) bool
	failFmt   string
	pass      func(total int64) string
}

var (
	emailRule = predicateRule{
		checkType: model.CheckEmail,
		invalid:   func(v string) bool { return !IsValidEmail(v) },
		failFmt:   "Found %d invalid email formats out of %d values",
		pass:      func(n int64) string { return fmt.Sprintf("All %d email formats appear valid", n) },
	}
	phoneRule = predicateRule{
		checkType: model.CheckPhoneNumber,
		invalid:   func(v string) bool { return !IsValidPhone(v) },
		failFmt:   "Found %d invalid phone numbers out of %d values",
		pass:      func(n int64) string { return fmt.Sprintf("All %d phone numbers appear valid", n) },
	}
	dateRule = predicateRule{
		checkType: model.CheckDate,
		invalid:   func(v string) bool { return !IsValidDate(v) },
		failFmt:   "Found %d invalid date formats out of %d values",
		pass:      func(n int64) string { return fmt.Sprintf("All %d date formats appear valid", n) },
	}
	numericRule = predicateRule{
		checkType: model.CheckNumeric,
		invalid:   func(v string) bool { return !IsNumeric(v) },
		failFmt:   "Found %d non-numeric values out of %d non-null values",
		pass:      func(n int64) string { return fmt.Sprintf("All %d values are numeric", n) },
	}
	specialCharactersRule = predicateRule{
		checkType: model.CheckSpecialCharacters,
		invalid:   HasSpecialCharacters,
		failFmt:   "Found %d values with special characters out of %d values",
		pass:      func(int64) string { return "No special characters found" },
	}
	languageRule = predicateRule{
		checkType: model.CheckLanguage,
		invalid:   HasNonASCII,
		failFmt:   "Found %d values with non-ASCII characters out of %d values",
		pass:      func(n int64) string { return fmt.Sprintf("All %d values contain only ASCII characters", n) },
	}
)

func (r predicateRule) Type() model.CheckType { return r.checkType }

func (r predicateRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	total, err := count(ctx, q, t, t.nonBlank())
	if err != nil || total == 0 {
		return nil, err
	}

	values, err := selectValues(ctx, q, t, false)
	if err != nil {
		return nil, err
	}

	var invalid int
	for _, v := range values {
		if r.invalid(v) {
			invalid++
		}
	}

	if invalid > 0 {
		return []model.CheckResult{t.result(r.checkType, model.StatusFail, r.failFmt, invalid, total)}, nil
	}
	return []model.CheckResult{t.result(r.checkType, model.StatusPass, "%s", r.pass(total))}, nil
}

type duplicateRule struct{}

func (duplicateRule) Type() model.CheckType { return model.CheckDuplicate }

func (duplicateRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(cnt - 1), 0) FROM (
			SELECT COUNT(*) AS cnt FROM %s
			WHERE %s IS NOT NULL
			GROUP BY %s
			HAVING COUNT(*) > 1
		) dup`, t.QuotedTable, t.QuotedField, t.QuotedField)

	var clusters, excess int64
	if err := q.QueryRowContext(ctx, query).Scan(&clusters, &excess); err != nil {
		return nil, fmt.Errorf("failed to group %s.%s: %w", t.Table, t.Field, err)
	}

	if clusters > 0 {
		return []model.CheckResult{t.result(model.CheckDuplicate, model.StatusFail,
			"Found %d duplicate values across %d distinct values", excess, clusters)}, nil
	}
	return []model.CheckResult{t.result(model.CheckDuplicate, model.StatusPass, "No duplicate values found")}, nil
}

type systemCodesRule struct{}

func (systemCodesRule) Type() model.CheckType { return model.CheckSystemCodes }

func (systemCodesRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	total, err := count(ctx, q, t, t.nonBlank())
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []model.CheckResult{t.result(model.CheckSystemCodes, model.StatusWarning,
			"No data found to check system codes")}, nil
	}

	values, err := selectValues(ctx, q, t, true)
	if err != nil {
		return nil, err
	}

	var invalid int
	for _, v := range values {
		if _, bad := systemCodeViolation(v, t.ValidCodes); bad {
			invalid++
		}
	}

	allowList := len(t.ValidCodes) > 0
	switch {
	case invalid > 0 && allowList:
		return []model.CheckResult{t.result(model.CheckSystemCodes, model.StatusFail,
			"Found %d invalid system codes out of %d values (Valid codes: %d defined)",
			invalid, total, len(t.ValidCodes))}, nil
	case invalid > 0:
		return []model.CheckResult{t.result(model.CheckSystemCodes, model.StatusFail,
			"Found %d values that don't match system code patterns out of %d values", invalid, total)}, nil
	case allowList:
		return []model.CheckResult{t.result(model.CheckSystemCodes, model.StatusPass,
			"All %d values are valid system codes from external config (%d codes)", total, len(t.ValidCodes))}, nil
	default:
		return []model.CheckResult{t.result(model.CheckSystemCodes, model.StatusPass,
			"All %d values match system code patterns", total)}, nil
	}
}

// systemCodeViolation checks a value against the allow-list, or the heuristics
// when no allow-list is configured. The note names which one rejected it.
func systemCodeViolation(v string, validCodes []string) (note string, invalid bool) {
	if len(validCodes) > 0 {
		if !InAllowList(v, validCodes) {
			return "not in external config", true
		}
		return "", false
	}
	if !LooksLikeSystemCode(v) {
		return "pattern mismatch", true
	}
	return "", false
}

type maxCountRule struct{}

func (maxCountRule) Type() model.CheckType { return model.CheckMaxCount }

func (maxCountRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS cnt FROM %s
		WHERE %s
		GROUP BY %s
		ORDER BY cnt DESC, 1
		LIMIT 1`, t.text(), t.QuotedTable, t.nonBlank(), t.text())

	var (
		value string
		n     int64
	)
	err := q.QueryRowContext(ctx, query).Scan(&value, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find most frequent value of %s.%s: %w", t.Table, t.Field, err)
	}

	return []model.CheckResult{t.result(model.CheckMaxCount, model.StatusInfo,
		"Most frequent value: '%s' appears %d times", value, n)}, nil
}

// outlierRule implements max_value_check and min_value_check over the
// numeric and text partitions of the non-blank values
type outlierRule struct {
	checkType model.CheckType
}

func (r outlierRule) Type() model.CheckType { return r.checkType }

func (r outlierRule) Evaluate(ctx context.Context, q Querier, t Target) ([]model.CheckResult, error) {
	total, err := count(ctx, q, t, t.nonBlank())
	if err != nil || total == 0 {
		return nil, err
	}

	values, err := selectValues(ctx, q, t, false)
	if err != nil {
		return nil, err
	}

	var (
		numbers []float64
		texts   []string
	)
	for _, v := range values {
		if f, ok := ParseNumber(v); ok {
			numbers = append(numbers, f)
		} else {
			texts = append(texts, v)
		}
	}

	var results []model.CheckResult
	if len(numbers) > 0 {
		results = append(results, r.numeric(t, numbers))
	}
	if len(texts) > 0 {
		results = append(results, r.text(t, texts))
	}

	switch {
	case len(numbers) > 0 && len(texts) > 0:
		results = append(results, t.result(r.checkType, model.StatusInfo,
			"Field contains mixed data types: %d numeric, %d text values", len(numbers), len(texts)))
	case len(numbers) == 0 && len(texts) == 0:
		word := "max"
		if r.checkType == model.CheckMinValue {
			word = "min"
		}
		results = append(results, t.result(r.checkType, model.StatusWarning,
			"No valid values found for %s value analysis", word))
	}

	return results, nil
}

func (r outlierRule) numeric(t Target, numbers []float64) model.CheckResult {
	minimum, maximum, avg := numbers[0], numbers[0], 0.0
	for _, f := range numbers {
		minimum = math.Min(minimum, f)
		maximum = math.Max(maximum, f)
		avg += f
	}
	avg /= float64(len(numbers))

	if r.checkType == model.CheckMaxValue {
		if maximum > avg*10 {
			return t.result(r.checkType, model.StatusWarning,
				"Max numeric value %s is significantly higher than average %.2f (potential outlier)",
				FormatNumber(maximum), avg)
		}
		return t.result(r.checkType, model.StatusPass,
			"Max numeric value %s appears reasonable (avg: %.2f)", FormatNumber(maximum), avg)
	}

	switch {
	case minimum < 0:
		return t.result(r.checkType, model.StatusWarning, "Found negative minimum value: %s", FormatNumber(minimum))
	case minimum < avg*0.1 && avg > 0:
		return t.result(r.checkType, model.StatusWarning,
			"Min numeric value %s is significantly lower than average %.2f (potential outlier)",
			FormatNumber(minimum), avg)
	default:
		return t.result(r.checkType, model.StatusPass,
			"Min numeric value %s appears reasonable (avg: %.2f)", FormatNumber(minimum), avg)
	}
}

func (r outlierRule) text(t Target, texts []string) model.CheckResult {
	unique := make(map[string]struct{}, len(texts))
	extreme := texts[0]
	for _, v := range texts {
		unique[v] = struct{}{}
		a, b := strings.ToLower(v), strings.ToLower(extreme)
		if (r.checkType == model.CheckMaxValue && a > b) || (r.checkType == model.CheckMinValue && a < b) {
			extreme = v
		}
	}

	if r.checkType == model.CheckMaxValue {
		return t.result(r.checkType, model.StatusInfo,
			"Alphabetically last text value: '%s' (found %d text values, %d unique)", extreme, len(texts), len(unique))
	}
	return t.result(r.checkType, model.StatusInfo,
		"Alphabetically first text value: '%s' (found %d text values, %d unique)", extreme, len(texts), len(unique))
}

// FormatNumber renders a float the way report messages show numbers:
// shortest round-trip form, always with a fractional part or exponent.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func count(ctx context.Context, q Querier, t Target, where string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.QuotedTable, where)
	if err := q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s.%s: %w", t.Table, t.Field, err)
	}
	return n, nil
}

// selectValues returns the trimmed non-blank values of the field
func selectValues(ctx context.Context, q Querier, t Target, distinct bool) ([]string, error) {
	keyword := ""
	if distinct {
		keyword = "DISTINCT "
	}
	query := fmt.Sprintf("SELECT %s%s FROM %s WHERE %s", keyword, t.text(), t.QuotedTable, t.nonBlank())
	return queryStrings(ctx, q, query, t)
}

func queryStrings(ctx context.Context, q Querier, query string, t Target) ([]string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", t.Table, t.Field, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s.%s: %w", t.Table, t.Field, err)
		}
		values = append(values, strings.TrimSpace(v.String))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s.%s: %w", t.Table, t.Field, err)
	}
	return values, nil
}

package validator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/David-Botos/data-quality/pkg/model"
)

// sampleFetchLimit bounds SQL-filtered sample queries; one row past the cap
// is enough to know the list must be truncated
const sampleFetchLimit = model.MaxFailingSamples + 1

// FailingSamples re-queries the store for the concrete values that fail a check,
// using the same predicate as the rule. Lists longer than model.MaxFailingSamples
// are cut and end with a truncation marker. Check types without samples yield nil.
func FailingSamples(ctx context.Context, q Querier, t Target, ct model.CheckType) ([]model.FailingSample, error) {
	var (
		samples []model.FailingSample
		err     error
	)

	switch ct {
	case model.CheckNull:
		var n int64
		n, err = count(ctx, q, t, fmt.Sprintf("%s IS NULL", t.QuotedField))
		if err == nil {
			samples = []model.FailingSample{{Value: "NULL", Note: fmt.Sprintf("found %d occurrences", n)}}
		}
	case model.CheckBlank:
		samples, err = blankSamples(ctx, q, t)
	case model.CheckDuplicate:
		samples, err = duplicateSamples(ctx, q, t)
	case model.CheckSystemCodes:
		samples, err = filterSamples(ctx, q, t, func(v string) (string, bool) {
			return systemCodeViolation(v, t.ValidCodes)
		})
	case model.CheckEmail, model.CheckPhoneNumber, model.CheckDate, model.CheckNumeric,
		model.CheckSpecialCharacters, model.CheckLanguage:
		rule, _ := Lookup(ct)
		invalid := rule.(predicateRule).invalid
		samples, err = filterSamples(ctx, q, t, func(v string) (string, bool) {
			return "", invalid(v)
		})
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return model.TruncateSamples(samples), nil
}

func blankSamples(ctx context.Context, q Querier, t Target) ([]model.FailingSample, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s = '' OR %s IS NULL LIMIT %d",
		t.text(), t.QuotedTable, t.text(), t.QuotedField, sampleFetchLimit)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read blank values of %s.%s: %w", t.Table, t.Field, err)
	}
	defer rows.Close()

	var samples []model.FailingSample
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s.%s: %w", t.Table, t.Field, err)
		}
		value := "NULL"
		if v.Valid {
			value = v.String
		}
		samples = append(samples, model.FailingSample{Value: value})
	}
	return samples, rows.Err()
}

func duplicateSamples(ctx context.Context, q Querier, t Target) ([]model.FailingSample, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS cnt FROM %s
		WHERE %s IS NOT NULL
		GROUP BY %s
		HAVING COUNT(*) > 1
		ORDER BY cnt DESC, 1
		LIMIT %d`, t.text(), t.QuotedTable, t.QuotedField, t.QuotedField, sampleFetchLimit)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read duplicates of %s.%s: %w", t.Table, t.Field, err)
	}
	defer rows.Close()

	var samples []model.FailingSample
	for rows.Next() {
		var s model.FailingSample
		if err := rows.Scan(&s.Value, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s.%s: %w", t.Table, t.Field, err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// filterSamples reads every distinct non-blank value and keeps the rejected ones
func filterSamples(ctx context.Context, q Querier, t Target, reject func(v string) (string, bool)) ([]model.FailingSample, error) {
	values, err := selectValues(ctx, q, t, true)
	if err != nil {
		return nil, err
	}

	var samples []model.FailingSample
	for _, v := range values {
		if note, bad := reject(v); bad {
			samples = append(samples, model.FailingSample{Value: v, Note: note})
		}
	}
	return samples, nil
}

package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/data-quality/pkg/model"
)

// Results holds check results per table, remembering the order tables were run in.
// Tables that produced no results are not recorded.
type Results struct {
	Tables map[string][]model.CheckResult
	Order  []string
}

// NewResults creates an empty result set
func NewResults() *Results {
	return &Results{Tables: make(map[string][]model.CheckResult)}
}

// Add appends results for a table
func (r *Results) Add(table string, results ...model.CheckResult) {
	if len(results) == 0 {
		return
	}
	if _, ok := r.Tables[table]; !ok {
		r.Order = append(r.Order, table)
	}
	r.Tables[table] = append(r.Tables[table], results...)
}

// Table returns the results of one table
func (r *Results) Table(table string) []model.CheckResult {
	if r == nil {
		return nil
	}
	return r.Tables[table]
}

// Each visits every result in run order
func (r *Results) Each(fn func(model.CheckResult)) {
	if r == nil {
		return
	}
	for _, table := range r.Order {
		for _, res := range r.Tables[table] {
			fn(res)
		}
	}
}

// Len returns the number of results
func (r *Results) Len() int {
	n := 0
	r.Each(func(model.CheckResult) { n++ })
	return n
}

// Empty reports whether no table produced results
func (r *Results) Empty() bool {
	return r == nil || len(r.Order) == 0
}

// FailedFields maps table -> field -> the check types that failed or errored
func (r *Results) FailedFields() map[string]map[string][]model.CheckType {
	failed := make(map[string]map[string][]model.CheckType)
	r.Each(func(res model.CheckResult) {
		if !res.Status.IsFailure() {
			return
		}
		if _, ok := failed[res.Table]; !ok {
			failed[res.Table] = make(map[string][]model.CheckType)
		}
		failed[res.Table][res.Field] = append(failed[res.Table][res.Field], res.CheckType)
	})
	return failed
}

// FieldStatus is the rolled-up outcome of one field
type FieldStatus struct {
	Table   string       `json:"table"`
	Field   string       `json:"field"`
	Pass    int          `json:"pass"`
	Fail    int          `json:"fail"`
	Warning int          `json:"warning"`
	Status  model.Status `json:"status"`
}

// FieldStatus summarizes each field: FAIL if anything failed or errored,
// otherwise WARNING if anything warned, otherwise PASS
func (r *Results) FieldStatus() []FieldStatus {
	var (
		out   []FieldStatus
		index = make(map[[2]string]int)
	)
	r.Each(func(res model.CheckResult) {
		key := [2]string{res.Table, res.Field}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, FieldStatus{Table: res.Table, Field: res.Field})
		}
		switch {
		case res.Status == model.StatusPass:
			out[i].Pass++
		case res.Status.IsFailure():
			out[i].Fail++
		case res.Status == model.StatusWarning:
			out[i].Warning++
		}
	})

	for i := range out {
		switch {
		case out[i].Fail > 0:
			out[i].Status = model.StatusFail
		case out[i].Warning > 0:
			out[i].Status = model.StatusWarning
		default:
			out[i].Status = model.StatusPass
		}
	}
	return out
}

// Summary counts results by status
type Summary struct {
	TotalChecks   int `json:"total_checks"`
	PassedChecks  int `json:"passed_checks"`
	FailedChecks  int `json:"failed_checks"`
	Warnings      int `json:"warnings"`
	Errors        int `json:"errors"`
	Info          int `json:"info"`
	TablesChecked int `json:"tables_checked"`
}

// Summarize counts the results. TotalChecks is always the sum of the five status counts.
func Summarize(r *Results) Summary {
	var s Summary
	r.Each(func(res model.CheckResult) {
		switch res.Status {
		case model.StatusPass:
			s.PassedChecks++
		case model.StatusFail:
			s.FailedChecks++
		case model.StatusWarning:
			s.Warnings++
		case model.StatusError:
			s.Errors++
		case model.StatusInfo:
			s.Info++
		}
	})
	s.TotalChecks = s.PassedChecks + s.FailedChecks + s.Warnings + s.Errors + s.Info
	if r != nil {
		s.TablesChecked = len(r.Order)
	}
	return s
}

// Report is the outcome of one validation run
type Report struct {
	ID         uuid.UUID     `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    *Results      `json:"-"`
	Summary    Summary       `json:"summary"`
	Metrics    *RunMetrics   `json:"-"`
	Errors     *ErrorTracker `json:"-"`
}

func newReport(metrics *RunMetrics, errs *ErrorTracker, now time.Time) *Report {
	return &Report{
		ID:        uuid.New(),
		StartedAt: now,
		Results:   NewResults(),
		Metrics:   metrics,
		Errors:    errs,
	}
}

// complete finalizes the summary and timings
func (r *Report) complete(now time.Time) {
	r.FinishedAt = now
	r.Summary = Summarize(r.Results)
	r.Metrics.Complete()
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
)

// TableMetrics tracks metrics for a specific table
type TableMetrics struct {
	Table         string
	StartTime     time.Time
	EndTime       time.Time
	RowCount      int64
	FieldsChecked int
	ChecksRun     int
	FailedFields  []string
}

// Duration returns how long the table took
func (tm *TableMetrics) Duration() time.Duration {
	if tm.EndTime.IsZero() {
		return 0
	}
	return tm.EndTime.Sub(tm.StartTime)
}

// RunMetrics tracks metrics for one validation run
type RunMetrics struct {
	mu             sync.Mutex
	logger         *zap.Logger
	now            func() time.Time
	StartTime      time.Time
	EndTime        time.Time
	Tables         map[string]*TableMetrics
	tableOrder     []string
	SkippedTables  map[string]string // table name -> reason
	TotalFields    int
	TotalChecks    int
	ErrorCounts    map[ErrorCategory]int
	CheckDurations map[model.CheckType]time.Duration
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger, now func() time.Time) *RunMetrics {
	if now == nil {
		now = time.Now
	}
	return &RunMetrics{
		logger:         logger,
		now:            now,
		StartTime:      now(),
		Tables:         make(map[string]*TableMetrics),
		SkippedTables:  make(map[string]string),
		ErrorCounts:    make(map[ErrorCategory]int),
		CheckDurations: make(map[model.CheckType]time.Duration),
	}
}

// StartTable begins tracking metrics for a table
func (rm *RunMetrics) StartTable(table string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.Tables[table]; !ok {
		rm.tableOrder = append(rm.tableOrder, table)
	}
	rm.Tables[table] = &TableMetrics{Table: table, StartTime: rm.now()}

	if rm.logger != nil {
		rm.logger.Info("Running checks for table", zap.String("table", table))
	}
}

// SetRowCount records the row count of a table
func (rm *RunMetrics) SetRowCount(table string, rows int64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if tm, ok := rm.Tables[table]; ok {
		tm.RowCount = rows
	}
}

// EndTable completes tracking metrics for a table
func (rm *RunMetrics) EndTable(table string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	tm, ok := rm.Tables[table]
	if !ok {
		return
	}
	tm.EndTime = rm.now()

	if rm.logger != nil {
		rm.logger.Info("Completed table checks",
			zap.String("table", table),
			zap.Duration("duration", tm.Duration()),
			zap.Int("fields", tm.FieldsChecked),
			zap.Int("checks", tm.ChecksRun),
			zap.Int("failedFields", len(tm.FailedFields)))
	}
}

// RecordField records the results of one field evaluation
func (rm *RunMetrics) RecordField(table, field string, results []model.CheckResult) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.TotalFields++
	rm.TotalChecks += len(results)

	tm, ok := rm.Tables[table]
	if !ok {
		return
	}
	tm.FieldsChecked++
	tm.ChecksRun += len(results)
	for _, r := range results {
		if r.Status.IsFailure() {
			tm.FailedFields = append(tm.FailedFields, field)
			break
		}
	}

	if rm.logger != nil {
		rm.logger.Debug("Checked field",
			zap.String("table", table),
			zap.String("field", field),
			zap.Int("results", len(results)))
	}
}

// RecordCheckDuration accumulates time spent in one rule
func (rm *RunMetrics) RecordCheckDuration(ct model.CheckType, d time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.CheckDurations[ct] += d
}

// RecordSkippedTable marks a table as skipped
func (rm *RunMetrics) RecordSkippedTable(table, reason string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.SkippedTables[table] = reason

	if rm.logger != nil {
		rm.logger.Info("Skipped table",
			zap.String("table", table),
			zap.String("reason", reason))
	}
}

// RecordError increments the count for a specific error category
func (rm *RunMetrics) RecordError(category ErrorCategory) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.ErrorCounts[category]++
}

// Complete marks the run as complete
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.EndTime = rm.now()

	if rm.logger != nil {
		rm.logger.Info("Validation run completed",
			zap.Duration("totalDuration", rm.duration()),
			zap.Int("tables", len(rm.Tables)),
			zap.Int("skippedTables", len(rm.SkippedTables)),
			zap.Int("fields", rm.TotalFields),
			zap.Int("checks", rm.TotalChecks))
	}
}

// Duration returns the total duration of the run
func (rm *RunMetrics) Duration() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.duration()
}

func (rm *RunMetrics) duration() time.Duration {
	if rm.EndTime.IsZero() {
		return rm.now().Sub(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// GenerateMetricsReport creates a detailed metrics report
func (rm *RunMetrics) GenerateMetricsReport() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, `
Validation Metrics Report
=========================
Duration:                %s
Start Time:              %s
End Time:                %s

Tables Checked:          %d
Tables Skipped:          %d
Fields Checked:          %d
Results Produced:        %d
`,
		formatDuration(rm.duration()),
		rm.StartTime.Format(time.RFC3339),
		rm.EndTime.Format(time.RFC3339),
		len(rm.Tables),
		len(rm.SkippedTables),
		rm.TotalFields,
		rm.TotalChecks,
	)

	if len(rm.tableOrder) > 0 {
		sb.WriteString("\nTable Details\n-------------\n")
		for _, name := range rm.tableOrder {
			tm := rm.Tables[name]
			fmt.Fprintf(&sb, "- %s: %d rows, %d fields, %d results, %d failing fields, %s\n",
				name, tm.RowCount, tm.FieldsChecked, tm.ChecksRun, len(tm.FailedFields), formatDuration(tm.Duration()))
		}
	}

	if len(rm.CheckDurations) > 0 {
		sb.WriteString("\nTime per Check\n--------------\n")
		checks := make([]string, 0, len(rm.CheckDurations))
		for ct := range rm.CheckDurations {
			checks = append(checks, string(ct))
		}
		sort.Strings(checks)
		for _, ct := range checks {
			fmt.Fprintf(&sb, "- %s: %s\n", ct, formatDuration(rm.CheckDurations[model.CheckType(ct)]))
		}
	}

	if len(rm.ErrorCounts) > 0 {
		sb.WriteString("\nErrors\n------\n")
		for category, count := range rm.ErrorCounts {
			fmt.Fprintf(&sb, "- %s: %d\n", category, count)
		}
	}

	return sb.String()
}

// ToJSON serializes metrics to JSON
func (rm *RunMetrics) ToJSON() ([]byte, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	tables := make(map[string]int64, len(rm.Tables))
	for name, tm := range rm.Tables {
		tables[name] = tm.RowCount
	}

	return json.Marshal(struct {
		Duration      string                `json:"duration"`
		TablesChecked int                   `json:"tablesChecked"`
		SkippedTables map[string]string     `json:"skippedTables"`
		TableRows     map[string]int64      `json:"tableRows"`
		TotalFields   int                   `json:"totalFields"`
		TotalChecks   int                   `json:"totalChecks"`
		ErrorCounts   map[ErrorCategory]int `json:"errorCounts"`
	}{
		Duration:      formatDuration(rm.duration()),
		TablesChecked: len(rm.Tables),
		SkippedTables: rm.SkippedTables,
		TableRows:     tables,
		TotalFields:   rm.TotalFields,
		TotalChecks:   rm.TotalChecks,
		ErrorCounts:   rm.ErrorCounts,
	})
}

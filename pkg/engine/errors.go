package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
)

var (
	// ErrNoConfiguration is returned when a run starts before any check configuration is loaded
	ErrNoConfiguration = errors.New("no check configuration loaded")
	// ErrTableNotConfigured is returned by RunTable for a table absent from the configuration
	ErrTableNotConfigured = errors.New("no configuration found for table")
)

// ErrorCategory classifies errors met during a run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryStructural covers configured tables or columns the store does not have
	ErrorCategoryStructural
	// ErrorCategoryCatalog covers failed catalog lookups
	ErrorCategoryCatalog
	// ErrorCategoryDatabase covers failed rule queries
	ErrorCategoryDatabase
	// ErrorCategoryTimeout covers rule queries cut off by the query timeout
	ErrorCategoryTimeout
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryStructural:
		return "Structural"
	case ErrorCategoryCatalog:
		return "Catalog"
	case ErrorCategoryDatabase:
		return "Database"
	case ErrorCategoryTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// MarshalText lets categories key JSON objects by name
func (ec ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category  ErrorCategory   `json:"category"`
	Table     string          `json:"table"`
	Field     string          `json:"field,omitempty"`
	CheckType model.CheckType `json:"check_type,omitempty"`
	Error     error           `json:"-"`
	Message   string          `json:"message"` // Derived from Error but stored for serialization
	Timestamp time.Time       `json:"timestamp"`
}

// NewErrorRecord creates a new error record
func NewErrorRecord(err error, category ErrorCategory, at time.Time) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		Timestamp: at,
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithField adds table and field information to the error record
func (r ErrorRecord) WithField(table, field string) ErrorRecord {
	r.Table = table
	r.Field = field
	return r
}

// WithCheck adds the rule that was running
func (r ErrorRecord) WithCheck(ct model.CheckType) ErrorRecord {
	r.CheckType = ct
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Table != "" {
		sb.WriteString(fmt.Sprintf("Table: %s ", r.Table))
	}

	if r.Field != "" {
		sb.WriteString(fmt.Sprintf("Field: %s ", r.Field))
	}

	if r.CheckType != "" {
		sb.WriteString(fmt.Sprintf("Check: %s ", r.CheckType))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	return sb.String()
}

// ErrorTracker collects the errors of one run. Errors never abort a run;
// the tracker keeps counts and a few samples per category for the report.
type ErrorTracker struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	sampleErrors map[ErrorCategory][]ErrorRecord
	tableErrors  map[string]int
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorTracker creates a new error tracker
func NewErrorTracker(logger *zap.Logger) *ErrorTracker {
	return &ErrorTracker{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		tableErrors:  make(map[string]int),
		maxSamples:   5, // Store up to 5 sample errors per category
	}
}

// CategorizeError determines the category of an error
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryTimeout
	case errors.Is(err, model.ErrTableMissing), errors.Is(err, model.ErrColumnMissing):
		return ErrorCategoryStructural
	default:
		return ErrorCategoryDatabase
	}
}

// Record saves an error occurrence
func (et *ErrorTracker) Record(record ErrorRecord) {
	et.mu.Lock()
	defer et.mu.Unlock()

	et.errorCounts[record.Category]++

	samples := et.sampleErrors[record.Category]
	if len(samples) < et.maxSamples {
		et.sampleErrors[record.Category] = append(samples, record)
	}

	if record.Table != "" {
		et.tableErrors[record.Table]++
	}

	if et.logger != nil {
		logLevel := zap.WarnLevel
		if record.Category == ErrorCategoryStructural {
			logLevel = zap.InfoLevel
		}

		et.logger.Log(logLevel, "Check error",
			zap.String("category", record.Category.String()),
			zap.String("table", record.Table),
			zap.String("field", record.Field),
			zap.String("check", string(record.CheckType)),
			zap.String("error", record.Message))
	}
}

// Summary returns error counts by category
func (et *ErrorTracker) Summary() map[ErrorCategory]int {
	et.mu.Lock()
	defer et.mu.Unlock()

	summary := make(map[ErrorCategory]int, len(et.errorCounts))
	for category, count := range et.errorCounts {
		summary[category] = count
	}
	return summary
}

// Samples returns sample errors for each category
func (et *ErrorTracker) Samples() map[ErrorCategory][]ErrorRecord {
	et.mu.Lock()
	defer et.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord, len(et.sampleErrors))
	for category, records := range et.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}
	return samples
}

// TableErrorCounts returns error counts by table
func (et *ErrorTracker) TableErrorCounts() map[string]int {
	et.mu.Lock()
	defer et.mu.Unlock()

	tableCounts := make(map[string]int, len(et.tableErrors))
	for table, count := range et.tableErrors {
		tableCounts[table] = count
	}
	return tableCounts
}

// Total returns the number of recorded errors
func (et *ErrorTracker) Total() int {
	et.mu.Lock()
	defer et.mu.Unlock()

	total := 0
	for _, count := range et.errorCounts {
		total += count
	}
	return total
}

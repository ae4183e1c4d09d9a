package model

import "time"

// ArchiveKind is the base name of a family of archived result tables
type ArchiveKind string

const (
	ArchiveQueryResult  ArchiveKind = "query_result"
	ArchiveFailedChecks ArchiveKind = "failedchecks"
	ArchivePassedChecks ArchiveKind = "passedchecks"
)

// Provenance sentinels recorded in place of a query for check exports
const (
	ProvenanceFailedChecks = "DATA_QUALITY_FAILED_CHECKS_EXPORT"
	ProvenancePassedChecks = "DATA_QUALITY_PASSED_CHECKS_EXPORT"
)

// ArchiveEntry is one row of the query_metadata catalog
type ArchiveEntry struct {
	ID               int64  `db:"id" json:"id"`
	TableName        string `db:"table_name" json:"table_name"`
	ExecutionDate    string `db:"execution_date" json:"execution_date"`
	Version          int    `db:"version" json:"version"`
	OriginalQuery    string `db:"original_query" json:"original_query"`
	RowCount         int    `db:"row_count" json:"row_count"`
	ColumnCount      int    `db:"column_count" json:"column_count"`
	Description      string `db:"description" json:"description"`
	CreatedTimestamp string `db:"created_timestamp" json:"created_timestamp"`
}

// ArchiveView is a bounded read of an archived table
type ArchiveView struct {
	Table   string     `json:"table"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Limit   int        `json:"limit"`
}

// FailedExportColumns are the columns of failed-check exports
var FailedExportColumns = []string{
	"table_name", "field_name", "check_type", "status", "message", "failing_value", "date", "timestamp",
}

// PassedExportColumns are the columns of passed-check exports
var PassedExportColumns = []string{
	"table_name", "field_name", "check_type", "status", "message", "passing_info", "date", "timestamp",
}

// ExportDate and ExportTimestamp format the date/timestamp cells of exported rows
func ExportDate(t time.Time) string { return t.Format("2006-01-02") }

func ExportTimestamp(t time.Time) string { return t.Format("2006-01-02T15:04:05.000000") }

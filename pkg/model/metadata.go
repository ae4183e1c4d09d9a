// pkg/model/metadata.go
package model

import (
	"fmt"
	"strings"
)

// TableMetadata contains the structure information for a data-store table
type TableMetadata struct {
	Schema      string   // Schema name, empty for SQLite
	Table       string   // Table name
	Columns     []Column // Column definitions in ordinal order
	PrimaryKeys []string // Primary key column names
}

// Column represents metadata about a table column
type Column struct {
	Name         string // Column name as reported by the catalog
	DataType     string // Declared data type
	Nullable     bool   // Whether column allows NULL values
	IsPrimaryKey bool   // Whether column is part of primary key
}

// GetColumnByName returns a column by exact name, nil if absent.
// Field names in check configuration are matched exactly, as the catalog reports them.
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	for i, col := range tm.Columns {
		if col.Name == name {
			return &tm.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table has a column with the exact name
func (tm *TableMetadata) HasColumn(name string) bool {
	return tm.GetColumnByName(name) != nil
}

// ColumnNames returns the column names in ordinal order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}

// Describe renders the table as "Table: t (c TYPE, ...)" for prompt schemas
func (tm *TableMetadata) Describe() string {
	parts := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		parts[i] = strings.TrimSpace(fmt.Sprintf("%s %s", col.Name, col.DataType))
	}
	return fmt.Sprintf("Table: %s (%s)", tm.Table, strings.Join(parts, ", "))
}

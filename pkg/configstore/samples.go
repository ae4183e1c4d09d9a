package configstore

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/David-Botos/data-quality/pkg/model"
)

// CodeRow is one allow-list row
type CodeRow struct {
	Table string
	Field string
	Codes []string
}

// SampleCheckConfigs returns the starter check configuration for the employees sample
func SampleCheckConfigs() []model.FieldCheckConfig {
	return []model.FieldCheckConfig{
		{
			Table:         "employees",
			Field:         "name",
			Description:   "Employee name validation",
			NullCheck:     true,
			BlankCheck:    true,
			LanguageCheck: true,
		},
		{
			Table:          "employees",
			Field:          "email",
			Description:    "Employee email validation",
			NullCheck:      true,
			BlankCheck:     true,
			EmailCheck:     true,
			DuplicateCheck: true,
		},
	}
}

// SampleCodeRows returns the starter allow-lists for the employees sample
func SampleCodeRows() []CodeRow {
	return []CodeRow{
		{Table: "employees", Field: "department_code", Codes: []string{"IT001", "HR002", "FIN003", "MKT004", "OPS005"}},
		{Table: "employees", Field: "status", Codes: []string{"ACTIVE", "INACTIVE", "PENDING"}},
	}
}

// CheckRecord renders a field configuration as a header-keyed row with "1"/"0" flags
func CheckRecord(fc model.FieldCheckConfig) map[string]string {
	rec := map[string]string{
		ColumnTable:       fc.Table,
		ColumnField:       fc.Field,
		ColumnDescription: fc.Description,
	}
	for _, ct := range model.RuleCheckTypes {
		rec[string(ct)] = flag(fc.Enabled(ct))
	}
	return rec
}

// CodeRecord renders an allow-list row keyed by header
func CodeRecord(row CodeRow) map[string]string {
	return map[string]string{
		ColumnTable:      row.Table,
		ColumnField:      row.Field,
		ColumnValidCodes: strings.Join(row.Codes, ","),
	}
}

// WriteCheckCSV writes field configurations as a check-flags table
func WriteCheckCSV(w io.Writer, configs []model.FieldCheckConfig) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CheckConfigHeader); err != nil {
		return err
	}
	for _, fc := range configs {
		rec := CheckRecord(fc)
		row := make([]string, len(CheckConfigHeader))
		for i, col := range CheckConfigHeader {
			row[i] = rec[col]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCodeCSV writes allow-list rows
func WriteCodeCSV(w io.Writer, rows []CodeRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CodeAllowListHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Table, row.Field, strings.Join(row.Codes, ",")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

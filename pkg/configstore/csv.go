// pkg/configstore/csv.go
package configstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/David-Botos/data-quality/pkg/model"
)

// Column names of the check-flags table
const (
	ColumnTable       = "table_name"
	ColumnField       = "field_name"
	ColumnDescription = "description"
	ColumnValidCodes  = "valid_codes"
)

// CheckConfigHeader is the header of the check-flags table in the order it is written
var CheckConfigHeader = []string{
	ColumnTable, ColumnField, ColumnDescription,
	string(model.CheckNull),
	string(model.CheckBlank),
	string(model.CheckSpecialCharacters),
	string(model.CheckMaxValue),
	string(model.CheckMinValue),
	string(model.CheckMaxCount),
	string(model.CheckEmail),
	string(model.CheckNumeric),
	string(model.CheckSystemCodes),
	string(model.CheckLanguage),
	string(model.CheckPhoneNumber),
	string(model.CheckDuplicate),
	string(model.CheckDate),
}

// CodeAllowListHeader is the header of the allow-list table
var CodeAllowListHeader = []string{ColumnTable, ColumnField, ColumnValidCodes}

// LoadCheckConfig parses a check-flags table. A flag is on iff its cell is exactly "1".
// A repeated (table, field) row replaces the earlier one.
func LoadCheckConfig(r io.Reader, source string) (*model.CheckConfig, error) {
	rows, err := readTable(r, source, CheckConfigHeader)
	if err != nil {
		return nil, err
	}

	cfg := model.NewCheckConfig()
	for _, row := range rows {
		fc := model.FieldCheckConfig{
			Table:       row.get(ColumnTable),
			Field:       row.get(ColumnField),
			Description: row.get(ColumnDescription),
		}
		for _, ct := range model.RuleCheckTypes {
			fc.Set(ct, row.get(string(ct)) == "1")
		}
		cfg.Put(fc)
	}
	return cfg, nil
}

// LoadCodeAllowList parses an allow-list table. Codes are split on commas and trimmed;
// empty codes are dropped.
func LoadCodeAllowList(r io.Reader, source string) (model.CodeAllowList, error) {
	rows, err := readTable(r, source, CodeAllowListHeader)
	if err != nil {
		return nil, err
	}

	codes := make(model.CodeAllowList)
	for _, row := range rows {
		codes.Put(row.get(ColumnTable), row.get(ColumnField), SplitCodes(row.get(ColumnValidCodes)))
	}
	return codes, nil
}

// LoadCheckConfigFile reads a check-flags CSV file
func LoadCheckConfigFile(path string) (*model.CheckConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ConfigError{Kind: model.ConfigRead, Source: path, Err: err}
	}
	defer f.Close()
	return LoadCheckConfig(f, path)
}

// LoadCodeAllowListFile reads an allow-list CSV file
func LoadCodeAllowListFile(path string) (model.CodeAllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ConfigError{Kind: model.ConfigRead, Source: path, Err: err}
	}
	defer f.Close()
	return LoadCodeAllowList(f, path)
}

// SplitCodes splits a comma-separated code list
func SplitCodes(s string) []string {
	var codes []string
	for _, code := range strings.Split(s, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

type record struct {
	index  map[string]int
	values []string
}

func (r record) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

// readTable reads a header row and checks that every required column is present
func readTable(r io.Reader, source string, required []string) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.ConfigError{Kind: model.ConfigRead, Source: source, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &model.ConfigError{Kind: model.ConfigRead, Source: source, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[name] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, &model.ConfigError{Kind: model.ConfigMissingColumn, Source: source, Column: col}
		}
	}

	var rows []record
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			return nil, &model.ConfigError{
				Kind:   model.ConfigRead,
				Source: source,
				Line:   line,
				Err:    fmt.Errorf("malformed row: %w", err),
			}
		}
		rows = append(rows, record{index: index, values: values})
	}
	return rows, nil
}

// pkg/model/check.go
package model

import "fmt"

// CheckType identifies a rule or a structural outcome of a field evaluation
type CheckType string

// Rule identifiers. These double as the flag column names of the check configuration.
const (
	CheckNull              CheckType = "null_check"
	CheckBlank             CheckType = "blank_check"
	CheckEmail             CheckType = "email_check"
	CheckPhoneNumber       CheckType = "phone_number_check"
	CheckDate              CheckType = "date_check"
	CheckNumeric           CheckType = "numeric_check"
	CheckDuplicate         CheckType = "duplicate_check"
	CheckSpecialCharacters CheckType = "special_characters_check"
	CheckSystemCodes       CheckType = "system_codes_check"
	CheckLanguage          CheckType = "language_check"
	CheckMaxCount          CheckType = "max_count_check"
	CheckMaxValue          CheckType = "max_value_check"
	CheckMinValue          CheckType = "min_value_check"
)

// Structural check types are produced by the engine, never configured
const (
	CheckColumnExistence CheckType = "column_existence"
	CheckDataExistence   CheckType = "data_existence"
	CheckDatabaseError   CheckType = "database_error"
)

// RuleCheckTypes lists the configurable rules in flag-column order
var RuleCheckTypes = []CheckType{
	CheckSpecialCharacters,
	CheckNull,
	CheckBlank,
	CheckMaxValue,
	CheckMinValue,
	CheckMaxCount,
	CheckEmail,
	CheckNumeric,
	CheckSystemCodes,
	CheckLanguage,
	CheckPhoneNumber,
	CheckDuplicate,
	CheckDate,
}

// ParseCheckType resolves a rule identifier
func ParseCheckType(s string) (CheckType, error) {
	for _, ct := range RuleCheckTypes {
		if string(ct) == s {
			return ct, nil
		}
	}
	switch CheckType(s) {
	case CheckColumnExistence, CheckDataExistence, CheckDatabaseError:
		return CheckType(s), nil
	}
	return "", fmt.Errorf("unknown check type %q", s)
}

// Status is the severity of a single check result
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
	StatusInfo    Status = "INFO"
)

// Valid reports whether s is one of the five known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusWarning, StatusError, StatusInfo:
		return true
	}
	return false
}

// IsFailure reports whether the status counts toward failed-field summaries
func (s Status) IsFailure() bool {
	return s == StatusFail || s == StatusError
}

// CheckResult is the outcome of one rule evaluation on one field
type CheckResult struct {
	Table     string    `json:"table"`
	Field     string    `json:"field"`
	CheckType CheckType `json:"check_type"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
}

// NewCheckResult builds a result with a formatted message
func NewCheckResult(table, field string, checkType CheckType, status Status, format string, args ...interface{}) CheckResult {
	return CheckResult{
		Table:     table,
		Field:     field,
		CheckType: checkType,
		Status:    status,
		Message:   fmt.Sprintf(format, args...),
	}
}

// FieldCheckConfig is the enabled rule set for one (table, field) pair
type FieldCheckConfig struct {
	Table       string
	Field       string
	Description string

	NullCheck              bool
	BlankCheck             bool
	EmailCheck             bool
	PhoneNumberCheck       bool
	DateCheck              bool
	NumericCheck           bool
	DuplicateCheck         bool
	SpecialCharactersCheck bool
	SystemCodesCheck       bool
	LanguageCheck          bool
	MaxCountCheck          bool
	MaxValueCheck          bool
	MinValueCheck          bool
}

// Enabled reports whether the given rule is switched on
func (c FieldCheckConfig) Enabled(ct CheckType) bool {
	switch ct {
	case CheckNull:
		return c.NullCheck
	case CheckBlank:
		return c.BlankCheck
	case CheckEmail:
		return c.EmailCheck
	case CheckPhoneNumber:
		return c.PhoneNumberCheck
	case CheckDate:
		return c.DateCheck
	case CheckNumeric:
		return c.NumericCheck
	case CheckDuplicate:
		return c.DuplicateCheck
	case CheckSpecialCharacters:
		return c.SpecialCharactersCheck
	case CheckSystemCodes:
		return c.SystemCodesCheck
	case CheckLanguage:
		return c.LanguageCheck
	case CheckMaxCount:
		return c.MaxCountCheck
	case CheckMaxValue:
		return c.MaxValueCheck
	case CheckMinValue:
		return c.MinValueCheck
	default:
		return false
	}
}

// Set switches a rule on or off. Unknown types are ignored.
func (c *FieldCheckConfig) Set(ct CheckType, on bool) {
	switch ct {
	case CheckNull:
		c.NullCheck = on
	case CheckBlank:
		c.BlankCheck = on
	case CheckEmail:
		c.EmailCheck = on
	case CheckPhoneNumber:
		c.PhoneNumberCheck = on
	case CheckDate:
		c.DateCheck = on
	case CheckNumeric:
		c.NumericCheck = on
	case CheckDuplicate:
		c.DuplicateCheck = on
	case CheckSpecialCharacters:
		c.SpecialCharactersCheck = on
	case CheckSystemCodes:
		c.SystemCodesCheck = on
	case CheckLanguage:
		c.LanguageCheck = on
	case CheckMaxCount:
		c.MaxCountCheck = on
	case CheckMaxValue:
		c.MaxValueCheck = on
	case CheckMinValue:
		c.MinValueCheck = on
	}
}

// EnabledChecks returns the switched-on rules in flag-column order
func (c FieldCheckConfig) EnabledChecks() []CheckType {
	enabled := make([]CheckType, 0, len(RuleCheckTypes))
	for _, ct := range RuleCheckTypes {
		if c.Enabled(ct) {
			enabled = append(enabled, ct)
		}
	}
	return enabled
}

// TableChecks holds the field configurations of one table in load order
type TableChecks struct {
	Fields map[string]FieldCheckConfig
	Order  []string
}

// CheckConfig maps table -> field -> configuration, remembering load order
type CheckConfig struct {
	Tables map[string]*TableChecks
	Order  []string
}

// NewCheckConfig returns an empty configuration
func NewCheckConfig() *CheckConfig {
	return &CheckConfig{Tables: make(map[string]*TableChecks)}
}

// Put inserts or replaces a field configuration
func (c *CheckConfig) Put(fc FieldCheckConfig) {
	tc, ok := c.Tables[fc.Table]
	if !ok {
		tc = &TableChecks{Fields: make(map[string]FieldCheckConfig)}
		c.Tables[fc.Table] = tc
		c.Order = append(c.Order, fc.Table)
	}
	if _, exists := tc.Fields[fc.Field]; !exists {
		tc.Order = append(tc.Order, fc.Field)
	}
	tc.Fields[fc.Field] = fc
}

// Get returns the configuration of one field
func (c *CheckConfig) Get(table, field string) (FieldCheckConfig, bool) {
	if c == nil {
		return FieldCheckConfig{}, false
	}
	tc, ok := c.Tables[table]
	if !ok {
		return FieldCheckConfig{}, false
	}
	fc, ok := tc.Fields[field]
	return fc, ok
}

// Fields returns the field configurations of a table in load order
func (c *CheckConfig) Fields(table string) []FieldCheckConfig {
	if c == nil {
		return nil
	}
	tc, ok := c.Tables[table]
	if !ok {
		return nil
	}
	out := make([]FieldCheckConfig, 0, len(tc.Order))
	for _, f := range tc.Order {
		out = append(out, tc.Fields[f])
	}
	return out
}

// HasTable reports whether a table is configured
func (c *CheckConfig) HasTable(table string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Tables[table]
	return ok
}

// Empty reports whether no field is configured
func (c *CheckConfig) Empty() bool {
	return c == nil || len(c.Order) == 0
}

// CodeAllowList maps table -> field -> valid codes
type CodeAllowList map[string]map[string][]string

// Codes returns the allow-list of a field, nil when none is configured
func (a CodeAllowList) Codes(table, field string) []string {
	if a == nil {
		return nil
	}
	return a[table][field]
}

// Put stores the codes of one field
func (a CodeAllowList) Put(table, field string, codes []string) {
	if _, ok := a[table]; !ok {
		a[table] = make(map[string][]string)
	}
	a[table][field] = codes
}

package model

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingColumn matches any ConfigError of kind ConfigMissingColumn
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnknownCheck matches any ConfigError of kind ConfigUnknownCheck
	ErrUnknownCheck = errors.New("unknown check")
	// ErrTableMissing marks a configured table absent from the data store
	ErrTableMissing = errors.New("table does not exist")
	// ErrColumnMissing marks a configured field absent from its table
	ErrColumnMissing = errors.New("column does not exist")
	// ErrNothingToStore is returned by archive writes given no records
	ErrNothingToStore = errors.New("nothing to store")
	// ErrArchiveNotFound is returned when an archived table is not catalogued
	ErrArchiveNotFound = errors.New("archived table not found")
)

// ConfigErrorKind classifies configuration failures
type ConfigErrorKind int

const (
	ConfigRead ConfigErrorKind = iota
	ConfigMissingColumn
	ConfigUnknownCheck
)

// String returns a string representation of the kind
func (k ConfigErrorKind) String() string {
	switch k {
	case ConfigRead:
		return "Read"
	case ConfigMissingColumn:
		return "MissingColumn"
	case ConfigUnknownCheck:
		return "UnknownCheck"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// ConfigError aborts a configuration load; no partial configuration is kept
type ConfigError struct {
	Kind   ConfigErrorKind
	Source string
	Column string
	Line   int
	Err    error
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigMissingColumn:
		return fmt.Sprintf("config %s: missing required column %q", e.Source, e.Column)
	case ConfigUnknownCheck:
		return fmt.Sprintf("config %s: unknown check %q", e.Source, e.Column)
	}
	if e.Line > 0 {
		return fmt.Sprintf("config %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is lets errors.Is match on the kind sentinels
func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrMissingColumn:
		return e.Kind == ConfigMissingColumn
	case ErrUnknownCheck:
		return e.Kind == ConfigUnknownCheck
	}
	return false
}

// DatabaseError is a data-store failure scoped to one field evaluation
type DatabaseError struct {
	Table string
	Field string
	Err   error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error on %s.%s: %v", e.Table, e.Field, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Upload error codes returned by the HTTP boundary
const (
	CodeMissingFiles          = "MISSING_FILES"
	CodeEmptyFilenames        = "EMPTY_FILENAMES"
	CodeInvalidFileType       = "INVALID_FILE_TYPE"
	CodeConfigLoadError       = "CONFIG_LOAD_ERROR"
	CodeSystemCodesLoadError  = "SYSTEM_CODES_LOAD_ERROR"
	CodeDatabaseError         = "DATABASE_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeFileTooLarge          = "FILE_TOO_LARGE"
	CodeNotFound              = "NOT_FOUND"
	CodeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	CodeTableNotConfigured    = "TABLE_NOT_CONFIGURED"
	CodeArchiveEntryNotFound  = "RESULT_NOT_FOUND"
	CodeExternalServiceFailed = "EXTERNAL_SERVICE_ERROR"
)

// UploadError is a boundary validation failure with a stable code
type UploadError struct {
	Code    string
	Status  int
	Message string
	Err     error
}

// NewUploadError builds an UploadError, defaulting the status to 400
func NewUploadError(code, message string, status int) *UploadError {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &UploadError{Code: code, Status: status, Message: message}
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ExternalServiceError covers transport failures, timeouts and non-2xx responses
type ExternalServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external service returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("external service request failed: %v", e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ArchiveError wraps a failed archive operation; the archive is left unchanged
type ArchiveError struct {
	Op    string
	Table string
	Err   error
}

func (e *ArchiveError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("archive %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

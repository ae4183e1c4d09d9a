package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/engine"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/seed"
)

// Multipart field names of the upload
const (
	FieldChecksFile = "data_quality_file"
	FieldCodesFile  = "system_codes_file"
)

const allowedExtension = ".csv"

type resultEntry struct {
	Field     string          `json:"field"`
	CheckType model.CheckType `json:"check_type"`
	Status    model.Status    `json:"status"`
	Message   string          `json:"message"`
}

type checkResponse struct {
	Success             bool                     `json:"success"`
	Message             string                   `json:"message"`
	Results             map[string][]resultEntry `json:"results"`
	Summary             engine.Summary           `json:"summary"`
	FailedFieldsSummary interface{}              `json:"failed_fields_summary,omitempty"`
	Timestamp           string                   `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": model.ExportTimestamp(s.now()),
		"service":   serviceName,
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.logger.With(zap.String("request_id", requestID(r)))

	checksHeader, codesHeader, uerr := s.readUpload(w, r)
	if uerr != nil {
		logger.Info("Upload rejected", zap.String("code", uerr.Code), zap.String("reason", uerr.Message))
		writeError(w, uerr.Status, uerr.Code, uerr.Message)
		return
	}
	defer r.MultipartForm.RemoveAll()

	checks, err := loadUpload(checksHeader, configstore.LoadCheckConfig)
	if err != nil {
		logger.Warn("Failed to load check configuration", zap.Error(err))
		writeError(w, http.StatusBadRequest, model.CodeConfigLoadError, "Failed to load data quality checks configuration")
		return
	}
	codes, err := loadUpload(codesHeader, configstore.LoadCodeAllowList)
	if err != nil {
		logger.Warn("Failed to load system codes", zap.Error(err))
		writeError(w, http.StatusBadRequest, model.CodeSystemCodesLoadError, "Failed to load system codes configuration")
		return
	}

	store, release, err := s.dataStore(ctx)
	if err != nil {
		logger.Error("Failed to prepare data store", zap.Error(err))
		writeError(w, http.StatusInternalServerError, model.CodeDatabaseError, "Failed to create sample database")
		return
	}
	defer release()

	configs := configstore.New(logger)
	configs.ReplaceChecks(checks)
	configs.ReplaceCodes(codes)

	report, err := engine.New(store, configs, logger, s.engineOptions()...).RunAll(ctx)
	switch {
	case errors.Is(err, engine.ErrNoConfiguration):
		writeJSON(w, http.StatusOK, s.emptyResponse())
		return
	case err != nil:
		logger.Error("Data quality run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, fmt.Sprintf("Internal server error: %s", err))
		return
	case report.Results.Empty():
		writeJSON(w, http.StatusOK, s.emptyResponse())
		return
	}

	results := make(map[string][]resultEntry, len(report.Results.Order))
	for _, table := range report.Results.Order {
		entries := make([]resultEntry, 0, len(report.Results.Table(table)))
		for _, res := range report.Results.Table(table) {
			entries = append(entries, resultEntry{Field: res.Field, CheckType: res.CheckType, Status: res.Status, Message: res.Message})
		}
		results[table] = entries
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Success:             true,
		Message:             "Data quality checks completed successfully",
		Results:             results,
		Summary:             report.Summary,
		FailedFieldsSummary: report.Results.FailedFields(),
		Timestamp:           model.ExportTimestamp(s.now()),
	})
}

func (s *Server) emptyResponse() checkResponse {
	return checkResponse{
		Success:   true,
		Message:   "No data quality issues found",
		Results:   map[string][]resultEntry{},
		Timestamp: model.ExportTimestamp(s.now()),
	}
}

func (s *Server) engineOptions() []engine.Option {
	opts := []engine.Option{engine.WithClock(s.now)}
	if s.opts.QueryTimeout > 0 {
		opts = append(opts, engine.WithQueryTimeout(s.opts.QueryTimeout))
	}
	if s.opts.CoupleOutlierChecks {
		opts = append(opts, engine.WithLegacyOutlierCoupling())
	}
	return opts
}

// readUpload applies the size cap and the file presence, name and extension checks
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (checks, codes *multipart.FileHeader, uerr *model.UploadError) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.opts.UploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, model.NewUploadError(model.CodeFileTooLarge,
				fmt.Sprintf("File too large. Maximum size is %dMB.", s.opts.UploadMaxBytes>>20), http.StatusRequestEntityTooLarge)
		}
		return nil, nil, model.NewUploadError(model.CodeMissingFiles,
			"Both data_quality_file and system_codes_file are required", http.StatusBadRequest)
	}

	form := r.MultipartForm
	present := func(field string) bool {
		_, isFile := form.File[field]
		_, isValue := form.Value[field]
		return isFile || isValue
	}
	if !present(FieldChecksFile) || !present(FieldCodesFile) {
		form.RemoveAll()
		return nil, nil, model.NewUploadError(model.CodeMissingFiles,
			"Both data_quality_file and system_codes_file are required", http.StatusBadRequest)
	}

	// a part without a filename is parsed as a plain value
	checks, codes = firstFile(form, FieldChecksFile), firstFile(form, FieldCodesFile)
	if checks == nil || codes == nil || checks.Filename == "" || codes.Filename == "" {
		form.RemoveAll()
		return nil, nil, model.NewUploadError(model.CodeEmptyFilenames,
			"Both files must have valid filenames", http.StatusBadRequest)
	}

	if !allowedFile(checks.Filename) || !allowedFile(codes.Filename) {
		form.RemoveAll()
		return nil, nil, model.NewUploadError(model.CodeInvalidFileType,
			"Only CSV files are allowed", http.StatusBadRequest)
	}
	return checks, codes, nil
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if files := form.File[field]; len(files) > 0 {
		return files[0]
	}
	return nil
}

func allowedFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), allowedExtension)
}

// loadUpload opens an uploaded file and parses it with load
func loadUpload[T any](fh *multipart.FileHeader, load func(r io.Reader, source string) (T, error)) (T, error) {
	var zero T
	f, err := fh.Open()
	if err != nil {
		return zero, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return load(f, filepath.Base(fh.Filename))
}

// dataStore returns the store a request runs against and a release func.
// In sample mode every request gets its own seeded SQLite file.
func (s *Server) dataStore(ctx context.Context) (engine.DataStore, func(), error) {
	if !s.opts.Sample {
		return s.store, func() {}, nil
	}

	dir, err := os.MkdirTemp(s.opts.TempDir, "dq-upload-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("Failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
		}
	}

	path, err := seed.TempDatabase(ctx, dir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	db, err := connector.OpenSQLite(path, connector.SQLiteRead, 0)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	conn := connector.NewSQLiteConnectorFromDB(db, path)
	return conn, func() {
		conn.Close()
		cleanup()
	}, nil
}

func (s *Server) handleSampleConfigs(w http.ResponseWriter, r *http.Request) {
	checks := configstore.SampleCheckConfigs()
	checkRows := make([]map[string]string, len(checks))
	for i, fc := range checks {
		checkRows[i] = configstore.CheckRecord(fc)
	}

	codes := configstore.SampleCodeRows()
	codeRows := make([]map[string]string, len(codes))
	for i, row := range codes {
		codeRows[i] = configstore.CodeRecord(row)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"sample_configurations": map[string]interface{}{
			"data_quality_checks": map[string]interface{}{
				"description": "CSV format for data quality checks configuration",
				"headers":     configstore.CheckConfigHeader,
				"sample_data": checkRows,
			},
			"system_codes": map[string]interface{}{
				"description": "CSV format for system codes configuration",
				"headers":     configstore.CodeAllowListHeader,
				"sample_data": codeRows,
			},
		},
	})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	entries, err := s.archive.List(r.Context())
	if err != nil {
		s.archiveError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.ArchiveEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(entries),
		"results": entries,
	})
}

func (s *Server) handleViewResult(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entry, err := s.archive.Entry(r.Context(), table)
	if err != nil {
		s.archiveError(w, r, err)
		return
	}
	view, err := s.archive.View(r.Context(), table, limit)
	if err != nil {
		s.archiveError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entry":   entry,
		"data":    view,
	})
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := s.archive.Delete(r.Context(), table); err != nil {
		s.archiveError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Deleted stored result: %s", table),
	})
}

func (s *Server) archiveError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrArchiveNotFound) {
		writeError(w, http.StatusNotFound, model.CodeArchiveEntryNotFound, fmt.Sprintf("Table %s not found", chi.URLParam(r, "table")))
		return
	}
	s.logger.Error("Archive request failed", zap.String("request_id", requestID(r)), zap.Error(err))
	writeError(w, http.StatusInternalServerError, model.CodeDatabaseError, err.Error())
}

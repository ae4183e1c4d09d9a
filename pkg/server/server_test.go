package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/archive"
	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/seed"
)

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

type upload struct {
	field    string
	filename string
	content  string
}

func sampleChecksCSV(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, configstore.WriteCheckCSV(&buf, configstore.SampleCheckConfigs()))
	return buf.String()
}

func sampleCodesCSV(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, configstore.WriteCodeCSV(&buf, configstore.SampleCodeRows()))
	return buf.String()
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", "text/csv")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T, opts Options, results *archive.ResultsArchive) *Server {
	t.Helper()
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	opts.Sample = true
	s, err := New(opts, nil, results, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func postCheck(t *testing.T, s *Server, files ...upload) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, contentType := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/data-quality-check", body)
	req.Header.Set("Content-Type", contentType)
	return do(t, s, req)
}

func TestNew_RequiresStoreOutsideSampleMode(t *testing.T) {
	_, err := New(Options{}, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Data Quality Checker API", body["service"])
	assert.Equal(t, "2024-03-09T14:30:00.000000", body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, model.CodeNotFound, body["code"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/data-quality-check", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, model.CodeMethodNotAllowed, body["code"])

	// archive routes are not mounted without an archive
	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.CodeNotFound, body["code"])
}

func TestCheck_SampleMode(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	rec, body := postCheck(t, s,
		upload{FieldChecksFile, "checks.csv", sampleChecksCSV(t)},
		upload{FieldCodesFile, "codes.CSV", sampleCodesCSV(t)},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Data quality checks completed successfully", body["message"])
	assert.Equal(t, "2024-03-09T14:30:00.000000", body["timestamp"])

	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(7), summary["total_checks"])
	assert.Equal(t, float64(5), summary["passed_checks"])
	assert.Equal(t, float64(2), summary["failed_checks"])
	assert.Equal(t, float64(0), summary["warnings"])
	assert.Equal(t, float64(1), summary["tables_checked"])

	results := body["results"].(map[string]interface{})
	employees := results["employees"].([]interface{})
	require.Len(t, employees, 7)
	first := employees[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"field": "name", "check_type": "null_check", "status": "PASS",
		"message": "No NULL values found",
	}, first)

	failed := body["failed_fields_summary"].(map[string]interface{})["employees"].(map[string]interface{})
	assert.Equal(t, []interface{}{"blank_check"}, failed["name"])
	assert.Equal(t, []interface{}{"email_check"}, failed["email"])

	// per-request databases are removed
	matches, err := filepath.Glob(filepath.Join(s.opts.TempDir, "*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCheck_ConfiguredStore(t *testing.T) {
	conn := connector.OpenTestSQLite(t)
	require.NoError(t, seed.Seed(context.Background(), conn.DB()))

	s, err := New(Options{}, conn, nil, zap.NewNop())
	require.NoError(t, err)

	checks := "table_name,field_name,description," + strings.Join(configstore.CheckConfigHeader[3:], ",") + "\n" +
		"employees,phone,,0,0,0,0,0,0,0,0,0,0,1,0,0\n" +
		"payroll,amount,,1,0,0,0,0,0,0,0,0,0,0,0,0\n"
	rec, body := postCheck(t, s,
		upload{FieldChecksFile, "checks.csv", checks},
		upload{FieldCodesFile, "codes.csv", "table_name,field_name,valid_codes\n"},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	results := body["results"].(map[string]interface{})
	assert.NotContains(t, results, "payroll")
	employees := results["employees"].([]interface{})
	require.Len(t, employees, 1)
	assert.Equal(t, "Found 5 invalid phone numbers out of 5 values", employees[0].(map[string]interface{})["message"])
}

func TestCheck_HeaderOnlyConfig(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	rec, body := postCheck(t, s,
		upload{FieldChecksFile, "checks.csv", strings.Join(configstore.CheckConfigHeader, ",") + "\n"},
		upload{FieldCodesFile, "codes.csv", sampleCodesCSV(t)},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No data quality issues found", body["message"])
	assert.Equal(t, map[string]interface{}{}, body["results"])
	assert.Equal(t, float64(0), body["summary"].(map[string]interface{})["total_checks"])
	assert.NotContains(t, body, "failed_fields_summary")
}

func TestCheck_UploadValidation(t *testing.T) {
	s := newTestServer(t, Options{}, nil)
	checks, codes := sampleChecksCSV(t), sampleCodesCSV(t)

	tests := []struct {
		name   string
		files  []upload
		status int
		code   string
	}{
		{
			name:   "missing codes file",
			files:  []upload{{FieldChecksFile, "checks.csv", checks}},
			status: http.StatusBadRequest,
			code:   model.CodeMissingFiles,
		},
		{
			name:   "empty filename",
			files:  []upload{{FieldChecksFile, "", checks}, {FieldCodesFile, "codes.csv", codes}},
			status: http.StatusBadRequest,
			code:   model.CodeEmptyFilenames,
		},
		{
			name:   "wrong extension",
			files:  []upload{{FieldChecksFile, "checks.xlsx", checks}, {FieldCodesFile, "codes.csv", codes}},
			status: http.StatusBadRequest,
			code:   model.CodeInvalidFileType,
		},
		{
			name:   "malformed checks",
			files:  []upload{{FieldChecksFile, "checks.csv", "table_name,field_name\nemployees,name\n"}, {FieldCodesFile, "codes.csv", codes}},
			status: http.StatusBadRequest,
			code:   model.CodeConfigLoadError,
		},
		{
			name:   "malformed codes",
			files:  []upload{{FieldChecksFile, "checks.csv", checks}, {FieldCodesFile, "codes.csv", "table_name,codes\n"}},
			status: http.StatusBadRequest,
			code:   model.CodeSystemCodesLoadError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := postCheck(t, s, tt.files...)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCheck_NotMultipart(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/data-quality-check", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeMissingFiles, body["code"])
}

func TestCheck_TooLarge(t *testing.T) {
	s := newTestServer(t, Options{UploadMaxBytes: 1024}, nil)

	rec, body := postCheck(t, s,
		upload{FieldChecksFile, "checks.csv", strings.Repeat("x", 4096)},
		upload{FieldCodesFile, "codes.csv", "table_name,field_name,valid_codes\n"},
	)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, model.CodeFileTooLarge, body["code"])
}

func TestSampleConfigs(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/sample-configs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	configs := body["sample_configurations"].(map[string]interface{})
	checks := configs["data_quality_checks"].(map[string]interface{})
	assert.Equal(t, "CSV format for data quality checks configuration", checks["description"])
	assert.Len(t, checks["headers"], len(configstore.CheckConfigHeader))
	rows := checks["sample_data"].([]interface{})
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[1].(map[string]interface{})["email_check"])

	codes := configs["system_codes"].(map[string]interface{})
	assert.Equal(t, []interface{}{"table_name", "field_name", "valid_codes"}, codes["headers"])
	assert.Equal(t, "IT001,HR002,FIN003,MKT004,OPS005",
		codes["sample_data"].([]interface{})[0].(map[string]interface{})["valid_codes"])
}

func TestResultsEndpoints(t *testing.T) {
	ctx := context.Background()
	results, err := archive.Open(ctx, filepath.Join(t.TempDir(), "results.db"), zap.NewNop(),
		archive.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	defer results.Close()

	name, err := results.StoreQuery(ctx, "SELECT 1 AS one", [][]interface{}{{1}, {2}}, []string{"one"}, "smoke")
	require.NoError(t, err)

	s := newTestServer(t, Options{}, results)

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	entry := body["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, name, entry["table_name"])
	assert.Equal(t, "SELECT 1 AS one", entry["original_query"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/results/"+name+"?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"result_id", "one"}, data["columns"])
	assert.Equal(t, []interface{}{[]interface{}{"1", "1"}}, data["rows"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/results/"+name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Deleted stored result: "+name, body["message"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/results/"+name, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.CodeArchiveEntryNotFound, body["code"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, body["results"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Options{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/data-quality-check", nil)
	req.Header.Set("Origin", "http://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

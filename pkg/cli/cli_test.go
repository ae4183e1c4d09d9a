package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/data-quality/pkg/configstore"
	"github.com/David-Botos/data-quality/pkg/model"
	"github.com/David-Botos/data-quality/pkg/textgen"
)

// testEnv points the data store, archive and text generation settings at a temp dir
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DQ_DATASTORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "sample.db"))
	t.Setenv("RESULTS_DB_PATH", filepath.Join(dir, "results.db"))
	t.Setenv("TEXTGEN_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("TEXTGEN_BASE_URL", "http://127.0.0.1:1")
	return dir
}

// run executes one CLI invocation and returns everything it printed
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, ".env"), "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

// seeded seeds the sample database and writes the sample configurations
func seeded(t *testing.T) (dir, checks, codes string) {
	t.Helper()
	dir = testEnv(t)
	mustRun(t, dir, "seed")
	mustRun(t, dir, "init-config", dir)
	return dir, filepath.Join(dir, SampleChecksFile), filepath.Join(dir, SampleCodesFile)
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "init-config", filepath.Join(dir, "configs"))
	assert.Contains(t, out, SampleChecksFile)

	cfg, err := configstore.LoadCheckConfigFile(filepath.Join(dir, "configs", SampleChecksFile))
	require.NoError(t, err)
	assert.Len(t, cfg.Fields("employees"), 2)

	codes, err := configstore.LoadCodeAllowListFile(filepath.Join(dir, "configs", SampleCodesFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTIVE", "INACTIVE", "PENDING"}, codes.Codes("employees", "status"))
}

func TestSeed_RequiresSQLite(t *testing.T) {
	dir := testEnv(t)
	t.Setenv("DQ_DATASTORE_DRIVER", "snowflake")
	t.Setenv("SNOWFLAKE_ACCOUNT", "acct")
	t.Setenv("SNOWFLAKE_USER", "user")
	t.Setenv("SNOWFLAKE_PASSWORD", "pass")
	t.Setenv("SNOWFLAKE_DATABASE", "db")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "wh")

	_, err := run(t, dir, "seed")
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	dir, checks, codes := seeded(t)
	exports := filepath.Join(dir, "exports")

	out := mustRun(t, dir, "check", "--checks", checks, "--codes", codes, "--csv-dir", exports, "--archive", "both", "--description", "nightly")
	assert.Contains(t, out, "Table: employees")
	assert.Contains(t, out, "No NULL values found")
	assert.Contains(t, out, "Found 1 blank values out of 5 total rows")
	assert.Contains(t, out, "name: [blank_check]")
	assert.Contains(t, out, "email: [email_check]")
	assert.Regexp(t, regexp.MustCompile(`Total checks:\s+7`), out)
	assert.Regexp(t, regexp.MustCompile(`Stored \d+ failed check rows in failedchecks_\d{8}_v1`), out)
	assert.Regexp(t, regexp.MustCompile(`Stored 5 passed check rows in passedchecks_\d{8}_v1`), out)

	reports, err := filepath.Glob(filepath.Join(exports, "data_quality_report_*.csv"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	values, err := filepath.Glob(filepath.Join(exports, "failing_values_report_*.csv"))
	require.NoError(t, err)
	require.Len(t, values, 1)
	content, err := os.ReadFile(values[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "jane.smith@company")

	out = mustRun(t, dir, "archive", "list")
	assert.Contains(t, out, "failedchecks_")
	assert.Contains(t, out, "passedchecks_")
	assert.Contains(t, out, "nightly")
}

func TestCheck_FailedOnlyAndTable(t *testing.T) {
	dir, checks, codes := seeded(t)

	out := mustRun(t, dir, "check", "--checks", checks, "--codes", codes, "--table", "employees", "--failed-only")
	assert.Contains(t, out, "blank_check")
	assert.NotContains(t, out, "No NULL values found")

	_, err := run(t, dir, "check", "--checks", checks, "--table", "payroll")
	assert.Error(t, err)
}

func TestCheck_Flags(t *testing.T) {
	dir, checks, _ := seeded(t)

	_, err := run(t, dir, "check", "--checks", checks, "--archive", "everything")
	assert.ErrorContains(t, err, "invalid --archive")

	_, err = run(t, dir, "check")
	assert.Error(t, err)

	_, err = run(t, dir, "check", "--checks", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestSamples(t *testing.T) {
	dir, _, codes := seeded(t)

	out := mustRun(t, dir, "samples", "--table", "employees", "--field", "email", "--check", "email_check")
	assert.Contains(t, out, "jane.smith@company")
	assert.NotContains(t, out, "john.doe@company.com")

	out = mustRun(t, dir, "samples", "--codes", codes, "--table", "employees", "--field", "department_code", "--check", "system_codes_check")
	assert.Contains(t, out, "INVALID")

	_, err := run(t, dir, "samples", "--table", "employees", "--field", "nope", "--check", "email_check")
	assert.ErrorIs(t, err, model.ErrColumnMissing)

	_, err = run(t, dir, "samples", "--table", "employees", "--field", "email", "--check", "bogus_check")
	assert.Error(t, err)
}

func TestQueryAndArchive(t *testing.T) {
	dir, _, _ := seeded(t)

	out := mustRun(t, dir, "query", "SELECT id, name FROM employees ORDER BY id", "--store", "--description", "roster")
	assert.Contains(t, out, "John Doe")
	assert.Contains(t, out, "5 rows")

	name := regexp.MustCompile(`query_result_\d{8}_v1`).FindString(out)
	require.NotEmpty(t, name, out)

	out = mustRun(t, dir, "archive", "view", name, "--limit", "2")
	assert.Contains(t, out, "roster")
	assert.Contains(t, out, "SELECT id, name FROM employees ORDER BY id")
	assert.Contains(t, out, "Jane Smith")
	assert.NotContains(t, out, "Mike Davis")
	assert.Contains(t, out, "showing 2 of 5 rows")

	out = mustRun(t, dir, "archive", "delete", name)
	assert.Contains(t, out, "Deleted stored result: "+name)

	_, err := run(t, dir, "archive", "view", name)
	assert.ErrorIs(t, err, model.ErrArchiveNotFound)

	out = mustRun(t, dir, "query", "SELECT * FROM employees WHERE id < 0", "--store")
	assert.Contains(t, out, "Query returned no rows")
	assert.Contains(t, out, "Nothing to store")
}

func TestSchemaAndMapping(t *testing.T) {
	dir, _, _ := seeded(t)

	out := mustRun(t, dir, "schema")
	assert.Contains(t, out, "Table: employees")
	assert.Contains(t, out, "department_code")

	out = mustRun(t, dir, "schema", "--masked")
	assert.Contains(t, out, "Table: table_1")
	assert.NotContains(t, out, "employees")
	assert.NotContains(t, out, "department_code")

	out = mustRun(t, dir, "mapping")
	assert.Contains(t, out, "employees")
	assert.Contains(t, out, "table_1")
	assert.Contains(t, out, "col_8")
}

func TestCredential(t *testing.T) {
	dir := testEnv(t)

	out := mustRun(t, dir, "credential", "show")
	assert.Contains(t, out, "No API key configured")

	mustRun(t, dir, "credential", "set", "  gsk_abcdefghijkl  ")
	values, err := godotenv.Read(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "gsk_abcdefghijkl", values[APIKeyEnv])

	t.Setenv(APIKeyEnv, "gsk_abcdefghijkl")
	out = mustRun(t, dir, "credential", "show")
	assert.Contains(t, out, "gsk_********ijkl")
	assert.NotContains(t, out, "abcdefgh")

	_, err = run(t, dir, "credential", "set", "   ")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	dir, _, _ := seeded(t)

	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []textgen.Message `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		sent = req.Messages[0].Content + "\n" + req.Messages[1].Content
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` +
			"```sql\\nSELECT col_2 FROM table_1 WHERE col_1 = 1;\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEXTGEN_BASE_URL", srv.URL)
	t.Setenv(APIKeyEnv, "secret")

	out := mustRun(t, dir, "generate", "name of the employees row with id 1", "--execute", "--show-masked")
	assert.Contains(t, out, "SELECT name FROM employees WHERE id = 1;")
	assert.Contains(t, out, "SELECT col_2 FROM table_1 WHERE col_1 = 1;")
	assert.Contains(t, out, "John Doe")

	assert.NotContains(t, sent, "employees")
	assert.NotContains(t, sent, "department_code")
	assert.Contains(t, sent, "table_1")
}

func TestGenerate_NoAPIKey(t *testing.T) {
	dir := testEnv(t)

	_, err := run(t, dir, "generate", "anything")
	assert.ErrorIs(t, err, textgen.ErrNoAPIKey)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "****", redact("abcd"))
	assert.Equal(t, "abcd****ijkl", redact("abcdefghijkl"))
}

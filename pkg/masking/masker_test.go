package masking

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
)

func employeesSchema() []model.TableMetadata {
	return []model.TableMetadata{
		{Table: "employees", Columns: []model.Column{
			{Name: "id", DataType: "INTEGER"},
			{Name: "name", DataType: "TEXT"},
			{Name: "email", DataType: "TEXT"},
		}},
		{Table: "departments", Columns: []model.Column{
			{Name: "id", DataType: "INTEGER"},
			{Name: "department_code", DataType: "TEXT"},
		}},
	}
}

func TestTokens_SequentialAndIdempotent(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())

	assert.Equal(t, "table_1", m.MaskTable("employees"))
	assert.Equal(t, "table_2", m.MaskTable("departments"))
	assert.Equal(t, "table_1", m.MaskTable("employees"))

	assert.Equal(t, "col_1", m.MaskColumn("employees", "id"))
	assert.Equal(t, "col_2", m.MaskColumn("employees", "email"))
	assert.Equal(t, "col_1", m.MaskColumn("departments", "code"))
	assert.Equal(t, "col_2", m.MaskColumn("employees", "email"))

	// an unseen table is registered by its first column
	assert.Equal(t, "col_1", m.MaskColumn("payroll", "amount"))
	assert.Equal(t, "table_3", m.MaskTable("payroll"))
}

func TestUnmask_PassThrough(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskColumn("employees", "email")

	assert.Equal(t, "employees", m.UnmaskTable("table_1"))
	assert.Equal(t, "table_9", m.UnmaskTable("table_9"))

	assert.Equal(t, "email", m.UnmaskColumn("employees", "col_1"))
	assert.Equal(t, "email", m.UnmaskColumn("table_1", "col_1"))
	assert.Equal(t, "col_7", m.UnmaskColumn("employees", "col_7"))
	assert.Equal(t, "col_1", m.UnmaskColumn("ghosts", "col_1"))
}

func TestText_RoundTrip(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskSchema(employeesSchema())

	text := "SELECT name, email FROM employees WHERE id = 1"
	masked := m.MaskText(text)
	assert.Equal(t, "SELECT col_2, col_3 FROM table_1 WHERE col_1 = 1", masked)
	assert.Equal(t, text, m.UnmaskText(masked))

	// tokens back to identifiers and back again
	sql := "SELECT col_2 FROM table_1 JOIN table_2 ON table_1.col_1 = table_2.col_1"
	assert.Equal(t, sql, m.MaskText(m.UnmaskText(sql)))
}

func TestText_WholeWordCaseInsensitive(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskSchema(employeesSchema())

	assert.Equal(t, "count col_2 in table_1", m.MaskText("count NAME in Employees"))
	assert.Equal(t, "names from employees_archive", m.MaskText("names from employees_archive"))
	assert.Equal(t, "show col_2 where table_10 is", m.MaskText("show department_code where table_10 is"))
	assert.Equal(t, "table_10 and col_20", m.UnmaskText("table_10 and col_20"))
}

func TestText_InvalidUTF8NameStillMasksOthers(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskTable("employees")
	m.MaskColumn("employees", "salary")
	m.MaskColumn("employees", "bad\xffname")

	assert.Equal(t, "select col_1 from table_1", m.MaskText("select salary from employees"))
	assert.Equal(t, "select col_2, col_1 from table_1", m.MaskText("select bad\xffname, salary from employees"))
	assert.Equal(t, "select bad\xfename from table_1", m.MaskText("select bad\xfename from employees"))
	assert.Equal(t, "select bad\xffname, salary from employees", m.UnmaskText("select col_2, col_1 from table_1"))
}

func TestText_NonASCIINames(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskTable("café")
	m.MaskColumn("café", "prénom")
	m.MaskColumn("café", "größe")

	assert.Equal(t, "select col_1 from table_1", m.MaskText("select prénom from café"))
	assert.Equal(t, "select col_1, col_2 from table_1", m.MaskText("select PRÉNOM, größe from CAFÉ"))
	assert.Equal(t, "cafés and écafé stay", m.MaskText("cafés and écafé stay"))
	assert.Equal(t, "(table_1.col_1)", m.MaskText("(café.prénom)"))
	assert.Equal(t, "select prénom from café", m.UnmaskText("select col_1 from table_1"))
}

func TestText_AdjacentOccurrences(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskTable("employees")

	assert.Equal(t, "table_1 table_1,table_1", m.MaskText("employees Employees,EMPLOYEES"))
}

func TestMaskSchema(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())

	original, masked := m.MaskSchema(employeesSchema())
	assert.Equal(t,
		"Table: employees (id INTEGER, name TEXT, email TEXT)\n"+
			"Table: departments (id INTEGER, department_code TEXT)", original)
	assert.Equal(t,
		"Table: table_1 (col_1 INTEGER, col_2 TEXT, col_3 TEXT)\n"+
			"Table: table_2 (col_1 INTEGER, col_2 TEXT)", masked)

	// rebuilding the schema keeps the tokens
	_, again := m.MaskSchema(employeesSchema())
	assert.Equal(t, masked, again)

	mappings := m.Mappings()
	require.Len(t, mappings, 2)
	assert.Equal(t, "departments", mappings[1].Original)
	assert.Equal(t, []ColumnMapping{
		{Original: "id", Token: "col_1"},
		{Original: "department_code", Token: "col_2"},
	}, mappings[1].Columns)
}

func TestText_ColumnTokenSharedAcrossTables(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskSchema(employeesSchema())

	// col_2 belongs to both tables, the first registered table wins
	assert.Equal(t, "SELECT name FROM departments", m.UnmaskText("SELECT col_2 FROM table_2"))
}

func TestText_CollisionNotGuarded(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskTable("orders")
	m.MaskColumn("orders", "table_1")

	text := "SELECT table_1 FROM orders"
	masked := m.MaskText(text)
	assert.Equal(t, "SELECT col_1 FROM col_1", masked)
	assert.NotEqual(t, text, m.UnmaskText(masked))
}

func TestReset(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())
	m.MaskTable("employees")
	m.Reset()

	assert.Empty(t, m.Mappings())
	assert.Equal(t, "table_1", m.MaskTable("departments"))
	assert.Equal(t, "employees", m.MaskText("employees"))
}

func TestConcurrentMasking(t *testing.T) {
	m := NewIdentifierMasker(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.MaskColumn(fmt.Sprintf("t%d", j%5), fmt.Sprintf("c%d", j))
			}
		}()
	}
	wg.Wait()

	mappings := m.Mappings()
	require.Len(t, mappings, 5)
	seen := make(map[string]bool)
	for _, tm := range mappings {
		assert.False(t, seen[tm.Token])
		seen[tm.Token] = true
		assert.Len(t, tm.Columns, 4)
	}
}

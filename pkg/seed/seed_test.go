package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/data-quality/pkg/connector"
)

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := connector.OpenTestSQLite(t)

	require.NoError(t, Seed(ctx, conn.DB()))
	require.NoError(t, Seed(ctx, conn.DB()))

	var n int
	require.NoError(t, conn.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&n))
	assert.Equal(t, len(Employees()), n)

	var email string
	require.NoError(t, conn.DB().QueryRowContext(ctx, "SELECT email FROM employees WHERE id = 2").Scan(&email))
	assert.Equal(t, "jane.smith@company", email)
}

func TestTempDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := TempDatabase(ctx, dir)
	require.NoError(t, err)
	b, err := TempDatabase(ctx, dir)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	db, err := connector.OpenSQLite(a, connector.SQLiteRead, 1)
	require.NoError(t, err)
	defer db.Close()

	conn := connector.NewSQLiteConnectorFromDB(db, a)
	meta, err := conn.DescribeTable(ctx, "employees")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"id", "name", "email", "phone", "department_code", "salary", "hire_date", "status"},
		meta.ColumnNames())
}

package connector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/config"
)

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), "append", 0)
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	write := sqliteDSN("/tmp/a.db", SQLiteWrite)
	read := sqliteDSN("/tmp/a.db", SQLiteRead)

	assert.Contains(t, write, "_txlock=immediate")
	assert.NotContains(t, read, "_txlock")
	assert.Contains(t, read, "_journal_mode=WAL")
	assert.Contains(t, read, "_busy_timeout=5000")
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"Employees"`, QuoteIdentifier("Employees"))
	assert.Equal(t, `"odd""name"`, QuoteIdentifier(`odd"name`))
}

func TestSQLiteConnector_Catalog(t *testing.T) {
	ctx := context.Background()
	conn := OpenTestSQLite(t)

	_, err := conn.DB().ExecContext(ctx, `CREATE TABLE employees (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		salary REAL
	)`)
	require.NoError(t, err)
	_, err = conn.DB().ExecContext(ctx, `CREATE TABLE audit (event TEXT)`)
	require.NoError(t, err)

	exists, err := conn.TableExists(ctx, "employees")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = conn.TableExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	meta, err := conn.DescribeTable(ctx, "employees")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "salary"}, meta.ColumnNames())
	assert.Equal(t, []string{"id"}, meta.PrimaryKeys)
	assert.False(t, meta.GetColumnByName("name").Nullable)
	assert.True(t, meta.GetColumnByName("salary").Nullable)

	tables, err := conn.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "employees"}, tables)

	all, err := DescribeAll(ctx, conn)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Table: audit (event TEXT)", all[0].Describe())

	assert.NoError(t, conn.Validate())
}

func TestSQLiteConnector_QueryWithTimeout(t *testing.T) {
	ctx := context.Background()
	conn := OpenTestSQLite(t)

	_, err := conn.ExecWithTimeout(ctx, "CREATE TABLE t (v TEXT)", time.Second)
	require.NoError(t, err)
	_, err = conn.ExecWithTimeout(ctx, "INSERT INTO t (v) VALUES (?), (?)", time.Second, "a", "b")
	require.NoError(t, err)

	rows, err := conn.QueryWithTimeout(ctx, "SELECT v FROM t ORDER BY v", time.Second)
	require.NoError(t, err)

	var got []string
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		got = append(got, v)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestConnectorFactory_SQLite(t *testing.T) {
	cfg := &config.DataStoreConfig{
		Driver: config.DriverSQLite,
		SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "store.db")},
	}

	conn, err := NewConnectorFactory(cfg, zap.NewNop()).Create(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, config.DriverSQLite, conn.Driver())
	assert.Equal(t, `"employees"`, conn.QuoteTable("employees"))
}

func TestConnectorFactory_UnknownDriver(t *testing.T) {
	cfg := &config.DataStoreConfig{Driver: "mssql"}

	_, err := NewConnectorFactory(cfg, zap.NewNop()).Create(context.Background())
	assert.Error(t, err)
}

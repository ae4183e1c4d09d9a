package connector

import (
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens an empty SQLite data store in a temp directory,
// closed automatically when the test ends.
func OpenTestSQLite(t *testing.T) *SQLiteConnector {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := OpenSQLite(path, SQLiteRead, 4)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewSQLiteConnectorFromDB(db, path)
}

// pkg/connector/sqlite.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/config"
	"github.com/David-Botos/data-quality/pkg/model"
)

// SQLite DSN parameters
const (
	sqliteBusyTimeout = "5000"
	sqliteSynchronous = "NORMAL"
	sqliteJournalMode = "WAL"
)

// SQLite pool modes
const (
	SQLiteRead  = "read"
	SQLiteWrite = "write"
)

// SQLiteConnector implements the DatabaseConnector interface for SQLite files
type SQLiteConnector struct {
	db     *sql.DB
	logger *zap.Logger
	path   string
}

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// A write pool holds a single connection and takes write locks at BEGIN
// (_txlock=immediate). A read pool holds maxOpen connections (0 means 4).
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != SQLiteRead && mode != SQLiteWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, SQLiteRead, SQLiteWrite)
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite (%s): %w", mode, err)
	}

	if mode == SQLiteWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = 4
	}
	ApplyConnectionSettings(db, maxOpen, maxOpen, time.Hour, 0)

	if err := PingWithTimeout(context.Background(), db, 5*time.Second); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite (%s): %w", mode, err)
	}

	return db, nil
}

func sqliteDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", sqliteJournalMode)
	params.Set("_busy_timeout", sqliteBusyTimeout)
	params.Set("_synchronous", sqliteSynchronous)
	params.Set("_foreign_keys", "on")
	if mode == SQLiteWrite {
		params.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + params.Encode()
}

// NewSQLiteConnector opens the configured SQLite file as the data store
func NewSQLiteConnector(ctx context.Context, cfg *config.SQLiteConfig) (*SQLiteConnector, error) {
	logger := zap.L().Named("sqlite-connector")

	logger.Info("Opening SQLite database", zap.String("path", cfg.Path))

	db, err := OpenSQLite(cfg.Path, SQLiteRead, cfg.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	return NewSQLiteConnectorFromDB(db, cfg.Path), nil
}

// NewSQLiteConnectorFromDB wraps an already opened SQLite pool
func NewSQLiteConnectorFromDB(db *sql.DB, path string) *SQLiteConnector {
	connector := &SQLiteConnector{
		db:     db,
		logger: zap.L().Named("sqlite-connector"),
		path:   path,
	}
	LogConnectionStats(connector.logger, path, db)
	return connector
}

// DB returns the underlying database connection
func (c *SQLiteConnector) DB() *sql.DB {
	return c.db
}

// Path returns the database file path
func (c *SQLiteConnector) Path() string {
	return c.path
}

// Driver names the backend
func (c *SQLiteConnector) Driver() string {
	return config.DriverSQLite
}

// Validate verifies the SQLite file is readable
func (c *SQLiteConnector) Validate() error {
	var version string
	if err := c.db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to query SQLite version: %w", err)
	}

	var tables int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&tables); err != nil {
		return fmt.Errorf("failed to read SQLite catalog: %w", err)
	}

	c.logger.Info("Connected to SQLite",
		zap.String("path", c.path),
		zap.String("version", version),
		zap.Int("tables", tables))

	return nil
}

// Close closes the database connection
func (c *SQLiteConnector) Close() error {
	c.logger.Info("Closing SQLite connection", zap.String("path", c.path))
	LogConnectionStats(c.logger, c.path, c.db)
	return c.db.Close()
}

// QuoteTable returns the quoted table name
func (c *SQLiteConnector) QuoteTable(table string) string {
	return QuoteIdentifier(table)
}

// TableExists checks sqlite_master for a table with the exact name
func (c *SQLiteConnector) TableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if table exists: %w", err)
	}
	return count > 0, nil
}

// DescribeTable reads PRAGMA table_info
func (c *SQLiteConnector) DescribeTable(ctx context.Context, table string) (*model.TableMetadata, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	meta := &model.TableMetadata{Table: table}
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		meta.Columns = append(meta.Columns, model.Column{
			Name:         name,
			DataType:     dataType,
			Nullable:     notNull == 0,
			IsPrimaryKey: pk > 0,
		})
		if pk > 0 {
			meta.PrimaryKeys = append(meta.PrimaryKeys, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return meta, nil
}

// ListTables returns user tables, skipping SQLite internals
func (c *SQLiteConnector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return scanStrings(rows)
}

// QueryWithTimeout executes a query with a timeout
func (c *SQLiteConnector) QueryWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*Rows, error) {
	return queryWithTimeout(ctx, c.db, query, timeout, args...)
}

// ExecWithTimeout executes a statement with a timeout
func (c *SQLiteConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	return execWithTimeout(ctx, c.db, query, timeout, args...)
}

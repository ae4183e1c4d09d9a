// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
)

// DatabaseConnector defines the interface for database connectors
type DatabaseConnector interface {
	// DB returns the underlying database connection
	DB() *sql.DB

	// Validate verifies the connection and permissions
	Validate() error

	// Close closes the connection and releases resources
	Close() error

	// QueryWithTimeout executes a query with a timeout; the timeout is released when the rows are closed
	QueryWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (*Rows, error)

	// ExecWithTimeout executes a statement with a timeout
	ExecWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (sql.Result, error)

	// Driver names the backend: sqlite, postgres or snowflake
	Driver() string

	// QuoteTable returns the quoted, schema-qualified name of a table
	QuoteTable(table string) string

	// TableExists reports whether a base table with the exact name exists
	TableExists(ctx context.Context, table string) (bool, error)

	// DescribeTable returns the columns of a table in ordinal order
	DescribeTable(ctx context.Context, table string) (*model.TableMetadata, error)

	// ListTables returns the user tables of the configured schema, sorted by name
	ListTables(ctx context.Context) ([]string, error)
}

// Rows is a result set whose query context lives until Close
type Rows struct {
	*sql.Rows
	cancel context.CancelFunc
}

// Close closes the result set and releases its timeout
func (r *Rows) Close() error {
	err := r.Rows.Close()
	r.cancel()
	return err
}

func queryWithTimeout(
	ctx context.Context,
	db *sql.DB,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*Rows, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	rows, err := db.QueryContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Rows{Rows: rows, cancel: cancel}, nil
}

func execWithTimeout(
	ctx context.Context,
	db *sql.DB,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.ExecContext(queryCtx, query, args...)
}

// QuoteIdentifier double-quotes an identifier, doubling embedded quotes.
// Case is preserved so configured names match the catalog exactly.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DescribeAll returns metadata for every table the connector lists
func DescribeAll(ctx context.Context, c DatabaseConnector) ([]model.TableMetadata, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	out := make([]model.TableMetadata, 0, len(tables))
	for _, table := range tables {
		meta, err := c.DescribeTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
		}
		out = append(out, *meta)
	}
	return out, nil
}

// scanStrings drains a single-column result set
func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
}

// GetConnectionStats returns connection pool statistics for logging
func GetConnectionStats(db *sql.DB) ConnStats {
	stats := db.Stats()
	return ConnStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
	}
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := GetConnectionStats(db)
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConns),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.PingContext(pingCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-pingCtx.Done():
		return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
	}
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sql.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}

// pkg/connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/config"
	"github.com/David-Botos/data-quality/pkg/model"
)

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL
type PostgresConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector.
// cfg.Driver selects the database/sql driver: "pgx" (jackc/pgx stdlib) or "postgres" (lib/pq).
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig) (*PostgresConnector, error) {
	logger := zap.L().Named("postgres-connector")

	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}

	// Log connection attempt
	logger.Info("Connecting to PostgreSQL",
		zap.String("driver", driver),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("user", cfg.User))

	// Open database connection
	connStr := cfg.ConnectionString()
	if cfg.StatementTimeout > 0 {
		// Runtime parameters in the DSN apply to every pooled connection
		connStr += fmt.Sprintf(" statement_timeout=%d", cfg.StatementTimeout.Milliseconds())
	}
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	connector := &PostgresConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	LogConnectionStats(logger, cfg.Database, db)
	return connector, nil
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sql.DB {
	return c.db
}

// Driver names the backend
func (c *PostgresConnector) Driver() string {
	return config.DriverPostgres
}

// Validate verifies the PostgreSQL connection and read access to the schema
func (c *PostgresConnector) Validate() error {
	// Check database version
	var version string
	err := c.db.QueryRow("SELECT version()").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	c.logger.Info("Connected to PostgreSQL", zap.String("version", version))

	var exists bool
	err = c.db.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		c.schema(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to verify schema %s: %w", c.schema(), err)
	}
	if !exists {
		return fmt.Errorf("schema %s does not exist", c.schema())
	}

	var usage bool
	err = c.db.QueryRow("SELECT has_schema_privilege($1, 'USAGE')", c.schema()).Scan(&usage)
	if err != nil {
		return fmt.Errorf("permission validation failed: %w", err)
	}
	if !usage {
		return fmt.Errorf("permission validation failed: no USAGE on schema %s", c.schema())
	}

	c.logger.Info("PostgreSQL connection validated",
		zap.String("database", c.cfg.Database),
		zap.String("schema", c.schema()),
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port))

	return nil
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

func (c *PostgresConnector) schema() string {
	if c.cfg.Schema == "" {
		return "public"
	}
	return c.cfg.Schema
}

// QuoteTable returns the schema-qualified table name
func (c *PostgresConnector) QuoteTable(table string) string {
	return pq.QuoteIdentifier(c.schema()) + "." + pq.QuoteIdentifier(table)
}

// TableExists checks information_schema for a base table
func (c *PostgresConnector) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)
	`

	err := c.db.QueryRowContext(ctx, query, c.schema(), table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if table exists: %w", err)
	}
	return exists, nil
}

// DescribeTable reads columns and primary keys from information_schema
func (c *PostgresConnector) DescribeTable(ctx context.Context, table string) (*model.TableMetadata, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, c.schema(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	meta := &model.TableMetadata{Schema: c.schema(), Table: table}
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		meta.Columns = append(meta.Columns, model.Column{
			Name:     name,
			DataType: dataType,
			Nullable: nullable == "YES",
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	pkRows, err := c.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, c.schema(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	meta.PrimaryKeys, err = scanStrings(pkRows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan primary key: %w", err)
	}
	for _, pk := range meta.PrimaryKeys {
		if col := meta.GetColumnByName(pk); col != nil {
			col.IsPrimaryKey = true
		}
	}

	return meta, nil
}

// ListTables returns the base tables of the configured schema
func (c *PostgresConnector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, c.schema())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return scanStrings(rows)
}

// ExecWithTimeout executes a query with a timeout
func (c *PostgresConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	return execWithTimeout(ctx, c.db, query, timeout, args...)
}

// QueryWithTimeout executes a query with a timeout
func (c *PostgresConnector) QueryWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*Rows, error) {
	return queryWithTimeout(ctx, c.db, query, timeout, args...)
}

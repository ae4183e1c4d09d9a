// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// Supported data-store drivers
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverSnowflake = "snowflake"
)

// DataStoreConfig selects the data store under validation.
// Only the selected backend's section is populated.
type DataStoreConfig struct {
	Driver    string
	SQLite    *SQLiteConfig
	Postgres  *PostgresConfig
	Snowflake *SnowflakeConfig
}

// SQLiteConfig holds SQLite file settings
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
}

// LoadDataStoreConfig loads the backend named by DQ_DATASTORE_DRIVER (default sqlite)
func LoadDataStoreConfig() (*DataStoreConfig, error) {
	driver := strings.ToLower(getEnv("DQ_DATASTORE_DRIVER", DriverSQLite))
	cfg := &DataStoreConfig{Driver: driver}

	switch driver {
	case DriverSQLite:
		cfg.SQLite = LoadSQLiteConfig()
	case DriverPostgres:
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
		}
		cfg.Postgres = pgConfig
	case DriverSnowflake:
		sfConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
		}
		cfg.Snowflake = sfConfig
	default:
		return nil, fmt.Errorf("unsupported data store driver %q", driver)
	}

	return cfg, nil
}

// LoadSQLiteConfig loads SQLite configuration from environment variables
func LoadSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         getEnv("SQLITE_PATH", "sample.db"),
		MaxOpenConns: getEnvAsInt("SQLITE_MAX_OPEN_CONNS", 4),
	}
}

// Validate checks that the selected backend is configured
func (c *DataStoreConfig) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLite == nil || c.SQLite.Path == "" {
			return errors.New("SQLite path is required")
		}
	case DriverPostgres:
		if c.Postgres == nil {
			return errors.New("PostgreSQL configuration is required")
		}
		if c.Postgres.Driver != "pgx" && c.Postgres.Driver != "postgres" {
			return fmt.Errorf("unsupported PostgreSQL driver %q", c.Postgres.Driver)
		}
	case DriverSnowflake:
		if c.Snowflake == nil {
			return errors.New("Snowflake configuration is required")
		}
	default:
		return fmt.Errorf("unsupported data store driver %q", c.Driver)
	}
	return nil
}

// Name identifies the configured database in logs
func (c *DataStoreConfig) Name() string {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLite != nil {
			return c.SQLite.Path
		}
	case DriverPostgres:
		if c.Postgres != nil {
			return c.Postgres.Database
		}
	case DriverSnowflake:
		if c.Snowflake != nil {
			return c.Snowflake.Database
		}
	}
	return c.Driver
}

// SnowflakeConfig holds Snowflake connection parameters
type SnowflakeConfig struct {
	User          string
	Password      string
	Account       string
	Warehouse     string
	Database      string
	Schema        string // Default: PUBLIC
	Role          string
	Authenticator gosnowflake.AuthType

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Query timeout
	QueryTimeout time.Duration
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Driver   string // database/sql driver name: pgx or postgres (lib/pq)
	Schema   string // Default: public
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

// LoadSnowflakeConfig loads Snowflake configuration from environment variables
func LoadSnowflakeConfig() (*SnowflakeConfig, error) {
	user := os.Getenv("SNOWFLAKE_USER")
	if user == "" {
		return nil, errors.New("SNOWFLAKE_USER environment variable is required")
	}

	password := os.Getenv("SNOWFLAKE_PASSWORD")
	if password == "" {
		return nil, errors.New("SNOWFLAKE_PASSWORD environment variable is required")
	}

	account := os.Getenv("SNOWFLAKE_ACCOUNT")
	if account == "" {
		return nil, errors.New("SNOWFLAKE_ACCOUNT environment variable is required")
	}

	warehouse := os.Getenv("SNOWFLAKE_WAREHOUSE")
	if warehouse == "" {
		return nil, errors.New("SNOWFLAKE_WAREHOUSE environment variable is required")
	}

	if os.Getenv("SNOWFLAKE_DATABASE") == "" {
		return nil, errors.New("SNOWFLAKE_DATABASE environment variable is required")
	}

	// Convert authenticator string to proper type
	authString := getEnv("SNOWFLAKE_AUTHENTICATOR", "snowflake")
	var authenticator gosnowflake.AuthType
	switch authString {
	case "snowflake":
		authenticator = gosnowflake.AuthTypeSnowflake
	case "oauth":
		authenticator = gosnowflake.AuthTypeOAuth
	case "externalbrowser":
		authenticator = gosnowflake.AuthTypeExternalBrowser
	case "username_password_mfa":
		authenticator = gosnowflake.AuthTypeUsernamePasswordMFA
	case "jwt":
		authenticator = gosnowflake.AuthTypeJwt
	case "token":
		authenticator = gosnowflake.AuthTypeTokenAccessor
	case "okta":
		authenticator = gosnowflake.AuthTypeOkta
	default:
		authenticator = gosnowflake.AuthTypeSnowflake
	}

	cfg := &SnowflakeConfig{
		User:          user,
		Password:      password,
		Account:       account,
		Warehouse:     warehouse,
		Database:      getEnv("SNOWFLAKE_DATABASE", ""),
		Schema:        strings.ToUpper(getEnv("SNOWFLAKE_SCHEMA", "PUBLIC")),
		Role:          getEnv("SNOWFLAKE_ROLE", ""),
		Authenticator: authenticator,

		MaxOpenConns:    getEnvAsInt("SNOWFLAKE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("SNOWFLAKE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_LIFETIME_SECONDS", 600)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_IDLE_TIME_SECONDS", 300)) * time.Second,
		QueryTimeout:    time.Duration(getEnvAsInt("SNOWFLAKE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

// LoadPostgresConfig loads PostgreSQL configuration from environment variables
func LoadPostgresConfig() (*PostgresConfig, error) {
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return nil, errors.New("POSTGRES_USER environment variable is required")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return nil, errors.New("POSTGRES_PASSWORD environment variable is required")
	}

	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		return nil, errors.New("POSTGRES_DB environment variable is required")
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnvAsInt("POSTGRES_PORT", 5432)

	cfg := &PostgresConfig{
		Driver:   strings.ToLower(getEnv("POSTGRES_DRIVER", "pgx")),
		Schema:   getEnv("POSTGRES_SCHEMA", "public"),
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxOpenConns:     getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,
		StatementTimeout: time.Duration(getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

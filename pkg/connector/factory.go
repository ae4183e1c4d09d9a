// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.DataStoreConfig
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.DataStoreConfig, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Create opens and validates the connector for the configured driver
func (f *ConnectorFactory) Create(ctx context.Context) (DatabaseConnector, error) {
	f.logger.Info("Creating data store connector",
		zap.String("driver", f.cfg.Driver),
		zap.String("database", f.cfg.Name()))

	var (
		conn DatabaseConnector
		err  error
	)
	switch f.cfg.Driver {
	case config.DriverSQLite:
		conn, err = NewSQLiteConnector(ctx, f.cfg.SQLite)
	case config.DriverPostgres:
		conn, err = NewPostgresConnector(ctx, f.cfg.Postgres)
	case config.DriverSnowflake:
		conn, err = NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	default:
		return nil, fmt.Errorf("unsupported data store driver %q", f.cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s connector: %w", f.cfg.Driver, err)
	}

	if err := conn.Validate(); err != nil {
		conn.Close() // Clean up the connection if validation fails
		return nil, fmt.Errorf("failed to validate %s connector: %w", f.cfg.Driver, err)
	}

	return conn, nil
}

package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Driver names accepted by Open
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open returns the backend selected by driver
func Open(ctx context.Context, driver, databaseURL, sqlitePath string, logger *zap.Logger) (Store, error) {
	switch driver {
	case DriverPostgres, "":
		logger.Info("Connecting to PostgreSQL database")
		return ConnectPostgres(ctx, databaseURL, 10, logger)
	case DriverSQLite:
		logger.Info("Opening SQLite database", zap.String("path", sqlitePath))
		return OpenSQLite(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

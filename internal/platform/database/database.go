package database

import (
	"context"
	"fmt"

	"sorteos-backend/internal/common/config"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/platform/migrations"
	"sorteos-backend/internal/platform/postgres"
	"sorteos-backend/internal/platform/sqldb"
	"sorteos-backend/internal/platform/sqlite"
)

// Store is an opened storage adapter.
type Store interface {
	DB() *sqldb.DB
	HealthCheck(ctx context.Context) error
	Close() error
}

// Open connects the configured backend. This is the only place that knows
// which adapter is in use.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = postgres.NewClient(ctx, cfg)
	case config.DriverSQLite:
		store, err = sqlite.NewClient(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(store.DB()); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Migrate applies pending migrations for the store's dialect.
func Migrate(db *sqldb.DB) error {
	dialect := db.Dialect().Name()
	if err := migrations.Up(db.SQL(), dialect); err != nil {
		return err
	}
	logger.Info().Str("dialect", dialect).Msg("Database migrations applied")
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	modernc "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"sorteos-backend/internal/common/config"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/platform/sqldb"
)

// Dialect adapts queries to SQLite. SQLite serialises writers, so there is
// no row-locking clause.
type Dialect struct{}

func (Dialect) Name() string { return config.DriverSQLite }

func (Dialect) Rebind(query string) string { return query }

func (Dialect) ForUpdate() string { return "" }

func (Dialect) IsUniqueViolation(err error) bool {
	var sqErr *modernc.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	switch sqErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

type Client struct {
	db *sqldb.DB
}

// DSN builds a modernc.org/sqlite DSN with foreign keys enforced.
func DSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func NewClient(ctx context.Context, path string) (*Client, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// one connection keeps transactions and writers strictly serialised
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite client initialized")

	return &Client{db: sqldb.New(db, Dialect{})}, nil
}

func (c *Client) DB() *sqldb.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.Ping(ctx)
}

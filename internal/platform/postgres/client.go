package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sorteos-backend/internal/common/config"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/platform/sqldb"
)

// Dialect adapts queries to PostgreSQL.
type Dialect struct{}

func (Dialect) Name() string { return config.DriverPostgres }

func (Dialect) Rebind(query string) string { return sqldb.RebindDollar(query) }

func (Dialect) ForUpdate() string { return " FOR UPDATE" }

const uniqueViolation = "23505"

func (Dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type Client struct {
	db *sqldb.DB
}

func NewClient(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("PostgreSQL client initialized")

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

func (c *Client) Stats() sql.DBStats {
	return c.db.SQL().Stats()
}

package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the per-backend adapter. Queries are written once with '?'
// placeholders; the dialect rewrites them and supplies backend-only clauses.
type Dialect interface {
	// Name is the driver/migration name, e.g. "postgres" or "sqlite".
	Name() string
	Rebind(query string) string
	// ForUpdate returns the row-locking suffix for SELECTs inside a transaction.
	ForUpdate() string
	// IsUniqueViolation reports whether err came from a unique index.
	IsUniqueViolation(err error) bool
}

// Executor runs statements either on the pool or inside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	Dialect() Dialect
	InTx() bool
}

// DB pairs a connection pool with its dialect.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

func (d *DB) InTx() bool {
	return false
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return d.db.ExecContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.db.QueryRowContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// RunInTx executes fn inside a transaction, committing on nil and rolling back otherwise.
func (d *DB) RunInTx(ctx context.Context, fn func(Executor) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(&txExecutor{tx: tx, dialect: d.dialect}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txExecutor struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txExecutor) Dialect() Dialect {
	return t.dialect
}

func (t *txExecutor) InTx() bool {
	return true
}

func (t *txExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *txExecutor) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *txExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

type txContextKey struct{}

// WithTx returns a context carrying ex. Tx calls made with that context join
// ex instead of opening their own transaction.
func WithTx(ctx context.Context, ex Executor) context.Context {
	return context.WithValue(ctx, txContextKey{}, ex)
}

// TxFrom returns the transaction carried by ctx, if any.
func TxFrom(ctx context.Context) (Executor, bool) {
	ex, ok := ctx.Value(txContextKey{}).(Executor)
	return ex, ok && ex.InTx()
}

// Tx runs fn in a transaction unless ex already is one or ctx carries one.
func Tx(ctx context.Context, db *DB, ex Executor, fn func(Executor) error) error {
	if ex.InTx() {
		return fn(ex)
	}
	if outer, ok := TxFrom(ctx); ok {
		return fn(outer)
	}
	return db.RunInTx(ctx, fn)
}

// RebindDollar rewrites '?' placeholders as $1, $2, ... skipping quoted literals.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// Placeholders returns "?, ?, ..." with n entries.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Int64Args converts ids into driver arguments.
func Int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

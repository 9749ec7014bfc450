// Package testutil opens throwaway SQLite databases with the production
// schema and seeds rows for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/platform/migrations"
	"sorteos-backend/internal/platform/sqldb"
	"sorteos-backend/internal/platform/sqlite"
)

// NewDB returns a migrated SQLite database that is removed when the test ends.
func NewDB(t testing.TB) *sqldb.DB {
	t.Helper()

	ctx := context.Background()
	client, err := sqlite.NewClient(ctx, filepath.Join(t.TempDir(), "sorteos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, migrations.Up(client.DB().SQL(), client.DB().Dialect().Name()))
	return client.DB()
}

func insertID(t testing.TB, db *sqldb.DB, query string, args ...interface{}) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRowContext(context.Background(), query+" RETURNING id", args...).Scan(&id))
	return id
}

// CreateUser inserts a user with a dummy password hash.
func CreateUser(t testing.TB, db *sqldb.DB, name, role string) int64 {
	t.Helper()
	now := time.Now().UTC()
	return insertID(t, db,
		`INSERT INTO users (name, email, password_hash, phone, role, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?, ?)`,
		name, name+"@sorteos.test", "x", role, now, now)
}

// CreateRaffle inserts an active raffle whose draw time is drawAt.
func CreateRaffle(t testing.TB, db *sqldb.DB, ownerID int64, drawAt time.Time) int64 {
	t.Helper()
	now := time.Now().UTC()
	var owner interface{}
	if ownerID != 0 {
		owner = ownerID
	}
	return insertID(t, db,
		`INSERT INTO raffles (title, description, image_url, ticket_price, draw_at, state, owner_id, created_at, updated_at)
		 VALUES ('Sorteo', '', '', 1000, ?, 'active', ?, ?, ?)`,
		drawAt.UTC(), owner, now, now)
}

// SetRaffleState forces a raffle state.
func SetRaffleState(t testing.TB, db *sqldb.DB, raffleID int64, state string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `UPDATE raffles SET state = ? WHERE id = ?`, state, raffleID)
	require.NoError(t, err)
}

// CreateProduct inserts a prize at the given position.
func CreateProduct(t testing.TB, db *sqldb.DB, raffleID int64, name string, position int) int64 {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO products (raffle_id, name, description, image_url, prize_position, created_at)
		 VALUES (?, ?, '', '', ?, ?)`,
		raffleID, name, position, time.Now().UTC())
}

// CreateTickets inserts n tickets in the given state. Sold and winner tickets are owned by ownerID.
func CreateTickets(t testing.TB, db *sqldb.DB, raffleID int64, n int, state string, ownerID int64) []int64 {
	t.Helper()

	ctx := context.Background()
	var base int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&base))

	now := time.Now().UTC()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		var (
			owner       interface{}
			purchasedAt interface{}
		)
		if state != "available" {
			owner = ownerID
			purchasedAt = now
		}
		number := fmt.Sprintf("T%06d", base+i)
		ids = append(ids, insertID(t, db,
			`INSERT INTO tickets (raffle_id, owner_id, number, price, state, purchased_at, created_at)
			 VALUES (?, ?, ?, 1000, ?, ?, ?)`,
			raffleID, owner, number, state, purchasedAt, now))
	}
	return ids
}

// TicketState reads a ticket's current state.
func TicketState(t testing.TB, db *sqldb.DB, ticketID int64) string {
	t.Helper()
	var state string
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT state FROM tickets WHERE id = ?`, ticketID).Scan(&state))
	return state
}

// RaffleState reads a raffle's current state.
func RaffleState(t testing.TB, db *sqldb.DB, raffleID int64) string {
	t.Helper()
	var state string
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT state FROM raffles WHERE id = ?`, raffleID).Scan(&state))
	return state
}

// Count runs a COUNT(*) query.
func Count(t testing.TB, db *sqldb.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

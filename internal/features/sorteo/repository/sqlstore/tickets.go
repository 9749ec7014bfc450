package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
	"sorteos-backend/internal/platform/sqldb"
)

const ticketSelect = `
	SELECT t.id, t.raffle_id, t.owner_id, t.number, t.price, t.state, t.purchased_at, t.created_at,
		r.title, COALESCE(u.name, ''), COALESCE(u.email, '')
	FROM tickets t
	JOIN raffles r ON r.id = t.raffle_id
	LEFT JOIN users u ON u.id = t.owner_id
`

func scanTicket(row scanner) (*models.Ticket, error) {
	var (
		t           models.Ticket
		owner       sql.NullInt64
		purchasedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.RaffleID, &owner, &t.Number, &t.Price, &t.State, &purchasedAt,
		&t.CreatedAt, &t.RaffleTitle, &t.OwnerName, &t.OwnerEmail); err != nil {
		return nil, err
	}
	if owner.Valid {
		id := owner.Int64
		t.OwnerID = &id
	}
	if purchasedAt.Valid {
		at := purchasedAt.Time
		t.PurchasedAt = &at
	}
	return &t, nil
}

func (s *store) queryTickets(ctx context.Context, query string, args ...interface{}) ([]models.Ticket, error) {
	rows, err := s.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *store) CountTicketsWithPrefix(ctx context.Context, raffleID int64, prefix string) (int, error) {
	var n int
	err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE raffle_id = ? AND number LIKE ?`,
		raffleID, prefix+"%").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return n, nil
}

func (s *store) CountNumbersInRange(ctx context.Context, first, last string) (int, error) {
	var n int
	err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE number BETWEEN ? AND ? AND LENGTH(number) = ?`,
		first, last, len(first)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to check ticket numbers: %w", err)
	}
	return n, nil
}

// InsertTickets writes the whole slice as one multi-row INSERT.
func (s *store) InsertTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO tickets (raffle_id, number, price, state, created_at) VALUES `)
	args := make([]interface{}, 0, len(tickets)*5)
	for i, t := range tickets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, t.RaffleID, t.Number, t.Price, t.State, t.CreatedAt)
	}

	if _, err := s.ex.ExecContext(ctx, b.String(), args...); err != nil {
		if s.ex.Dialect().IsUniqueViolation(err) {
			return fmt.Errorf("failed to insert tickets: %w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("failed to insert tickets: %w", err)
	}
	return nil
}

func (s *store) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	t, err := scanTicket(s.ex.QueryRowContext(ctx, ticketSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

// ListTickets returns matching tickets in numeric number order.
func (s *store) ListTickets(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.RaffleID != 0 {
		where = append(where, "t.raffle_id = ?")
		args = append(args, f.RaffleID)
	}
	if f.OwnerID != 0 {
		where = append(where, "t.owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.State != "" {
		where = append(where, "t.state = ?")
		args = append(args, f.State)
	}

	query := ticketSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	tickets, err := s.queryTickets(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// numbers are strings; order them numerically here rather than relying on a backend cast
	models.SortTickets(tickets)
	if f.Limit > 0 && len(tickets) > f.Limit {
		tickets = tickets[:f.Limit]
	}
	return tickets, nil
}

func (s *store) ListTicketIDs(ctx context.Context, raffleID int64, state models.TicketState) ([]int64, error) {
	rows, err := s.ex.QueryContext(ctx,
		`SELECT id FROM tickets WHERE raffle_id = ? AND state = ? ORDER BY id`, raffleID, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ticket id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *store) ListTicketsByIDs(ctx context.Context, ids []int64) ([]models.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryTickets(ctx, ticketSelect+` WHERE t.id IN `+inClause(len(ids))+` ORDER BY t.id`, sqldb.Int64Args(ids)...)
}

func (s *store) DeleteAvailableTicket(ctx context.Context, id int64) (bool, error) {
	result, err := s.ex.ExecContext(ctx, `DELETE FROM tickets WHERE id = ? AND state = 'available'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ticket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *store) DeleteAvailableTickets(ctx context.Context, raffleID int64) (int64, error) {
	result, err := s.ex.ExecContext(ctx,
		`DELETE FROM tickets WHERE raffle_id = ? AND state = 'available'`, raffleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tickets: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// SellTicket matches only available tickets of active raffles; concurrent
// callers on the same id see exactly one affected row between them.
func (s *store) SellTicket(ctx context.Context, ticketID, buyerID int64, at time.Time) (bool, error) {
	query := `
		UPDATE tickets
		SET owner_id = ?, state = 'sold', purchased_at = ?
		WHERE id = ?
			AND state = 'available'
			AND raffle_id IN (SELECT id FROM raffles WHERE state = 'active')
	`
	result, err := s.ex.ExecContext(ctx, query, buyerID, at, ticketID)
	if err != nil {
		return false, fmt.Errorf("failed to sell ticket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

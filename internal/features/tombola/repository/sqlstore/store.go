package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/tombola/models"
	"sorteos-backend/internal/features/tombola/repository"
	"sorteos-backend/internal/platform/sqldb"
)

type store struct {
	db *sqldb.DB
	ex sqldb.Executor
}

func New(db *sqldb.DB) repository.Repository {
	return &store{db: db, ex: db}
}

func (s *store) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return sqldb.Tx(ctx, s.db, s.ex, func(ex sqldb.Executor) error {
		return fn(&store{db: s.db, ex: ex})
	})
}

func (s *store) GetRaffleForDraw(ctx context.Context, raffleID int64) (*sorteomodels.Raffle, error) {
	query := `
		SELECT id, title, description, image_url, ticket_price, draw_at, state, owner_id, created_at, updated_at
		FROM raffles
		WHERE id = ?` + s.ex.Dialect().ForUpdate()

	var (
		r     sorteomodels.Raffle
		owner sql.NullInt64
	)
	err := s.ex.QueryRowContext(ctx, query, raffleID).Scan(&r.ID, &r.Title, &r.Description,
		&r.ImageURL, &r.TicketPrice, &r.DrawAt, &r.State, &owner, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if owner.Valid {
		id := owner.Int64
		r.OwnerID = &id
	}
	return &r, nil
}

func (s *store) RaffleExists(ctx context.Context, raffleID int64) (bool, error) {
	var n int
	err := s.ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM raffles WHERE id = ?`, raffleID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check raffle: %w", err)
	}
	return n > 0, nil
}

func (s *store) FinalizeRaffle(ctx context.Context, raffleID int64, at time.Time) (bool, error) {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE raffles SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		sorteomodels.RaffleFinalized, at, raffleID, sorteomodels.RaffleActive)
	if err != nil {
		return false, fmt.Errorf("failed to finalize raffle: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

const prizeColumns = `id, raffle_id, name, description, image_url, prize_position, created_at`

func scanPrize(row interface{ Scan(...interface{}) error }) (*sorteomodels.Product, error) {
	var p sorteomodels.Product
	if err := row.Scan(&p.ID, &p.RaffleID, &p.Name, &p.Description, &p.ImageURL,
		&p.PrizePosition, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *store) ListPrizes(ctx context.Context, raffleID int64) ([]sorteomodels.Product, error) {
	query := `SELECT ` + prizeColumns + ` FROM products WHERE raffle_id = ? ORDER BY prize_position ASC, id ASC`

	rows, err := s.ex.QueryContext(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	defer rows.Close()

	var prizes []sorteomodels.Product
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prize: %w", err)
		}
		prizes = append(prizes, *p)
	}
	return prizes, rows.Err()
}

func (s *store) GetPrize(ctx context.Context, productID int64) (*sorteomodels.Product, error) {
	query := `SELECT ` + prizeColumns + ` FROM products WHERE id = ?`

	p, err := scanPrize(s.ex.QueryRowContext(ctx, query, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prize: %w", err)
	}
	return p, nil
}

func (s *store) CountWinners(ctx context.Context, raffleID int64) (int, error) {
	var n int
	err := s.ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count winners: %w", err)
	}
	return n, nil
}

func (s *store) EligibleForRaffle(ctx context.Context, raffleID int64) ([]int64, error) {
	query := `
		SELECT t.id
		FROM tickets t
		WHERE t.raffle_id = ?
		  AND t.state = ?
		  AND NOT EXISTS (
			SELECT 1 FROM winners w WHERE w.raffle_id = t.raffle_id AND w.ticket_id = t.id
		  )
		ORDER BY t.id
	`
	return s.queryIDs(ctx, query, raffleID, sorteomodels.TicketSold)
}

func (s *store) EligibleForPrize(ctx context.Context, raffleID, productID int64) ([]int64, error) {
	query := `
		SELECT t.id
		FROM tickets t
		WHERE t.raffle_id = ?
		  AND t.state = ?
		  AND NOT EXISTS (
			SELECT 1 FROM winners w
			WHERE w.raffle_id = t.raffle_id AND w.ticket_id = t.id AND w.product_id = ?
		  )
		ORDER BY t.id
	`
	return s.queryIDs(ctx, query, raffleID, sorteomodels.TicketSold, productID)
}

func (s *store) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible tickets: %w", err)
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

func (s *store) PositionTaken(ctx context.Context, raffleID int64, position int) (bool, error) {
	var n int
	err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM winners WHERE raffle_id = ? AND prize_position = ?`,
		raffleID, position).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check prize position: %w", err)
	}
	return n > 0, nil
}

func (s *store) InsertWinner(ctx context.Context, w *models.Winner) (bool, error) {
	query := `
		INSERT INTO winners (raffle_id, ticket_id, product_id, prize_position, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (raffle_id, ticket_id, product_id) DO NOTHING
		RETURNING id
	`
	err := s.ex.QueryRowContext(ctx, query,
		w.RaffleID, w.TicketID, w.ProductID, w.PrizePosition, w.CreatedAt,
	).Scan(&w.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert winner: %w", err)
	}
	return true, nil
}

func (s *store) MarkTicketWinner(ctx context.Context, ticketID int64) (bool, error) {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE tickets SET state = ? WHERE id = ? AND state = ?`,
		sorteomodels.TicketWinner, ticketID, sorteomodels.TicketSold)
	if err != nil {
		return false, fmt.Errorf("failed to mark ticket as winner: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *store) ListWinners(ctx context.Context, raffleID int64) ([]models.WinnerView, error) {
	query := `
		SELECT w.id, w.raffle_id, w.ticket_id, w.product_id, w.prize_position, w.created_at,
		       t.number, p.name, t.owner_id, COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM winners w
		JOIN tickets t ON t.id = w.ticket_id
		JOIN products p ON p.id = w.product_id
		LEFT JOIN users u ON u.id = t.owner_id
		WHERE w.raffle_id = ?
		ORDER BY w.prize_position ASC, w.id ASC
	`
	rows, err := s.ex.QueryContext(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	defer rows.Close()

	winners := make([]models.WinnerView, 0)
	for rows.Next() {
		var (
			v     models.WinnerView
			owner sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.RaffleID, &v.TicketID, &v.ProductID, &v.PrizePosition,
			&v.CreatedAt, &v.TicketNumber, &v.ProductName, &owner, &v.OwnerName, &v.OwnerEmail); err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		if owner.Valid {
			id := owner.Int64
			v.OwnerID = &id
		}
		winners = append(winners, v)
	}
	return winners, rows.Err()
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
	"sorteos-backend/internal/platform/sqldb"
)

type store struct {
	db *sqldb.DB
	ex sqldb.Executor
}

// New returns the SQL implementation of the raffle repository. The same
// statements run on every backend; the dialect bound to db rewrites them.
func New(db *sqldb.DB) repository.Repository {
	return &store{db: db, ex: db}
}

func (s *store) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return sqldb.Tx(ctx, s.db, s.ex, func(ex sqldb.Executor) error {
		return fn(&store{db: s.db, ex: ex})
	})
}

const raffleColumns = `id, title, description, image_url, ticket_price, draw_at, state, owner_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRaffle(row scanner) (*models.Raffle, error) {
	var (
		r     models.Raffle
		owner sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &r.ImageURL, &r.TicketPrice,
		&r.DrawAt, &r.State, &owner, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		id := owner.Int64
		r.OwnerID = &id
	}
	return &r, nil
}

func (s *store) CreateRaffle(ctx context.Context, r *models.Raffle) error {
	query := `
		INSERT INTO raffles (title, description, image_url, ticket_price, draw_at, state, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.ex.QueryRowContext(ctx, query,
		r.Title, r.Description, r.ImageURL, r.TicketPrice, r.DrawAt.UTC(), r.State,
		nullableID(r.OwnerID), r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create raffle: %w", err)
	}
	return nil
}

func (s *store) GetRaffle(ctx context.Context, id int64) (*models.Raffle, error) {
	return s.getRaffle(ctx, id, "")
}

func (s *store) GetRaffleForUpdate(ctx context.Context, id int64) (*models.Raffle, error) {
	return s.getRaffle(ctx, id, s.ex.Dialect().ForUpdate())
}

func (s *store) getRaffle(ctx context.Context, id int64, suffix string) (*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles WHERE id = ?` + suffix

	r, err := scanRaffle(s.ex.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	return r, nil
}

func (s *store) ListRaffles(ctx context.Context, state models.RaffleState) ([]models.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles`
	var args []interface{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY draw_at ASC, id ASC`

	rows, err := s.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}
	defer rows.Close()

	var raffles []models.Raffle
	for rows.Next() {
		r, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, *r)
	}
	return raffles, rows.Err()
}

func (s *store) UpdateRaffle(ctx context.Context, r *models.Raffle) error {
	query := `
		UPDATE raffles
		SET title = ?, description = ?, image_url = ?, ticket_price = ?, draw_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.ex.ExecContext(ctx, query,
		r.Title, r.Description, r.ImageURL, r.TicketPrice, r.DrawAt.UTC(), r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update raffle: %w", err)
	}
	return requireAffected(result)
}

func (s *store) TransitionRaffle(ctx context.Context, id int64, from, to models.RaffleState, at time.Time) (bool, error) {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE raffles SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update raffle state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *store) DeleteRaffle(ctx context.Context, id int64) error {
	result, err := s.ex.ExecContext(ctx, `DELETE FROM raffles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete raffle: %w", err)
	}
	return requireAffected(result)
}

func (s *store) RaffleStats(ctx context.Context, id int64) (models.RaffleStats, error) {
	var st models.RaffleStats
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'sold' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'available' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'winner' THEN 1 ELSE 0 END), 0)
		FROM tickets
		WHERE raffle_id = ?
	`
	if err := s.ex.QueryRowContext(ctx, query, id).Scan(
		&st.TotalTickets, &st.SoldTickets, &st.AvailableTickets, &st.WinnerTickets); err != nil {
		return st, fmt.Errorf("failed to count tickets: %w", err)
	}
	if err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE raffle_id = ?`, id).Scan(&st.Prizes); err != nil {
		return st, fmt.Errorf("failed to count products: %w", err)
	}
	return st, nil
}

func (s *store) CountWinners(ctx context.Context, raffleID int64) (int, error) {
	var n int
	if err := s.ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count winners: %w", err)
	}
	return n, nil
}

func (s *store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (raffle_id, name, description, image_url, prize_position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := s.ex.QueryRowContext(ctx, query,
		p.RaffleID, p.Name, p.Description, p.ImageURL, p.PrizePosition, p.CreatedAt,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *store) ListProducts(ctx context.Context, raffleID int64) ([]models.Product, error) {
	query := `
		SELECT id, raffle_id, name, description, image_url, prize_position, created_at
		FROM products
		WHERE raffle_id = ?
		ORDER BY prize_position ASC, id ASC
	`
	rows, err := s.ex.QueryContext(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.RaffleID, &p.Name, &p.Description, &p.ImageURL,
			&p.PrizePosition, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *store) DeleteProducts(ctx context.Context, raffleID int64) error {
	if _, err := s.ex.ExecContext(ctx, `DELETE FROM products WHERE raffle_id = ?`, raffleID); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func inClause(n int) string {
	return "(" + sqldb.Placeholders(n) + ")"
}


package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sorteos-backend/internal/features/payment/models"
	"sorteos-backend/internal/features/payment/repository"
	"sorteos-backend/internal/platform/sqldb"
)

type store struct {
	db *sqldb.DB
	ex sqldb.Executor
}

func New(db *sqldb.DB) repository.Repository {
	return &store{db: db, ex: db}
}

// WithinTx hands fn a context carrying the transaction, so stores of other
// features called with it write in the same transaction.
func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	return sqldb.Tx(ctx, s.db, s.ex, func(ex sqldb.Executor) error {
		return fn(sqldb.WithTx(ctx, ex), &store{db: s.db, ex: ex})
	})
}

const paymentColumns = `id, user_id, raffle_id, amount, provider, transaction_id, reference, state, payload, needs_review, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.Payment, error) {
	var (
		p            models.Payment
		user, raffle sql.NullInt64
		payload      string
	)
	if err := row.Scan(&p.ID, &user, &raffle, &p.Amount, &p.Provider, &p.TransactionID,
		&p.Reference, &p.State, &payload, &p.NeedsReview, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if user.Valid {
		id := user.Int64
		p.UserID = &id
	}
	if raffle.Valid {
		id := raffle.Int64
		p.RaffleID = &id
	}
	if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of payment %d: %w", p.ID, err)
	}
	return &p, nil
}

func nullable(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func (s *store) Create(ctx context.Context, p *models.Payment) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	query := `
		INSERT INTO payments (user_id, raffle_id, amount, provider, transaction_id, reference, state, payload, needs_review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = s.ex.QueryRowContext(ctx, query,
		nullable(p.UserID), nullable(p.RaffleID), p.Amount, p.Provider, p.TransactionID,
		p.Reference, p.State, string(payload), p.NeedsReview, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (s *store) Get(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(s.ex.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (s *store) ListByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	rows, err := s.ex.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *store) Transition(ctx context.Context, id int64, from, to models.PaymentState, txID string, at time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET state = ?, transaction_id = COALESCE(NULLIF(?, ''), transaction_id), updated_at = ?
		WHERE id = ? AND state = ?
	`
	result, err := s.ex.ExecContext(ctx, query, to, txID, at, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update payment state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *store) MarkNeedsReview(ctx context.Context, id int64, at time.Time) error {
	_, err := s.ex.ExecContext(ctx, `UPDATE payments SET needs_review = ?, updated_at = ? WHERE id = ?`, true, at, id)
	if err != nil {
		return fmt.Errorf("failed to flag payment: %w", err)
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
)

const promotionColumns = `id, raffle_id, title, description, discount_percent, min_tickets, active, created_at`

func scanPromotion(row scanner) (*models.Promotion, error) {
	var p models.Promotion
	if err := row.Scan(&p.ID, &p.RaffleID, &p.Title, &p.Description, &p.DiscountPercent,
		&p.MinTickets, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *store) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	query := `
		INSERT INTO promotions (raffle_id, title, description, discount_percent, min_tickets, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := s.ex.QueryRowContext(ctx, query,
		p.RaffleID, p.Title, p.Description, p.DiscountPercent, p.MinTickets, p.Active, p.CreatedAt,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to create promotion: %w", err)
	}
	return nil
}

func (s *store) GetPromotion(ctx context.Context, id int64) (*models.Promotion, error) {
	p, err := scanPromotion(s.ex.QueryRowContext(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return p, nil
}

func (s *store) ListPromotions(ctx context.Context, raffleID int64, activeOnly bool) ([]models.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE raffle_id = ?`
	args := []interface{}{raffleID}
	if activeOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY min_tickets ASC, id ASC`

	rows, err := s.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var promos []models.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promos = append(promos, *p)
	}
	return promos, rows.Err()
}

func (s *store) UpdatePromotion(ctx context.Context, p *models.Promotion) error {
	query := `
		UPDATE promotions
		SET title = ?, description = ?, discount_percent = ?, min_tickets = ?, active = ?
		WHERE id = ?
	`
	result, err := s.ex.ExecContext(ctx, query,
		p.Title, p.Description, p.DiscountPercent, p.MinTickets, p.Active, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update promotion: %w", err)
	}
	return requireAffected(result)
}

func (s *store) DeletePromotion(ctx context.Context, id int64) error {
	result, err := s.ex.ExecContext(ctx, `DELETE FROM promotions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete promotion: %w", err)
	}
	return requireAffected(result)
}

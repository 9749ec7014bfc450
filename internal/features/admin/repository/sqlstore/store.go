package sqlstore

import (
	"context"
	"fmt"

	"sorteos-backend/internal/features/admin/models"
	"sorteos-backend/internal/features/admin/repository"
	"sorteos-backend/internal/platform/sqldb"
)

type statsRepository struct {
	ex sqldb.Executor
}

func NewStatsRepository(db *sqldb.DB) repository.StatsRepository {
	return &statsRepository{ex: db}
}

func (r *statsRepository) Stats(ctx context.Context) (*models.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM raffles),
			(SELECT COUNT(*) FROM raffles WHERE state = 'active'),
			(SELECT COUNT(*) FROM tickets),
			(SELECT COUNT(*) FROM tickets WHERE state IN ('sold', 'winner')),
			(SELECT COUNT(*) FROM tickets WHERE state = 'winner'),
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE state = 'completed')
	`
	var s models.Stats
	err := r.ex.QueryRowContext(ctx, query).Scan(&s.TotalUsers, &s.TotalRaffles, &s.ActiveRaffles,
		&s.TotalTickets, &s.SoldTickets, &s.WinnerTickets, &s.Revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return &s, nil
}

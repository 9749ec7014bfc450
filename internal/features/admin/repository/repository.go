package repository

import (
	"context"

	"sorteos-backend/internal/features/admin/models"
)

type StatsRepository interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

package repository

import (
	"context"
	"errors"
	"time"

	"sorteos-backend/internal/features/payment/models"
)

var ErrNotFound = errors.New("payment not found")

type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id int64) (*models.Payment, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Payment, error)
	// Transition moves a payment from one state to another. An empty txID
	// keeps the stored transaction id. Reports false when the payment was not
	// in the from state.
	Transition(ctx context.Context, id int64, from, to models.PaymentState, txID string, at time.Time) (bool, error)
	MarkNeedsReview(ctx context.Context, id int64, at time.Time) error
}

package service

import (
	stderrors "errors"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
)

// RequireActive returns the lifecycle error for a raffle that no longer
// accepts draws, sales or new tickets.
func RequireActive(r *models.Raffle) error {
	switch r.State {
	case models.RaffleActive:
		return nil
	case models.RaffleFinalized:
		return apperrors.NewAlreadyFinalizedError(r.ID)
	default:
		return apperrors.NewRaffleClosedError(r.ID, string(r.State))
	}
}

func lookupError(err error, resource string, id int64, op string) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return apperrors.NewDatabaseError(op, err)
}

// appError passes AppErrors through and wraps anything else as a database error.
func appError(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.NewDatabaseError(op, err)
}

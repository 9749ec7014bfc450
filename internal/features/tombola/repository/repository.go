package repository

import (
	"context"
	"errors"
	"time"

	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/tombola/models"
)

var ErrNotFound = errors.New("not found")

// Repository is the storage port of the draw engine and winner ledger.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// GetRaffleForDraw reads the raffle with the backend row lock, if any.
	GetRaffleForDraw(ctx context.Context, raffleID int64) (*sorteomodels.Raffle, error)
	RaffleExists(ctx context.Context, raffleID int64) (bool, error)
	FinalizeRaffle(ctx context.Context, raffleID int64, at time.Time) (bool, error)

	// ListPrizes returns the raffle's prizes by ascending position.
	ListPrizes(ctx context.Context, raffleID int64) ([]sorteomodels.Product, error)
	GetPrize(ctx context.Context, productID int64) (*sorteomodels.Product, error)

	CountWinners(ctx context.Context, raffleID int64) (int, error)
	// EligibleForRaffle lists sold tickets with no winner row in the raffle.
	EligibleForRaffle(ctx context.Context, raffleID int64) ([]int64, error)
	// EligibleForPrize lists sold tickets with no winner row for the prize.
	EligibleForPrize(ctx context.Context, raffleID, productID int64) ([]int64, error)
	PositionTaken(ctx context.Context, raffleID int64, position int) (bool, error)

	// InsertWinner reports inserted=false when the (raffle, ticket, prize)
	// triple already exists; no error is raised for that case.
	InsertWinner(ctx context.Context, w *models.Winner) (inserted bool, err error)
	// MarkTicketWinner moves a sold ticket to winner.
	MarkTicketWinner(ctx context.Context, ticketID int64) (bool, error)

	ListWinners(ctx context.Context, raffleID int64) ([]models.WinnerView, error)
}

package repository

import (
	"context"
	"errors"
	"time"

	"sorteos-backend/internal/features/sorteo/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write hits a unique index.
	ErrDuplicate = errors.New("duplicate")
)

// TicketFilter narrows ticket listings. Zero values mean "any".
type TicketFilter struct {
	RaffleID int64
	OwnerID  int64
	State    models.TicketState
	Limit    int
}

// Repository is the raffle and ticket storage port. Implementations run
// every method on the executor they were bound to, so a Repository handed to
// a WithinTx callback is transactional.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	CreateRaffle(ctx context.Context, raffle *models.Raffle) error
	GetRaffle(ctx context.Context, id int64) (*models.Raffle, error)
	// GetRaffleForUpdate reads the raffle with the backend row lock, if any.
	GetRaffleForUpdate(ctx context.Context, id int64) (*models.Raffle, error)
	ListRaffles(ctx context.Context, state models.RaffleState) ([]models.Raffle, error)
	UpdateRaffle(ctx context.Context, raffle *models.Raffle) error
	// TransitionRaffle moves a raffle from one state to another and reports
	// whether the row was still in the expected state.
	TransitionRaffle(ctx context.Context, id int64, from, to models.RaffleState, at time.Time) (bool, error)
	DeleteRaffle(ctx context.Context, id int64) error
	RaffleStats(ctx context.Context, id int64) (models.RaffleStats, error)
	CountWinners(ctx context.Context, raffleID int64) (int, error)

	CreateProduct(ctx context.Context, product *models.Product) error
	ListProducts(ctx context.Context, raffleID int64) ([]models.Product, error)
	DeleteProducts(ctx context.Context, raffleID int64) error

	CountTicketsWithPrefix(ctx context.Context, raffleID int64, prefix string) (int, error)
	CountNumbersInRange(ctx context.Context, first, last string) (int, error)
	InsertTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	ListTicketIDs(ctx context.Context, raffleID int64, state models.TicketState) ([]int64, error)
	ListTicketsByIDs(ctx context.Context, ids []int64) ([]models.Ticket, error)
	// DeleteAvailableTicket removes the ticket only while it is available.
	DeleteAvailableTicket(ctx context.Context, id int64) (bool, error)
	DeleteAvailableTickets(ctx context.Context, raffleID int64) (int64, error)
	// SellTicket is the conditional available->sold update. It reports
	// whether this call performed the sale.
	SellTicket(ctx context.Context, ticketID, buyerID int64, at time.Time) (bool, error)

	CreatePromotion(ctx context.Context, promo *models.Promotion) error
	GetPromotion(ctx context.Context, id int64) (*models.Promotion, error)
	ListPromotions(ctx context.Context, raffleID int64, activeOnly bool) ([]models.Promotion, error)
	UpdatePromotion(ctx context.Context, promo *models.Promotion) error
	DeletePromotion(ctx context.Context, id int64) error
}

package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
	"sorteos-backend/internal/platform/metrics"
)

type InventoryService interface {
	// Generate mints count tickets for the current month, all or nothing.
	Generate(ctx context.Context, p auth.Principal, raffleID int64, count int, price int64) (*models.GenerateResult, error)
	ListTickets(ctx context.Context, raffleID int64, state models.TicketState, limit int) ([]models.Ticket, error)
	ListAvailable(ctx context.Context, raffleID int64, limit int) ([]models.Ticket, error)
	ListSold(ctx context.Context, p auth.Principal, raffleID int64) ([]models.Ticket, error)
	ListMine(ctx context.Context, userID int64) ([]models.Ticket, error)
	DeleteTicket(ctx context.Context, p auth.Principal, ticketID int64) error
	DeleteAvailable(ctx context.Context, p auth.Principal, raffleID int64) (int64, error)
}

type InventoryConfig struct {
	MonthlyQuota int
	BatchSize    int
}

type inventoryService struct {
	repo    repository.Repository
	cfg     InventoryConfig
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewInventoryService(repo repository.Repository, cfg InventoryConfig, m *metrics.Metrics) InventoryService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &inventoryService{repo: repo, cfg: cfg, metrics: m, now: time.Now}
}

func (s *inventoryService) Generate(ctx context.Context, p auth.Principal, raffleID int64, count int, price int64) (*models.GenerateResult, error) {
	if count < 1 {
		return nil, apperrors.NewValidationError("count", "must be positive")
	}
	if price < 0 {
		return nil, apperrors.NewValidationError("price", "cannot be negative")
	}

	prefix := models.MonthPrefix(s.now().UTC())
	result := &models.GenerateResult{RaffleID: raffleID, Created: count}

	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		raffle, err := tx.GetRaffleForUpdate(ctx, raffleID)
		if err != nil {
			return lookupError(err, "raffle", raffleID, "get raffle")
		}
		if !p.CanManage(raffle.OwnerID) {
			return apperrors.NewForbiddenError("only the raffle owner or an administrator can generate tickets")
		}
		if err := RequireActive(raffle); err != nil {
			return err
		}

		existing, err := tx.CountTicketsWithPrefix(ctx, raffleID, prefix)
		if err != nil {
			return err
		}
		if existing+count > s.cfg.MonthlyQuota {
			return apperrors.NewQuotaExceededError(s.cfg.MonthlyQuota, existing, count)
		}

		result.FirstNumber = models.FormatTicketNumber(prefix, existing)
		result.LastNumber = models.FormatTicketNumber(prefix, existing+count-1)

		// numbers are unique system-wide; another raffle may already hold this range
		taken, err := tx.CountNumbersInRange(ctx, result.FirstNumber, result.LastNumber)
		if err != nil {
			return err
		}
		if taken > 0 {
			return apperrors.NewConstraintConflictError("uq_tickets_number",
				fmt.Sprintf("%d ticket numbers between %s and %s already exist", taken, result.FirstNumber, result.LastNumber))
		}

		// a concurrent generation can claim the range after the check
		insert := func(batch []models.Ticket) error {
			err := tx.InsertTickets(ctx, batch)
			if stderrors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConstraintConflictError("uq_tickets_number",
					fmt.Sprintf("ticket numbers between %s and %s were taken concurrently", result.FirstNumber, result.LastNumber))
			}
			return err
		}

		createdAt := s.now().UTC()
		batch := make([]models.Ticket, 0, s.cfg.BatchSize)
		for i := 0; i < count; i++ {
			batch = append(batch, models.Ticket{
				RaffleID:  raffleID,
				Number:    models.FormatTicketNumber(prefix, existing+i),
				Price:     price,
				State:     models.TicketAvailable,
				CreatedAt: createdAt,
			})
			if len(batch) == s.cfg.BatchSize {
				if err := insert(batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return insert(batch)
	})
	if err != nil {
		return nil, appError(err, "generate tickets")
	}

	s.metrics.TicketsGenerated(count)
	logger.Info().
		Int64("raffle_id", raffleID).
		Int("count", count).
		Str("first_number", result.FirstNumber).
		Str("last_number", result.LastNumber).
		Msg("Tickets generated")

	return result, nil
}

func (s *inventoryService) ListTickets(ctx context.Context, raffleID int64, state models.TicketState, limit int) ([]models.Ticket, error) {
	if _, err := s.repo.GetRaffle(ctx, raffleID); err != nil {
		return nil, lookupError(err, "raffle", raffleID, "get raffle")
	}
	tickets, err := s.repo.ListTickets(ctx, repository.TicketFilter{RaffleID: raffleID, State: state, Limit: limit})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list tickets", err)
	}
	return publicTickets(tickets), nil
}

func (s *inventoryService) ListAvailable(ctx context.Context, raffleID int64, limit int) ([]models.Ticket, error) {
	return s.ListTickets(ctx, raffleID, models.TicketAvailable, limit)
}

func (s *inventoryService) ListSold(ctx context.Context, p auth.Principal, raffleID int64) ([]models.Ticket, error) {
	raffle, err := s.repo.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, lookupError(err, "raffle", raffleID, "get raffle")
	}
	if !p.CanManage(raffle.OwnerID) {
		return nil, apperrors.NewForbiddenError("only the raffle owner or an administrator can list buyers")
	}
	tickets, err := s.repo.ListTickets(ctx, repository.TicketFilter{RaffleID: raffleID, State: models.TicketSold})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list tickets", err)
	}
	return orEmpty(tickets), nil
}

func (s *inventoryService) ListMine(ctx context.Context, userID int64) ([]models.Ticket, error) {
	tickets, err := s.repo.ListTickets(ctx, repository.TicketFilter{OwnerID: userID})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list tickets", err)
	}
	return orEmpty(tickets), nil
}

func (s *inventoryService) DeleteTicket(ctx context.Context, p auth.Principal, ticketID int64) error {
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return lookupError(err, "ticket", ticketID, "get ticket")
	}
	raffle, err := s.repo.GetRaffle(ctx, ticket.RaffleID)
	if err != nil {
		return lookupError(err, "raffle", ticket.RaffleID, "get raffle")
	}
	if !p.CanManage(raffle.OwnerID) {
		return apperrors.NewForbiddenError("only the raffle owner or an administrator can delete tickets")
	}

	notAvailable := apperrors.NewInvalidStateError(apperrors.ReasonTicketNotAvailable,
		fmt.Sprintf("ticket %s is %s and cannot be deleted", ticket.Number, ticket.State)).
		WithDetail("ticket_id", ticketID)
	if ticket.State != models.TicketAvailable {
		return notAvailable
	}

	deleted, err := s.repo.DeleteAvailableTicket(ctx, ticketID)
	if err != nil {
		return apperrors.NewDatabaseError("delete ticket", err)
	}
	if !deleted {
		// sold between the read and the delete
		return notAvailable
	}

	logger.Info().Int64("ticket_id", ticketID).Int64("raffle_id", ticket.RaffleID).Msg("Ticket deleted")
	return nil
}

func (s *inventoryService) DeleteAvailable(ctx context.Context, p auth.Principal, raffleID int64) (int64, error) {
	raffle, err := s.repo.GetRaffle(ctx, raffleID)
	if err != nil {
		return 0, lookupError(err, "raffle", raffleID, "get raffle")
	}
	if !p.CanManage(raffle.OwnerID) {
		return 0, apperrors.NewForbiddenError("only the raffle owner or an administrator can delete tickets")
	}

	n, err := s.repo.DeleteAvailableTickets(ctx, raffleID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("delete tickets", err)
	}

	logger.Info().Int64("raffle_id", raffleID).Int64("deleted", n).Msg("Available tickets deleted")
	return n, nil
}

// publicTickets strips buyer contact details from listings anyone can read.
func publicTickets(tickets []models.Ticket) []models.Ticket {
	for i := range tickets {
		tickets[i].OwnerEmail = ""
	}
	return orEmpty(tickets)
}

func orEmpty(tickets []models.Ticket) []models.Ticket {
	if tickets == nil {
		return []models.Ticket{}
	}
	return tickets
}

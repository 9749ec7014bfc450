package service

import (
	"context"
	"sort"
	"strings"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/features/admin/models"
	"sorteos-backend/internal/features/admin/repository"
	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	sorteorepo "sorteos-backend/internal/features/sorteo/repository"
)

type AdminService interface {
	Stats(ctx context.Context) (*models.Stats, error)
	// Tickets lists tickets with raffle title and buyer, ordered by raffle
	// title and then numerically by ticket number. raffleID 0 lists all raffles.
	Tickets(ctx context.Context, raffleID int64) ([]sorteomodels.Ticket, error)
}

type adminService struct {
	stats   repository.StatsRepository
	tickets sorteorepo.Repository
}

func NewAdminService(stats repository.StatsRepository, tickets sorteorepo.Repository) AdminService {
	return &adminService{stats: stats, tickets: tickets}
}

func (s *adminService) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load stats", err)
	}
	return stats, nil
}

func (s *adminService) Tickets(ctx context.Context, raffleID int64) ([]sorteomodels.Ticket, error) {
	tickets, err := s.tickets.ListTickets(ctx, sorteorepo.TicketFilter{RaffleID: raffleID})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list tickets", err)
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		if c := strings.Compare(tickets[i].RaffleTitle, tickets[j].RaffleTitle); c != 0 {
			return c < 0
		}
		return sorteomodels.CompareTicketNumbers(tickets[i].Number, tickets[j].Number) < 0
	})
	if tickets == nil {
		tickets = []sorteomodels.Ticket{}
	}
	return tickets, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
	"sorteos-backend/internal/platform/metrics"
	"sorteos-backend/internal/platform/tracing"
	"sorteos-backend/internal/utils/random"
)

type PurchaseService interface {
	// Reserve quotes quantity random available tickets. Nothing is held.
	Reserve(ctx context.Context, raffleID int64, quantity int) (*models.Reservation, error)
	// Quote checks that ticketIDs are available tickets of one active raffle.
	Quote(ctx context.Context, ticketIDs []int64) (*models.Quote, error)
	// ConfirmPurchase sells each still-available ticket to buyerID. When some
	// ids could not be sold the result is returned together with a
	// PARTIAL_SALE error.
	ConfirmPurchase(ctx context.Context, buyerID int64, ticketIDs []int64) (*models.PurchaseResult, error)
}

type purchaseService struct {
	repo    repository.Repository
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewPurchaseService(repo repository.Repository, m *metrics.Metrics) PurchaseService {
	return &purchaseService{
		repo:    repo,
		metrics: m,
		tracer:  tracing.Tracer("sorteos-backend/purchase"),
		now:     time.Now,
	}
}

func (s *purchaseService) Reserve(ctx context.Context, raffleID int64, quantity int) (*models.Reservation, error) {
	if quantity < 1 {
		return nil, apperrors.NewValidationError("quantity", "must be positive")
	}

	raffle, err := s.repo.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, lookupError(err, "raffle", raffleID, "get raffle")
	}
	if err := RequireActive(raffle); err != nil {
		return nil, err
	}

	ids, err := s.repo.ListTicketIDs(ctx, raffleID, models.TicketAvailable)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list available tickets", err)
	}
	if len(ids) < quantity {
		return nil, apperrors.NewInsufficientInventoryError(len(ids), quantity)
	}

	picked, err := random.Sample(ids, quantity)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to sample tickets")
	}

	tickets, err := s.repo.ListTicketsByIDs(ctx, picked)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load tickets", err)
	}
	models.SortTickets(tickets)

	res := &models.Reservation{RaffleID: raffleID, Tickets: publicTickets(tickets)}
	for _, t := range tickets {
		res.TotalPrice += t.Price
	}
	return res, nil
}

func (s *purchaseService) Quote(ctx context.Context, ticketIDs []int64) (*models.Quote, error) {
	ids := models.UniqueIDs(ticketIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("ticket_ids", "at least one ticket is required")
	}

	tickets, err := s.repo.ListTicketsByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load tickets", err)
	}
	if len(tickets) != len(ids) {
		found := make(map[int64]struct{}, len(tickets))
		for _, t := range tickets {
			found[t.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, apperrors.NewNotFoundError("ticket", id)
			}
		}
	}

	q := &models.Quote{RaffleID: tickets[0].RaffleID, Tickets: publicTickets(tickets)}
	for _, t := range tickets {
		if t.RaffleID != q.RaffleID {
			return nil, apperrors.NewValidationError("ticket_ids", "all tickets must belong to the same raffle")
		}
		if t.State != models.TicketAvailable {
			return nil, apperrors.NewInvalidStateError(apperrors.ReasonTicketNotAvailable,
				fmt.Sprintf("ticket %s is no longer available", t.Number)).
				WithDetail("ticket_id", t.ID)
		}
		q.Amount += t.Price
	}

	raffle, err := s.repo.GetRaffle(ctx, q.RaffleID)
	if err != nil {
		return nil, lookupError(err, "raffle", q.RaffleID, "get raffle")
	}
	if err := RequireActive(raffle); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *purchaseService) ConfirmPurchase(ctx context.Context, buyerID int64, ticketIDs []int64) (*models.PurchaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Confirm",
		trace.WithAttributes(attribute.Int64("buyer_id", buyerID), attribute.Int("tickets", len(ticketIDs))))
	defer span.End()

	ids := models.UniqueIDs(ticketIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("ticket_ids", "at least one ticket is required")
	}

	result := &models.PurchaseResult{Sold: []int64{}, Unsold: []int64{}}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		at := s.now().UTC()
		for _, id := range ids {
			sold, err := tx.SellTicket(ctx, id, buyerID, at)
			if err != nil {
				return err
			}
			if sold {
				result.Sold = append(result.Sold, id)
			} else {
				result.Unsold = append(result.Unsold, id)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return nil, appError(err, "confirm purchase")
	}

	s.metrics.TicketsSold(len(result.Sold))
	span.SetAttributes(attribute.Int("sold", len(result.Sold)), attribute.Int("unsold", len(result.Unsold)))

	if result.Partial() {
		s.metrics.PartialSale()
		logger.Warn().
			Int64("buyer_id", buyerID).
			Ints64("sold", result.Sold).
			Ints64("unsold", result.Unsold).
			Msg("Purchase partially confirmed")
		return result, apperrors.NewPartialSaleError(result.Sold, result.Unsold)
	}

	logger.Info().
		Int64("buyer_id", buyerID).
		Int("tickets", len(result.Sold)).
		Msg("Purchase confirmed")
	return result, nil
}

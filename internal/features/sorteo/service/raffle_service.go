package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/common/validation"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
)

type RaffleService interface {
	Create(ctx context.Context, p auth.Principal, req models.CreateRaffleRequest) (*models.RaffleDetail, error)
	Get(ctx context.Context, id int64) (*models.RaffleDetail, error)
	List(ctx context.Context, state models.RaffleState) ([]models.RaffleSummary, error)
	Update(ctx context.Context, p auth.Principal, id int64, req models.UpdateRaffleRequest) (*models.RaffleDetail, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
	// Finalize closes an active raffle whether or not a draw happened.
	Finalize(ctx context.Context, p auth.Principal, id int64) (*models.Raffle, error)
	Cancel(ctx context.Context, p auth.Principal, id int64) (*models.Raffle, error)
}

type raffleService struct {
	repo repository.Repository
	now  func() time.Time
}

func NewRaffleService(repo repository.Repository) RaffleService {
	return &raffleService{repo: repo, now: time.Now}
}

func (s *raffleService) Create(ctx context.Context, p auth.Principal, req models.CreateRaffleRequest) (*models.RaffleDetail, error) {
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only administrators can create raffles")
	}
	if err := validateRaffleFields(req.Title, req.Description, req.ImageURL, req.TicketPrice); err != nil {
		return nil, err
	}
	if req.DrawAt.IsZero() {
		return nil, apperrors.NewValidationError("draw_at", "draw time is required")
	}
	products, err := buildProducts(req.Products)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ownerID := p.UserID
	raffle := &models.Raffle{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		ImageURL:    req.ImageURL,
		TicketPrice: req.TicketPrice,
		DrawAt:      req.DrawAt.UTC(),
		State:       models.RaffleActive,
		OwnerID:     &ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		if err := tx.CreateRaffle(ctx, raffle); err != nil {
			return err
		}
		return insertProducts(ctx, tx, raffle.ID, products, now)
	})
	if err != nil {
		return nil, appError(err, "create raffle")
	}

	logger.Info().
		Int64("raffle_id", raffle.ID).
		Int64("owner_id", ownerID).
		Int("prizes", len(products)).
		Msg("Raffle created")

	return s.Get(ctx, raffle.ID)
}

func (s *raffleService) Get(ctx context.Context, id int64) (*models.RaffleDetail, error) {
	raffle, err := s.repo.GetRaffle(ctx, id)
	if err != nil {
		return nil, lookupError(err, "raffle", id, "get raffle")
	}
	products, err := s.repo.ListProducts(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list products", err)
	}
	stats, err := s.repo.RaffleStats(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("raffle stats", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return &models.RaffleDetail{Raffle: *raffle, Products: products, Stats: stats}, nil
}

func (s *raffleService) List(ctx context.Context, state models.RaffleState) ([]models.RaffleSummary, error) {
	if state != "" && !state.Valid() {
		return nil, apperrors.NewValidationError("state", "must be one of active, finalized, cancelled")
	}

	raffles, err := s.repo.ListRaffles(ctx, state)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list raffles", err)
	}

	out := make([]models.RaffleSummary, 0, len(raffles))
	for _, r := range raffles {
		stats, err := s.repo.RaffleStats(ctx, r.ID)
		if err != nil {
			return nil, apperrors.NewDatabaseError("raffle stats", err)
		}
		out = append(out, models.RaffleSummary{Raffle: r, Stats: stats})
	}
	return out, nil
}

func (s *raffleService) Update(ctx context.Context, p auth.Principal, id int64, req models.UpdateRaffleRequest) (*models.RaffleDetail, error) {
	var products []models.Product
	if req.Products != nil {
		var err error
		if products, err = buildProducts(*req.Products); err != nil {
			return nil, err
		}
	}

	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		raffle, err := tx.GetRaffleForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, "raffle", id, "get raffle")
		}
		if !p.CanManage(raffle.OwnerID) {
			return apperrors.NewForbiddenError("only the raffle owner or an administrator can edit it")
		}
		if err := RequireActive(raffle); err != nil {
			return err
		}

		if req.Title != nil {
			raffle.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			raffle.Description = *req.Description
		}
		if req.ImageURL != nil {
			raffle.ImageURL = *req.ImageURL
		}
		if req.TicketPrice != nil {
			raffle.TicketPrice = *req.TicketPrice
		}
		if req.DrawAt != nil {
			raffle.DrawAt = req.DrawAt.UTC()
		}
		if err := validateRaffleFields(raffle.Title, raffle.Description, raffle.ImageURL, raffle.TicketPrice); err != nil {
			return err
		}

		now := s.now().UTC()
		raffle.UpdatedAt = now
		if err := tx.UpdateRaffle(ctx, raffle); err != nil {
			return err
		}

		if req.Products == nil {
			return nil
		}
		winners, err := tx.CountWinners(ctx, id)
		if err != nil {
			return err
		}
		if winners > 0 {
			return apperrors.NewConflictError("raffle", "prizes cannot be replaced after winners were drawn")
		}
		if err := tx.DeleteProducts(ctx, id); err != nil {
			return err
		}
		return insertProducts(ctx, tx, id, products, now)
	})
	if err != nil {
		return nil, appError(err, "update raffle")
	}

	logger.Info().Int64("raffle_id", id).Int64("user_id", p.UserID).Msg("Raffle updated")
	return s.Get(ctx, id)
}

func (s *raffleService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if !p.IsAdmin() {
		return apperrors.NewForbiddenError("only administrators can delete raffles")
	}
	if err := s.repo.DeleteRaffle(ctx, id); err != nil {
		return lookupError(err, "raffle", id, "delete raffle")
	}
	logger.Info().Int64("raffle_id", id).Int64("user_id", p.UserID).Msg("Raffle deleted")
	return nil
}

func (s *raffleService) Finalize(ctx context.Context, p auth.Principal, id int64) (*models.Raffle, error) {
	return s.transition(ctx, p, id, models.RaffleFinalized)
}

func (s *raffleService) Cancel(ctx context.Context, p auth.Principal, id int64) (*models.Raffle, error) {
	return s.transition(ctx, p, id, models.RaffleCancelled)
}

func (s *raffleService) transition(ctx context.Context, p auth.Principal, id int64, to models.RaffleState) (*models.Raffle, error) {
	var out *models.Raffle
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		raffle, err := tx.GetRaffleForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, "raffle", id, "get raffle")
		}
		if !p.CanManage(raffle.OwnerID) {
			return apperrors.NewForbiddenError("only the raffle owner or an administrator can change its state")
		}
		if err := RequireActive(raffle); err != nil {
			return err
		}

		now := s.now().UTC()
		ok, err := tx.TransitionRaffle(ctx, id, models.RaffleActive, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewInvalidStateError(apperrors.ReasonRaffleClosed, fmt.Sprintf("raffle %d changed state concurrently", id))
		}
		raffle.State = to
		raffle.UpdatedAt = now
		out = raffle
		return nil
	})
	if err != nil {
		return nil, appError(err, "change raffle state")
	}

	logger.Info().
		Int64("raffle_id", id).
		Int64("user_id", p.UserID).
		Str("state", string(to)).
		Msg("Raffle state changed")
	return out, nil
}

func validateRaffleFields(title, description, imageURL string, price int64) error {
	if err := validation.ValidateTitle(title); err != nil {
		return apperrors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidateDescription(description); err != nil {
		return apperrors.NewValidationError("description", err.Error())
	}
	if err := validation.ValidateURL(imageURL); err != nil {
		return apperrors.NewValidationError("image_url", err.Error())
	}
	if err := validation.ValidateNonNegativeInt(price, "ticket_price"); err != nil {
		return apperrors.NewValidationError("ticket_price", err.Error())
	}
	return nil
}

// buildProducts assigns list-order positions to prizes that have none and
// rejects repeated positions.
func buildProducts(in []models.ProductInput) ([]models.Product, error) {
	out := make([]models.Product, 0, len(in))
	seen := make(map[int]struct{}, len(in))
	for i, p := range in {
		if err := validation.ValidateName(p.Name); err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("products[%d].name", i), err.Error())
		}
		pos := p.PrizePosition
		if pos == 0 {
			pos = i + 1
		}
		if pos < 1 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("products[%d].prize_position", i), "must be at least 1")
		}
		if _, dup := seen[pos]; dup {
			return nil, apperrors.NewValidationError(fmt.Sprintf("products[%d].prize_position", i),
				fmt.Sprintf("position %d is used twice", pos))
		}
		seen[pos] = struct{}{}
		out = append(out, models.Product{
			Name:          strings.TrimSpace(p.Name),
			Description:   p.Description,
			ImageURL:      p.ImageURL,
			PrizePosition: pos,
		})
	}
	return out, nil
}

func insertProducts(ctx context.Context, tx repository.Repository, raffleID int64, products []models.Product, now time.Time) error {
	for i := range products {
		products[i].RaffleID = raffleID
		products[i].CreatedAt = now
		if err := tx.CreateProduct(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

package service

import (
	"context"
	"strings"
	"time"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/common/validation"
	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
)

type PromotionService interface {
	ListActive(ctx context.Context, raffleID int64) ([]models.Promotion, error)
	Create(ctx context.Context, p auth.Principal, req models.PromotionRequest) (*models.Promotion, error)
	Update(ctx context.Context, p auth.Principal, id int64, req models.PromotionRequest) (*models.Promotion, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
}

type promotionService struct {
	repo repository.Repository
	now  func() time.Time
}

func NewPromotionService(repo repository.Repository) PromotionService {
	return &promotionService{repo: repo, now: time.Now}
}

func (s *promotionService) ListActive(ctx context.Context, raffleID int64) ([]models.Promotion, error) {
	promos, err := s.repo.ListPromotions(ctx, raffleID, true)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list promotions", err)
	}
	if promos == nil {
		promos = []models.Promotion{}
	}
	return promos, nil
}

func (s *promotionService) Create(ctx context.Context, p auth.Principal, req models.PromotionRequest) (*models.Promotion, error) {
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only administrators can manage promotions")
	}
	if _, err := s.repo.GetRaffle(ctx, req.RaffleID); err != nil {
		return nil, lookupError(err, "raffle", req.RaffleID, "get raffle")
	}

	promo := &models.Promotion{
		RaffleID:        req.RaffleID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		DiscountPercent: req.DiscountPercent,
		MinTickets:      req.MinTickets,
		Active:          true,
		CreatedAt:       s.now().UTC(),
	}
	if req.Active != nil {
		promo.Active = *req.Active
	}
	if promo.MinTickets == 0 {
		promo.MinTickets = 1
	}
	if err := validatePromotion(promo); err != nil {
		return nil, err
	}

	if err := s.repo.CreatePromotion(ctx, promo); err != nil {
		return nil, apperrors.NewDatabaseError("create promotion", err)
	}
	logger.Info().Int64("promotion_id", promo.ID).Int64("raffle_id", promo.RaffleID).Msg("Promotion created")
	return promo, nil
}

func (s *promotionService) Update(ctx context.Context, p auth.Principal, id int64, req models.PromotionRequest) (*models.Promotion, error) {
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only administrators can manage promotions")
	}
	promo, err := s.repo.GetPromotion(ctx, id)
	if err != nil {
		return nil, lookupError(err, "promotion", id, "get promotion")
	}

	if req.Title != "" {
		promo.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		promo.Description = req.Description
	}
	if req.DiscountPercent != 0 {
		promo.DiscountPercent = req.DiscountPercent
	}
	if req.MinTickets != 0 {
		promo.MinTickets = req.MinTickets
	}
	if req.Active != nil {
		promo.Active = *req.Active
	}
	if err := validatePromotion(promo); err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePromotion(ctx, promo); err != nil {
		return nil, lookupError(err, "promotion", id, "update promotion")
	}
	return promo, nil
}

func (s *promotionService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if !p.IsAdmin() {
		return apperrors.NewForbiddenError("only administrators can manage promotions")
	}
	if err := s.repo.DeletePromotion(ctx, id); err != nil {
		return lookupError(err, "promotion", id, "delete promotion")
	}
	return nil
}

func validatePromotion(p *models.Promotion) error {
	if err := validation.ValidateTitle(p.Title); err != nil {
		return apperrors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidateDescription(p.Description); err != nil {
		return apperrors.NewValidationError("description", err.Error())
	}
	if p.DiscountPercent < 0 || p.DiscountPercent > 100 {
		return apperrors.NewValidationError("discount_percent", "must be between 0 and 100")
	}
	if p.MinTickets < 1 {
		return apperrors.NewValidationError("min_tickets", "must be at least 1")
	}
	return nil
}

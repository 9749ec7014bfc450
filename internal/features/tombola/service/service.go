package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/cache"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	sorteoservice "sorteos-backend/internal/features/sorteo/service"
	"sorteos-backend/internal/features/tombola/models"
	"sorteos-backend/internal/features/tombola/repository"
	"sorteos-backend/internal/platform/lock"
	"sorteos-backend/internal/platform/metrics"
	"sorteos-backend/internal/platform/tracing"
	"sorteos-backend/internal/utils/random"
)

type Config struct {
	Uniqueness models.Uniqueness
	LockTTL    time.Duration
	// EnforceSchedule rejects full draws before the raffle's draw_at.
	EnforceSchedule bool
	WinnersTTL      time.Duration
}

// Service is the draw engine. Draws on one raffle are serialized by the
// raffle lock and each runs in a single transaction.
type Service interface {
	// Run awards one winner per prize and finalizes the raffle.
	Run(ctx context.Context, p auth.Principal, raffleID int64) (*models.DrawResult, error)
	// SelectWinners awards count winners for a single prize. The raffle stays active.
	SelectWinners(ctx context.Context, p auth.Principal, req models.SelectWinnersRequest) (*models.DrawResult, error)
	Winners(ctx context.Context, raffleID int64) ([]models.WinnerView, error)
}

type service struct {
	repo    repository.Repository
	locker  lock.Locker
	cache   cache.Cache
	metrics *metrics.Metrics
	tracer  trace.Tracer
	cfg     Config
	now     func() time.Time
}

func NewService(repo repository.Repository, locker lock.Locker, c cache.Cache, m *metrics.Metrics, cfg Config) Service {
	if cfg.Uniqueness == "" {
		cfg.Uniqueness = models.UniqueTicketPrize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.WinnersTTL <= 0 {
		cfg.WinnersTTL = 5 * time.Minute
	}
	return &service{
		repo:    repo,
		locker:  locker,
		cache:   c,
		metrics: m,
		tracer:  tracing.Tracer("sorteos-backend/tombola"),
		cfg:     cfg,
		now:     time.Now,
	}
}

// winnersKey is versioned by the ledger size. The ledger only grows, so a
// listing cached under an older count is never read again.
func winnersKey(raffleID int64, count int) string {
	return fmt.Sprintf("winners:%d:%d", raffleID, count)
}

func (s *service) Run(ctx context.Context, p auth.Principal, raffleID int64) (*models.DrawResult, error) {
	ctx, span := s.tracer.Start(ctx, "tombola.Run", trace.WithAttributes(
		attribute.Int64("raffle.id", raffleID),
		attribute.String("draw.uniqueness", string(s.cfg.Uniqueness)),
	))
	defer span.End()

	result, err := s.withRaffleLock(ctx, raffleID, func() (*models.DrawResult, error) {
		return s.runFull(ctx, p, raffleID)
	})
	s.finish(span, models.ModeFull, result, err)
	return result, err
}

func (s *service) runFull(ctx context.Context, p auth.Principal, raffleID int64) (*models.DrawResult, error) {
	result := &models.DrawResult{RaffleID: raffleID, Mode: models.ModeFull}
	now := s.now().UTC()

	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		raffle, err := s.drawableRaffle(ctx, tx, p, raffleID, now, s.cfg.EnforceSchedule)
		if err != nil {
			return err
		}

		prizes, err := tx.ListPrizes(ctx, raffleID)
		if err != nil {
			return apperrors.NewDatabaseError("list prizes", err)
		}
		if len(prizes) == 0 {
			return apperrors.NewValidationError("products", "raffle has no prizes")
		}

		existing, err := tx.CountWinners(ctx, raffleID)
		if err != nil {
			return apperrors.NewDatabaseError("count winners", err)
		}
		if existing > 0 {
			return apperrors.NewAlreadyDrawnError(raffleID, existing)
		}

		eligible, err := tx.EligibleForRaffle(ctx, raffleID)
		if err != nil {
			return apperrors.NewDatabaseError("list eligible tickets", err)
		}
		if len(eligible) == 0 {
			return apperrors.NewInsufficientPoolError(0, len(prizes))
		}

		pool := random.NewPool(eligible)
		for _, prize := range prizes {
			if pool.Len() == 0 {
				result.Unawarded = append(result.Unawarded, models.UnawardedPrize{
					ProductID:     prize.ID,
					Name:          prize.Name,
					PrizePosition: prize.PrizePosition,
				})
				continue
			}

			ticketID, err := pool.Draw()
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to draw ticket")
			}

			outcome, err := s.persistWinner(ctx, tx, raffle.ID, prize, ticketID, now)
			if err != nil {
				return err
			}
			if outcome.conflict != "" {
				// a full draw starts from an empty ledger, so any duplicate is fatal
				s.metrics.DrawConflict()
				return apperrors.NewConstraintConflictError(outcome.conflict,
					fmt.Sprintf("duplicate winner for prize position %d", prize.PrizePosition))
			}
		}

		ok, err := tx.FinalizeRaffle(ctx, raffleID, now)
		if err != nil {
			return apperrors.NewDatabaseError("finalize raffle", err)
		}
		if !ok {
			return apperrors.NewConflictError("raffle", "state changed during draw")
		}
		result.Finalized = true
		return nil
	})
	if err != nil {
		return nil, appError(err, "run draw")
	}

	result.Winners, err = s.repo.ListWinners(ctx, raffleID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list winners", err)
	}

	logger.Info().
		Int64("raffle_id", raffleID).
		Int64("user_id", p.UserID).
		Int("winners", len(result.Winners)).
		Int("unawarded", len(result.Unawarded)).
		Msg("Raffle drawn")

	return result, nil
}

func (s *service) SelectWinners(ctx context.Context, p auth.Principal, req models.SelectWinnersRequest) (*models.DrawResult, error) {
	ctx, span := s.tracer.Start(ctx, "tombola.SelectWinners", trace.WithAttributes(
		attribute.Int64("raffle.id", req.RaffleID),
		attribute.Int64("prize.id", req.ProductID),
		attribute.Int("draw.count", req.Count),
	))
	defer span.End()

	if req.Count < 1 {
		err := apperrors.NewValidationError("count", "must be at least 1")
		s.finish(span, models.ModePrize, nil, err)
		return nil, err
	}

	result, err := s.withRaffleLock(ctx, req.RaffleID, func() (*models.DrawResult, error) {
		return s.selectForPrize(ctx, p, req)
	})
	s.finish(span, models.ModePrize, result, err)
	return result, err
}

func (s *service) selectForPrize(ctx context.Context, p auth.Principal, req models.SelectWinnersRequest) (*models.DrawResult, error) {
	result := &models.DrawResult{RaffleID: req.RaffleID, Mode: models.ModePrize, Requested: req.Count}
	now := s.now().UTC()
	awarded := make(map[int64]struct{}, req.Count)

	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		raffle, err := s.drawableRaffle(ctx, tx, p, req.RaffleID, now, false)
		if err != nil {
			return err
		}

		prize, err := tx.GetPrize(ctx, req.ProductID)
		if err != nil {
			return lookupError(err, "product", req.ProductID, "get prize")
		}
		if prize.RaffleID != raffle.ID {
			return apperrors.NewNotFoundError("product", req.ProductID)
		}

		eligible, err := tx.EligibleForPrize(ctx, raffle.ID, prize.ID)
		if err != nil {
			return apperrors.NewDatabaseError("list eligible tickets", err)
		}
		if len(eligible) < req.Count {
			return apperrors.NewInsufficientPoolError(len(eligible), req.Count)
		}

		pool := random.NewPool(eligible)
		for len(awarded) < req.Count && pool.Len() > 0 {
			ticketID, err := pool.Draw()
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to draw ticket")
			}

			outcome, err := s.persistWinner(ctx, tx, raffle.ID, *prize, ticketID, now)
			if err != nil {
				return err
			}
			if outcome.conflict != "" {
				s.metrics.DrawConflict()
				result.Skipped++
				logger.Warn().
					Int64("raffle_id", raffle.ID).
					Int64("product_id", prize.ID).
					Int64("ticket_id", ticketID).
					Str("constraint", outcome.conflict).
					Msg("Duplicate winner skipped")
				continue
			}
			awarded[outcome.winner.ID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, appError(err, "select winners")
	}

	all, err := s.repo.ListWinners(ctx, req.RaffleID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list winners", err)
	}
	result.Winners = make([]models.WinnerView, 0, len(awarded))
	for _, w := range all {
		if _, ok := awarded[w.ID]; ok {
			result.Winners = append(result.Winners, w)
		}
	}

	logger.Info().
		Int64("raffle_id", req.RaffleID).
		Int64("product_id", req.ProductID).
		Int64("user_id", p.UserID).
		Int("requested", req.Count).
		Int("winners", len(result.Winners)).
		Int("skipped", result.Skipped).
		Msg("Prize winners selected")

	return result, nil
}

// drawableRaffle locks the raffle row and checks ownership, the schedule
// (when asked) and the lifecycle state.
func (s *service) drawableRaffle(ctx context.Context, tx repository.Repository, p auth.Principal, raffleID int64, now time.Time, schedule bool) (*sorteomodels.Raffle, error) {
	raffle, err := tx.GetRaffleForDraw(ctx, raffleID)
	if err != nil {
		return nil, lookupError(err, "raffle", raffleID, "get raffle")
	}
	if !p.CanManage(raffle.OwnerID) {
		return nil, apperrors.NewForbiddenError("only the raffle owner or an admin can draw")
	}
	if schedule && now.Before(raffle.DrawAt) {
		return nil, apperrors.NewTooEarlyError(raffle.ID, raffle.DrawAt)
	}
	if err := sorteoservice.RequireActive(raffle); err != nil {
		return nil, err
	}
	return raffle, nil
}

// persistResult is the outcome of writing one winner. conflict names the
// uniqueness rule that rejected the row; it is empty when the row was stored.
type persistResult struct {
	winner   *models.Winner
	conflict string
}

func (s *service) persistWinner(ctx context.Context, tx repository.Repository, raffleID int64, prize sorteomodels.Product, ticketID int64, now time.Time) (persistResult, error) {
	if s.cfg.Uniqueness == models.UniquePrizePosition {
		taken, err := tx.PositionTaken(ctx, raffleID, prize.PrizePosition)
		if err != nil {
			return persistResult{}, apperrors.NewDatabaseError("check prize position", err)
		}
		if taken {
			return persistResult{conflict: string(models.UniquePrizePosition)}, nil
		}
	}

	w := &models.Winner{
		RaffleID:      raffleID,
		TicketID:      ticketID,
		ProductID:     prize.ID,
		PrizePosition: prize.PrizePosition,
		CreatedAt:     now,
	}
	inserted, err := tx.InsertWinner(ctx, w)
	if err != nil {
		return persistResult{}, apperrors.NewDatabaseError("insert winner", err)
	}
	if !inserted {
		return persistResult{conflict: string(models.UniqueTicketPrize)}, nil
	}

	ok, err := tx.MarkTicketWinner(ctx, ticketID)
	if err != nil {
		return persistResult{}, apperrors.NewDatabaseError("mark ticket winner", err)
	}
	if !ok {
		return persistResult{}, apperrors.NewConflictError("ticket", fmt.Sprintf("ticket %d is no longer sold", ticketID))
	}
	return persistResult{winner: w}, nil
}

func (s *service) Winners(ctx context.Context, raffleID int64) ([]models.WinnerView, error) {
	exists, err := s.repo.RaffleExists(ctx, raffleID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check raffle", err)
	}
	if !exists {
		return nil, apperrors.NewNotFoundError("raffle", raffleID)
	}

	count, err := s.repo.CountWinners(ctx, raffleID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count winners", err)
	}

	winners, err := cache.GetOrLoad(ctx, s.cache, winnersKey(raffleID, count), s.cfg.WinnersTTL, func() ([]models.WinnerView, error) {
		return s.repo.ListWinners(ctx, raffleID)
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list winners", err)
	}
	return winners, nil
}

func (s *service) withRaffleLock(ctx context.Context, raffleID int64, fn func() (*models.DrawResult, error)) (*models.DrawResult, error) {
	release, err := s.locker.Acquire(ctx, lock.RaffleKey(raffleID), s.cfg.LockTTL)
	if stderrors.Is(err, lock.ErrLocked) {
		return nil, apperrors.NewConflictError("raffle", "draw already in progress")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to acquire raffle lock")
	}
	defer release()
	return fn()
}

func (s *service) finish(span trace.Span, mode string, result *models.DrawResult, err error) {
	if err != nil {
		code := string(apperrors.ErrCodeInternal)
		if appErr, ok := apperrors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		s.metrics.ObserveDraw(mode, code, 0)
		return
	}
	span.SetAttributes(attribute.Int("draw.winners", len(result.Winners)))
	s.metrics.ObserveDraw(mode, "ok", len(result.Winners))
}

func lookupError(err error, resource string, id int64, op string) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return apperrors.NewDatabaseError(op, err)
}

func appError(err error, op string) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.NewDatabaseError(op, err)
}

package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/features/payment/models"
	"sorteos-backend/internal/features/payment/provider"
	"sorteos-backend/internal/features/payment/repository"
	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/platform/metrics"
)

// Purchases is the part of the ticket purchase flow payments drive.
type Purchases interface {
	Quote(ctx context.Context, ticketIDs []int64) (*sorteomodels.Quote, error)
	ConfirmPurchase(ctx context.Context, buyerID int64, ticketIDs []int64) (*sorteomodels.PurchaseResult, error)
}

type Service interface {
	Checkout(ctx context.Context, p auth.Principal, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	// Confirm asks the provider about the payment and completes or fails it.
	Confirm(ctx context.Context, p auth.Principal, paymentID int64, token string) (*models.Completion, error)
	// Complete marks a pending payment completed and sells its tickets.
	// Completing an already completed payment is a no-op. A partial sale
	// returns the completion together with a PARTIAL_SALE error.
	Complete(ctx context.Context, paymentID int64, txID string) (*models.Completion, error)
	Fail(ctx context.Context, paymentID int64, reason string) (*models.Payment, error)
	Refund(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error)
	Get(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error)
	ListMine(ctx context.Context, userID int64) ([]models.Payment, error)
}

type service struct {
	repo      repository.Repository
	purchases Purchases
	providers *provider.Registry
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(repo repository.Repository, purchases Purchases, providers *provider.Registry, m *metrics.Metrics) Service {
	return &service{
		repo:      repo,
		purchases: purchases,
		providers: providers,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *service) Checkout(ctx context.Context, p auth.Principal, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	prov, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, apperrors.NewValidationError("provider", err.Error())
	}

	quote, err := s.purchases.Quote(ctx, req.TicketIDs)
	if err != nil {
		return nil, err
	}
	ticketIDs := make([]int64, 0, len(quote.Tickets))
	for _, t := range quote.Tickets {
		ticketIDs = append(ticketIDs, t.ID)
	}

	reference := "SRT-" + uuid.NewString()
	session, err := prov.Create(ctx, provider.Checkout{
		Reference: reference,
		Amount:    quote.Amount,
		TicketIDs: ticketIDs,
		BuyerID:   p.UserID,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "failed to create payment session")
	}

	now := s.now().UTC()
	buyer, raffle := p.UserID, quote.RaffleID
	payment := &models.Payment{
		UserID:        &buyer,
		RaffleID:      &raffle,
		Amount:        quote.Amount,
		Provider:      prov.Name(),
		TransactionID: session.ExternalID,
		Reference:     reference,
		State:         models.PaymentPending,
		Payload:       models.Payload{TicketIDs: ticketIDs, Reference: reference},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, apperrors.NewDatabaseError("create payment", err)
	}
	s.metrics.Payment(payment.Provider, string(payment.State))

	logger.Info().
		Int64("payment_id", payment.ID).
		Int64("user_id", p.UserID).
		Int64("raffle_id", raffle).
		Str("provider", payment.Provider).
		Int64("amount", payment.Amount).
		Int("tickets", len(ticketIDs)).
		Msg("Payment created")

	return &models.CheckoutResponse{
		PaymentID:   payment.ID,
		Reference:   reference,
		ApprovalURL: session.ApprovalURL,
		Amount:      payment.Amount,
	}, nil
}

func (s *service) Confirm(ctx context.Context, p auth.Principal, paymentID int64, token string) (*models.Completion, error) {
	payment, err := s.visible(ctx, p, paymentID)
	if err != nil {
		return nil, err
	}
	switch payment.State {
	case models.PaymentCompleted:
		return &models.Completion{Payment: payment}, nil
	case models.PaymentPending:
	default:
		return nil, stateError(payment)
	}

	prov, err := s.providers.Get(payment.Provider)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "payment provider not configured")
	}

	outcome, err := prov.Confirm(ctx, provider.Session{
		Provider:   payment.Provider,
		Reference:  payment.Reference,
		ExternalID: payment.TransactionID,
	}, token)
	if err != nil {
		if _, failErr := s.Fail(ctx, paymentID, err.Error()); failErr != nil {
			logger.Error().Err(failErr).Int64("payment_id", paymentID).Msg("Failed to mark payment failed")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "payment provider confirmation failed")
	}

	if !outcome.Approved {
		failed, err := s.Fail(ctx, paymentID, outcome.Reason)
		if err != nil {
			return nil, err
		}
		return &models.Completion{Payment: failed}, nil
	}
	return s.Complete(ctx, paymentID, outcome.TransactionID)
}

func (s *service) Complete(ctx context.Context, paymentID int64, txID string) (*models.Completion, error) {
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch payment.State {
	case models.PaymentCompleted:
		return &models.Completion{Payment: payment}, nil
	case models.PaymentPending:
	default:
		return nil, stateError(payment)
	}
	if payment.UserID == nil {
		return nil, apperrors.NewInvalidStateError(apperrors.ReasonPaymentState,
			fmt.Sprintf("payment %d has no buyer", paymentID))
	}

	now := s.now().UTC()
	var (
		purchase *sorteomodels.PurchaseResult
		saleErr  error
		lost     bool
	)
	// The state change and the sale commit together. A fault in either rolls
	// both back, leaving the payment pending for a later retry.
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		ok, err := tx.Transition(ctx, paymentID, models.PaymentPending, models.PaymentCompleted, txID, now)
		if err != nil {
			return apperrors.NewDatabaseError("complete payment", err)
		}
		if !ok {
			lost = true
			return nil
		}

		purchase, saleErr = s.purchases.ConfirmPurchase(ctx, *payment.UserID, payment.Payload.TicketIDs)
		if saleErr == nil {
			return nil
		}
		if isInternal(saleErr) {
			return saleErr
		}
		if err := tx.MarkNeedsReview(ctx, paymentID, now); err != nil {
			return apperrors.NewDatabaseError("flag payment for review", err)
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("payment_id", paymentID).Msg("Payment completion rolled back")
		return nil, err
	}

	if lost {
		// lost a race with another completion or failure
		current, err := s.get(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if current.State == models.PaymentCompleted {
			return &models.Completion{Payment: current}, nil
		}
		return nil, stateError(current)
	}

	payment.State = models.PaymentCompleted
	payment.UpdatedAt = now
	if txID != "" {
		payment.TransactionID = txID
	}
	s.metrics.Payment(payment.Provider, string(payment.State))

	if saleErr != nil {
		payment.NeedsReview = true
		logger.Warn().
			Err(saleErr).
			Int64("payment_id", paymentID).
			Int64("user_id", *payment.UserID).
			Msg("Payment completed but tickets were not all sold")
		return &models.Completion{Payment: payment, Purchase: purchase}, saleErr
	}

	logger.Info().
		Int64("payment_id", paymentID).
		Int64("user_id", *payment.UserID).
		Int("tickets", len(purchase.Sold)).
		Msg("Payment completed")

	return &models.Completion{Payment: payment, Purchase: purchase}, nil
}

func isInternal(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return !ok || appErr.IsInternal()
}

func (s *service) Fail(ctx context.Context, paymentID int64, reason string) (*models.Payment, error) {
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch payment.State {
	case models.PaymentFailed:
		return payment, nil
	case models.PaymentPending:
	default:
		return nil, stateError(payment)
	}

	now := s.now().UTC()
	ok, err := s.repo.Transition(ctx, paymentID, models.PaymentPending, models.PaymentFailed, "", now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("fail payment", err)
	}
	if !ok {
		current, err := s.get(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if current.State == models.PaymentFailed {
			return current, nil
		}
		return nil, stateError(current)
	}

	payment.State = models.PaymentFailed
	payment.UpdatedAt = now
	s.metrics.Payment(payment.Provider, string(payment.State))
	logger.Info().Int64("payment_id", paymentID).Str("reason", reason).Msg("Payment failed")
	return payment, nil
}

func (s *service) Refund(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error) {
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only admins can refund payments")
	}
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.State != models.PaymentCompleted {
		return nil, stateError(payment)
	}

	now := s.now().UTC()
	ok, err := s.repo.Transition(ctx, paymentID, models.PaymentCompleted, models.PaymentRefunded, "", now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("refund payment", err)
	}
	if !ok {
		return nil, apperrors.NewConflictError("payment", "state changed concurrently")
	}

	payment.State = models.PaymentRefunded
	payment.UpdatedAt = now
	s.metrics.Payment(payment.Provider, string(payment.State))
	logger.Info().Int64("payment_id", paymentID).Int64("admin_id", p.UserID).Msg("Payment refunded")
	return payment, nil
}

func (s *service) Get(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error) {
	return s.visible(ctx, p, paymentID)
}

func (s *service) ListMine(ctx context.Context, userID int64) ([]models.Payment, error) {
	payments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list payments", err)
	}
	return payments, nil
}

func (s *service) get(ctx context.Context, paymentID int64) (*models.Payment, error) {
	payment, err := s.repo.Get(ctx, paymentID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("payment", paymentID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get payment", err)
	}
	return payment, nil
}

// visible loads a payment the caller may see: their own, or any for admins.
func (s *service) visible(ctx context.Context, p auth.Principal, paymentID int64) (*models.Payment, error) {
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && (payment.UserID == nil || *payment.UserID != p.UserID) {
		return nil, apperrors.NewForbiddenError("payment belongs to another user")
	}
	return payment, nil
}

func stateError(p *models.Payment) error {
	return apperrors.NewInvalidStateError(apperrors.ReasonPaymentState,
		fmt.Sprintf("payment %d is %s", p.ID, p.State)).
		WithDetail("payment_id", p.ID).
		WithDetail("state", string(p.State))
}

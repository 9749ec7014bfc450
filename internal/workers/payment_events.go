package workers

import (
	"context"

	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/common/logger"
	paymentservice "sorteos-backend/internal/features/payment/service"
)

// ServiceEvents applies stream events through the payment service.
type ServiceEvents struct {
	svc paymentservice.Service
}

func NewServiceEvents(svc paymentservice.Service) *ServiceEvents {
	return &ServiceEvents{svc: svc}
}

func (e *ServiceEvents) CompleteEvent(ctx context.Context, paymentID int64, transactionID string) error {
	_, err := e.svc.Complete(ctx, paymentID, transactionID)
	return retryable(err, paymentID)
}

func (e *ServiceEvents) FailEvent(ctx context.Context, paymentID int64, reason string) error {
	_, err := e.svc.Fail(ctx, paymentID, reason)
	return retryable(err, paymentID)
}

// retryable drops business outcomes so the event is acked; only faults are
// returned and left pending.
func retryable(err error, paymentID int64) error {
	if err == nil {
		return nil
	}
	appErr, ok := apperrors.AsAppError(err)
	if ok && !appErr.IsInternal() {
		logger.Warn().
			Err(err).
			Int64("payment_id", paymentID).
			Str("code", string(appErr.Code)).
			Msg("Payment event not applied")
		return nil
	}
	return err
}

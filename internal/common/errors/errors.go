package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode is a stable machine-readable error kind.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"

	// Raffle lifecycle and draws
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeInsufficientPool   ErrorCode = "INSUFFICIENT_POOL"
	ErrCodeAlreadyDrawn       ErrorCode = "ALREADY_DRAWN"
	ErrCodeConstraintConflict ErrorCode = "CONSTRAINT_CONFLICT"

	// Inventory and purchases
	ErrCodePartialSale           ErrorCode = "PARTIAL_SALE"
	ErrCodeQuotaExceeded         ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeInsufficientInventory ErrorCode = "INSUFFICIENT_INVENTORY"

	// Users
	ErrCodeEmailTaken         ErrorCode = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// Infrastructure
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeCacheError        ErrorCode = "CACHE_ERROR"
	ErrCodeExternalAPI       ErrorCode = "EXTERNAL_API_ERROR"
)

// Reasons attached to ErrCodeInvalidState under the "reason" detail.
const (
	ReasonTooEarly           = "TOO_EARLY"
	ReasonAlreadyFinalized   = "ALREADY_FINALIZED"
	ReasonRaffleClosed       = "RAFFLE_CLOSED"
	ReasonTicketNotAvailable = "TICKET_NOT_AVAILABLE"
	ReasonPaymentState       = "PAYMENT_STATE"
)

// AppError is the typed error returned by services and rendered by the HTTP layer.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeBadRequest
}

func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized || e.Code == ErrCodeForbidden || e.Code == ErrCodeInvalidCredentials
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeDatabaseError ||
		e.Code == ErrCodeTransactionFailed ||
		e.Code == ErrCodeConnectionFailed ||
		e.Code == ErrCodeCacheError
}

// IsDomain reports whether the error is an expected business outcome
// (state conflicts, pool and quota limits) rather than a fault.
func (e *AppError) IsDomain() bool {
	switch e.Code {
	case ErrCodeInvalidState, ErrCodeInsufficientPool, ErrCodeAlreadyDrawn,
		ErrCodeConstraintConflict, ErrCodePartialSale, ErrCodeQuotaExceeded,
		ErrCodeInsufficientInventory, ErrCodeConflict, ErrCodeEmailTaken:
		return true
	}
	return false
}

// Reason returns the "reason" detail, if any.
func (e *AppError) Reason() string {
	if e.Details == nil {
		return ""
	}
	r, _ := e.Details["reason"].(string)
	return r
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

func (e *AppError) WithStack() *AppError {
	e.Stack = getStackTrace()
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause and records the call stack.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	appErr.Stack = getStackTrace()
	return appErr
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewBadRequestError(message string) *AppError {
	return New(ErrCodeBadRequest, message)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewCacheError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCacheError, fmt.Sprintf("Cache operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewInvalidStateError(reason, message string) *AppError {
	return New(ErrCodeInvalidState, message).WithDetail("reason", reason)
}

func NewTooEarlyError(raffleID int64, drawAt time.Time) *AppError {
	return NewInvalidStateError(ReasonTooEarly,
		fmt.Sprintf("raffle %d cannot be drawn before %s", raffleID, drawAt.UTC().Format(time.RFC3339))).
		WithDetail("raffle_id", raffleID).
		WithDetail("draw_at", drawAt.UTC())
}

func NewAlreadyFinalizedError(raffleID int64) *AppError {
	return NewInvalidStateError(ReasonAlreadyFinalized, fmt.Sprintf("raffle %d is already finalized", raffleID)).
		WithDetail("raffle_id", raffleID)
}

func NewRaffleClosedError(raffleID int64, state string) *AppError {
	return NewInvalidStateError(ReasonRaffleClosed, fmt.Sprintf("raffle %d is %s", raffleID, state)).
		WithDetail("raffle_id", raffleID).
		WithDetail("state", state)
}

func NewInsufficientPoolError(eligible, requested int) *AppError {
	return New(ErrCodeInsufficientPool, fmt.Sprintf("%d eligible, %d requested", eligible, requested)).
		WithDetail("eligible", eligible).
		WithDetail("requested", requested)
}

func NewAlreadyDrawnError(raffleID int64, existing int) *AppError {
	return New(ErrCodeAlreadyDrawn, fmt.Sprintf("raffle %d already has %d winner(s)", raffleID, existing)).
		WithDetail("raffle_id", raffleID).
		WithDetail("existing_winners", existing)
}

func NewConstraintConflictError(constraint, message string) *AppError {
	return New(ErrCodeConstraintConflict, message).WithDetail("constraint", constraint)
}

func NewPartialSaleError(sold, unsold []int64) *AppError {
	return New(ErrCodePartialSale,
		fmt.Sprintf("%d of %d tickets sold", len(sold), len(sold)+len(unsold))).
		WithDetail("sold_ids", sold).
		WithDetail("unsold_ids", unsold)
}

func NewQuotaExceededError(quota, existing, requested int) *AppError {
	return New(ErrCodeQuotaExceeded,
		fmt.Sprintf("only %d tickets per month allowed; %d already exist this month", quota, existing)).
		WithDetail("quota", quota).
		WithDetail("existing", existing).
		WithDetail("requested", requested)
}

func NewInsufficientInventoryError(available, requested int) *AppError {
	return New(ErrCodeInsufficientInventory,
		fmt.Sprintf("requested %d tickets but only %d are available", requested, available)).
		WithDetail("available", available).
		WithDetail("requested", requested)
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

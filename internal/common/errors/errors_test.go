package errors

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientPoolMessage(t *testing.T) {
	err := NewInsufficientPoolError(5, 10)

	assert.Equal(t, ErrCodeInsufficientPool, err.Code)
	assert.Equal(t, "5 eligible, 10 requested", err.Message)
	assert.Equal(t, 5, err.Details["eligible"])
	assert.Equal(t, 10, err.Details["requested"])
}

func TestInvalidStateReasons(t *testing.T) {
	tooEarly := NewTooEarlyError(7, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, ErrCodeInvalidState, tooEarly.Code)
	assert.Equal(t, ReasonTooEarly, tooEarly.Reason())

	finalized := NewAlreadyFinalizedError(7)
	assert.Equal(t, ReasonAlreadyFinalized, finalized.Reason())
	assert.Contains(t, finalized.Error(), "raffle 7 is already finalized")
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	base := NewQuotaExceededError(1000, 990, 20)
	wrapped := fmt.Errorf("generate: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, appErr)
	assert.True(t, HasCode(wrapped, ErrCodeQuotaExceeded))
	assert.False(t, HasCode(wrapped, ErrCodeNotFound))

	_, ok = AsAppError(nil)
	assert.False(t, ok)
}

func TestWrapKeepsCause(t *testing.T) {
	err := NewDatabaseError("load raffle", sql.ErrConnDone)

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.True(t, err.IsInternal())
	assert.NotEmpty(t, err.Stack)
}

func TestPartialSaleDetails(t *testing.T) {
	err := NewPartialSaleError([]int64{1, 2}, []int64{3})

	assert.Equal(t, "2 of 3 tickets sold", err.Message)
	assert.Equal(t, []int64{3}, err.Details["unsold_ids"])
	assert.True(t, err.IsDomain())
}

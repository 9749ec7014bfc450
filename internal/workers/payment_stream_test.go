package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sorteos-backend/internal/common/errors"
)

type recordedEvent struct {
	kind   string
	id     int64
	detail string
}

type fakeEvents struct {
	events []recordedEvent
	err    error
}

func (f *fakeEvents) CompleteEvent(_ context.Context, id int64, txID string) error {
	f.events = append(f.events, recordedEvent{kind: EventPaymentCompleted, id: id, detail: txID})
	return f.err
}

func (f *fakeEvents) FailEvent(_ context.Context, id int64, reason string) error {
	f.events = append(f.events, recordedEvent{kind: EventPaymentFailed, id: id, detail: reason})
	return f.err
}

func TestProcessMessageDispatches(t *testing.T) {
	ctx := context.Background()
	events := &fakeEvents{}
	w := NewPaymentStreamWorker(nil, events, StreamConfig{})

	require.NoError(t, w.processMessage(ctx, map[string]interface{}{
		"type": EventPaymentCompleted, "payment_id": "12", "transaction_id": "PP-1",
	}))
	require.NoError(t, w.processMessage(ctx, map[string]interface{}{
		"type": EventPaymentFailed, "payment_id": "13", "reason": "card declined",
	}))

	assert.Equal(t, []recordedEvent{
		{kind: EventPaymentCompleted, id: 12, detail: "PP-1"},
		{kind: EventPaymentFailed, id: 13, detail: "card declined"},
	}, events.events)
}

func TestProcessMessageDropsMalformed(t *testing.T) {
	ctx := context.Background()
	events := &fakeEvents{}
	w := NewPaymentStreamWorker(nil, events, StreamConfig{})

	for _, values := range []map[string]interface{}{
		{"type": EventPaymentCompleted},
		{"type": EventPaymentCompleted, "payment_id": "abc"},
		{"type": EventPaymentCompleted, "payment_id": "-4"},
		{"type": "payment_disputed", "payment_id": "4"},
	} {
		assert.NoError(t, w.processMessage(ctx, values))
	}
	assert.Empty(t, events.events)
}

func TestProcessMessageSurfacesHandlerError(t *testing.T) {
	boom := errors.New("connection reset")
	w := NewPaymentStreamWorker(nil, &fakeEvents{err: boom}, StreamConfig{})

	err := w.processMessage(context.Background(), map[string]interface{}{
		"type": EventPaymentFailed, "payment_id": "1",
	})
	assert.ErrorIs(t, err, boom)
}

func TestRetryable(t *testing.T) {
	assert.NoError(t, retryable(nil, 1))
	assert.NoError(t, retryable(apperrors.NewNotFoundError("payment", 1), 1))
	assert.NoError(t, retryable(apperrors.NewPartialSaleError([]int64{1}, []int64{2}), 1))

	dbErr := apperrors.NewDatabaseError("complete payment", errors.New("timeout"))
	assert.Error(t, retryable(dbErr, 1))

	plain := errors.New("boom")
	assert.ErrorIs(t, retryable(plain, 1), plain)
}

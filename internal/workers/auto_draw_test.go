package workers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	sorteomodels "sorteos-backend/internal/features/sorteo/models"
	tombolamodels "sorteos-backend/internal/features/tombola/models"
)

type fakeLister struct {
	raffles []sorteomodels.RaffleSummary
	err     error
}

func (f *fakeLister) List(_ context.Context, state sorteomodels.RaffleState) ([]sorteomodels.RaffleSummary, error) {
	if state != sorteomodels.RaffleActive {
		return nil, errors.New("unexpected state")
	}
	return f.raffles, f.err
}

type fakeDrawer struct {
	mu    sync.Mutex
	calls []int64
	errs  map[int64]error
}

func (f *fakeDrawer) Run(_ context.Context, p auth.Principal, raffleID int64) (*tombolamodels.DrawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !p.IsAdmin() {
		return nil, errors.New("expected admin principal")
	}
	f.calls = append(f.calls, raffleID)
	if err := f.errs[raffleID]; err != nil {
		return nil, err
	}
	return &tombolamodels.DrawResult{RaffleID: raffleID, Mode: tombolamodels.ModeFull, Finalized: true}, nil
}

func (f *fakeDrawer) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int64(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func summary(id int64, drawAt time.Time) sorteomodels.RaffleSummary {
	return sorteomodels.RaffleSummary{Raffle: sorteomodels.Raffle{ID: id, DrawAt: drawAt, State: sorteomodels.RaffleActive}}
}

func TestAutoDrawRunsDueRaffles(t *testing.T) {
	now := time.Date(2025, 10, 31, 20, 0, 0, 0, time.UTC)
	lister := &fakeLister{raffles: []sorteomodels.RaffleSummary{
		summary(1, now.Add(-time.Hour)),
		summary(2, now.Add(time.Hour)),
		summary(3, now),
	}}
	drawer := &fakeDrawer{}

	w := NewAutoDrawWorker(lister, drawer, time.Minute)
	w.now = func() time.Time { return now }

	require.NoError(t, w.processDue(context.Background()))
	assert.Equal(t, []int64{1, 3}, drawer.called())
}

func TestAutoDrawSkipsBusinessFailures(t *testing.T) {
	now := time.Now()
	lister := &fakeLister{raffles: []sorteomodels.RaffleSummary{
		summary(1, now.Add(-time.Hour)),
		summary(2, now.Add(-time.Hour)),
		summary(3, now.Add(-time.Hour)),
	}}
	drawer := &fakeDrawer{errs: map[int64]error{
		1: apperrors.NewInsufficientPoolError(0, 2),
		2: apperrors.NewConflictError("raffle", "draw already in progress"),
		3: apperrors.NewDatabaseError("run draw", errors.New("timeout")),
	}}

	w := NewAutoDrawWorker(lister, drawer, time.Minute)
	require.NoError(t, w.processDue(context.Background()))
	require.NoError(t, w.processDue(context.Background()))

	// raffle 1 is parked after its first failure; 2 and 3 are retried
	assert.Equal(t, []int64{1, 2, 2, 3, 3}, drawer.called())
}

func TestAutoDrawListError(t *testing.T) {
	boom := errors.New("boom")
	w := NewAutoDrawWorker(&fakeLister{err: boom}, &fakeDrawer{}, 0)
	assert.ErrorIs(t, w.processDue(context.Background()), boom)
	assert.Equal(t, time.Minute, w.interval)
}

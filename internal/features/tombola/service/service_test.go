package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/cache"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/features/tombola/models"
	"sorteos-backend/internal/features/tombola/repository/sqlstore"
	"sorteos-backend/internal/platform/lock"
	"sorteos-backend/internal/platform/sqldb"
	"sorteos-backend/internal/testutil"
)

var drawDay = time.Date(2025, 12, 24, 20, 0, 0, 0, time.UTC)

type fixture struct {
	db       *sqldb.DB
	svc      Service
	admin    auth.Principal
	owner    auth.Principal
	stranger auth.Principal
	buyer    int64
}

func newFixture(t *testing.T, uniqueness models.Uniqueness) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	lru, err := cache.NewLRUCache(16)
	require.NoError(t, err)

	svc := NewService(sqlstore.New(db), lock.NewLocal(), lru, nil, Config{
		Uniqueness:      uniqueness,
		EnforceSchedule: true,
	})
	svc.(*service).now = func() time.Time { return drawDay }

	return &fixture{
		db:       db,
		svc:      svc,
		admin:    auth.Principal{UserID: testutil.CreateUser(t, db, "admin", "admin"), Role: auth.RoleAdmin},
		owner:    auth.Principal{UserID: testutil.CreateUser(t, db, "owner", "user"), Role: auth.RoleUser},
		stranger: auth.Principal{UserID: testutil.CreateUser(t, db, "stranger", "user"), Role: auth.RoleUser},
		buyer:    testutil.CreateUser(t, db, "buyer", "user"),
	}
}

// raffle creates a raffle due an hour before drawDay with the given prize count.
func (f *fixture) raffle(t *testing.T, prizes, sold int) (raffleID int64, productIDs []int64) {
	t.Helper()
	raffleID = testutil.CreateRaffle(t, f.db, f.owner.UserID, drawDay.Add(-time.Hour))
	for i := 0; i < prizes; i++ {
		productIDs = append(productIDs, testutil.CreateProduct(t, f.db, raffleID, "premio", i+1))
	}
	if sold > 0 {
		testutil.CreateTickets(t, f.db, raffleID, sold, "sold", f.buyer)
	}
	return raffleID, productIDs
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func TestRunAwardsEveryPrizeAndFinalizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, products := f.raffle(t, 3, 10)
	testutil.CreateTickets(t, f.db, raffleID, 5, "available", 0)

	res, err := f.svc.Run(ctx, f.owner, raffleID)
	require.NoError(t, err)

	assert.True(t, res.Finalized)
	assert.Equal(t, models.ModeFull, res.Mode)
	assert.Empty(t, res.Unawarded)
	require.Len(t, res.Winners, 3)

	tickets := map[int64]bool{}
	for i, w := range res.Winners {
		assert.Equal(t, products[i], w.ProductID)
		assert.Equal(t, i+1, w.PrizePosition)
		assert.Equal(t, "winner", testutil.TicketState(t, f.db, w.TicketID))
		require.NotNil(t, w.OwnerID)
		assert.Equal(t, f.buyer, *w.OwnerID)
		tickets[w.TicketID] = true
	}
	assert.Len(t, tickets, 3, "a ticket wins at most once per full draw")

	assert.Equal(t, "finalized", testutil.RaffleState(t, f.db, raffleID))
	assert.Equal(t, 7, testutil.Count(t, f.db, `SELECT COUNT(*) FROM tickets WHERE raffle_id = ? AND state = 'sold'`, raffleID))
	assert.Equal(t, 5, testutil.Count(t, f.db, `SELECT COUNT(*) FROM tickets WHERE raffle_id = ? AND state = 'available'`, raffleID))
}

func TestRunWithFewerTicketsThanPrizesLeavesPrizesUnawarded(t *testing.T) {
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, products := f.raffle(t, 3, 2)

	res, err := f.svc.Run(context.Background(), f.admin, raffleID)
	require.NoError(t, err)

	require.Len(t, res.Winners, 2)
	require.Len(t, res.Unawarded, 1)
	assert.Equal(t, products[2], res.Unawarded[0].ProductID)
	assert.Equal(t, 3, res.Unawarded[0].PrizePosition)
	assert.True(t, res.Finalized)
}

func TestRunWithoutSoldTicketsChangesNothing(t *testing.T) {
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, _ := f.raffle(t, 2, 0)
	testutil.CreateTickets(t, f.db, raffleID, 4, "available", 0)

	_, err := f.svc.Run(context.Background(), f.owner, raffleID)
	appErr := requireCode(t, err, apperrors.ErrCodeInsufficientPool)
	assert.Equal(t, "0 eligible, 2 requested", appErr.Message)

	assert.Equal(t, "active", testutil.RaffleState(t, f.db, raffleID))
	assert.Zero(t, testutil.Count(t, f.db, `SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID))
}

func TestRunGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)

	_, err := f.svc.Run(ctx, f.admin, 9999)
	requireCode(t, err, apperrors.ErrCodeNotFound)

	raffleID, _ := f.raffle(t, 1, 3)
	_, err = f.svc.Run(ctx, f.stranger, raffleID)
	requireCode(t, err, apperrors.ErrCodeForbidden)

	noPrizes, _ := f.raffle(t, 0, 3)
	_, err = f.svc.Run(ctx, f.owner, noPrizes)
	requireCode(t, err, apperrors.ErrCodeValidation)

	early := testutil.CreateRaffle(t, f.db, f.owner.UserID, drawDay.Add(time.Hour))
	testutil.CreateProduct(t, f.db, early, "premio", 1)
	testutil.CreateTickets(t, f.db, early, 2, "sold", f.buyer)
	_, err = f.svc.Run(ctx, f.owner, early)
	appErr := requireCode(t, err, apperrors.ErrCodeInvalidState)
	assert.Equal(t, apperrors.ReasonTooEarly, appErr.Reason())

	cancelled, _ := f.raffle(t, 1, 3)
	testutil.SetRaffleState(t, f.db, cancelled, "cancelled")
	_, err = f.svc.Run(ctx, f.owner, cancelled)
	appErr = requireCode(t, err, apperrors.ErrCodeInvalidState)
	assert.Equal(t, apperrors.ReasonRaffleClosed, appErr.Reason())
}

func TestRunTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, _ := f.raffle(t, 2, 5)

	_, err := f.svc.Run(ctx, f.owner, raffleID)
	require.NoError(t, err)

	_, err = f.svc.Run(ctx, f.owner, raffleID)
	appErr := requireCode(t, err, apperrors.ErrCodeInvalidState)
	assert.Equal(t, apperrors.ReasonAlreadyFinalized, appErr.Reason())
	assert.Equal(t, 2, testutil.Count(t, f.db, `SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID))
}

func TestRunAfterPrizeDrawIsAlreadyDrawn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, products := f.raffle(t, 2, 5)

	_, err := f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[0], Count: 1})
	require.NoError(t, err)

	_, err = f.svc.Run(ctx, f.owner, raffleID)
	requireCode(t, err, apperrors.ErrCodeAlreadyDrawn)
	assert.Equal(t, "active", testutil.RaffleState(t, f.db, raffleID))
}

func TestRunScheduleCanBeDisabled(t *testing.T) {
	f := newFixture(t, models.UniqueTicketPrize)
	f.svc.(*service).cfg.EnforceSchedule = false

	raffleID := testutil.CreateRaffle(t, f.db, f.owner.UserID, drawDay.Add(24*time.Hour))
	testutil.CreateProduct(t, f.db, raffleID, "premio", 1)
	testutil.CreateTickets(t, f.db, raffleID, 1, "sold", f.buyer)

	res, err := f.svc.Run(context.Background(), f.owner, raffleID)
	require.NoError(t, err)
	assert.Len(t, res.Winners, 1)
}

func TestRunDuplicatePositionRollsBack(t *testing.T) {
	f := newFixture(t, models.UniquePrizePosition)
	raffleID := testutil.CreateRaffle(t, f.db, f.owner.UserID, drawDay.Add(-time.Hour))
	testutil.CreateProduct(t, f.db, raffleID, "primero", 1)
	testutil.CreateProduct(t, f.db, raffleID, "primero bis", 1)
	testutil.CreateTickets(t, f.db, raffleID, 4, "sold", f.buyer)

	_, err := f.svc.Run(context.Background(), f.owner, raffleID)
	requireCode(t, err, apperrors.ErrCodeConstraintConflict)

	assert.Zero(t, testutil.Count(t, f.db, `SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID))
	assert.Zero(t, testutil.Count(t, f.db, `SELECT COUNT(*) FROM tickets WHERE raffle_id = ? AND state = 'winner'`, raffleID))
	assert.Equal(t, "active", testutil.RaffleState(t, f.db, raffleID))
}

func TestSelectWinnersKeepsRaffleActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, products := f.raffle(t, 2, 5)

	res, err := f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[0], Count: 3})
	require.NoError(t, err)

	assert.Equal(t, models.ModePrize, res.Mode)
	assert.Equal(t, 3, res.Requested)
	assert.False(t, res.Finalized)
	require.Len(t, res.Winners, 3)
	for _, w := range res.Winners {
		assert.Equal(t, products[0], w.ProductID)
	}
	assert.Equal(t, "active", testutil.RaffleState(t, f.db, raffleID))

	// winning tickets leave the pool for the other prize
	_, err = f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[1], Count: 3})
	appErr := requireCode(t, err, apperrors.ErrCodeInsufficientPool)
	assert.Equal(t, "2 eligible, 3 requested", appErr.Message)
}

func TestSelectWinnersValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, products := f.raffle(t, 1, 5)
	otherID, otherProducts := f.raffle(t, 1, 1)

	_, err := f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[0], Count: 0})
	requireCode(t, err, apperrors.ErrCodeValidation)

	_, err = f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[0], Count: 10})
	appErr := requireCode(t, err, apperrors.ErrCodeInsufficientPool)
	assert.Equal(t, "5 eligible, 10 requested", appErr.Message)

	// a prize of another raffle is reported as missing
	_, err = f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: otherProducts[0], Count: 1})
	requireCode(t, err, apperrors.ErrCodeNotFound)

	_, err = f.svc.SelectWinners(ctx, f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: 9999, Count: 1})
	requireCode(t, err, apperrors.ErrCodeNotFound)

	_, err = f.svc.SelectWinners(ctx, f.stranger, models.SelectWinnersRequest{RaffleID: otherID, ProductID: otherProducts[0], Count: 1})
	requireCode(t, err, apperrors.ErrCodeForbidden)

	testutil.SetRaffleState(t, f.db, otherID, "finalized")
	_, err = f.svc.SelectWinners(ctx, f.admin, models.SelectWinnersRequest{RaffleID: otherID, ProductID: otherProducts[0], Count: 1})
	appErr = requireCode(t, err, apperrors.ErrCodeInvalidState)
	assert.Equal(t, apperrors.ReasonAlreadyFinalized, appErr.Reason())
}

func TestSelectWinnersSkipsTakenPosition(t *testing.T) {
	f := newFixture(t, models.UniquePrizePosition)
	raffleID, products := f.raffle(t, 1, 5)

	res, err := f.svc.SelectWinners(context.Background(), f.owner, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[0], Count: 3})
	require.NoError(t, err)

	assert.Len(t, res.Winners, 1)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 1, testutil.Count(t, f.db, `SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID))
}

func TestConcurrentRunsProduceOneDraw(t *testing.T) {
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, _ := f.raffle(t, 3, 20)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Run(context.Background(), f.owner, raffleID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			appErr, ok := apperrors.AsAppError(err)
			if assert.True(t, ok) {
				assert.Contains(t, []apperrors.ErrorCode{apperrors.ErrCodeConflict, apperrors.ErrCodeInvalidState}, appErr.Code)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 3, testutil.Count(t, f.db, `SELECT COUNT(*) FROM winners WHERE raffle_id = ?`, raffleID))
}

func TestWinnersListingFollowsLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, products := f.raffle(t, 2, 6)

	_, err := f.svc.Winners(ctx, 9999)
	requireCode(t, err, apperrors.ErrCodeNotFound)

	winners, err := f.svc.Winners(ctx, raffleID)
	require.NoError(t, err)
	assert.Empty(t, winners)

	_, err = f.svc.SelectWinners(ctx, f.admin, models.SelectWinnersRequest{RaffleID: raffleID, ProductID: products[1], Count: 2})
	require.NoError(t, err)

	winners, err = f.svc.Winners(ctx, raffleID)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, "premio", winners[0].ProductName)
	assert.NotEmpty(t, winners[0].TicketNumber)
	assert.Equal(t, "buyer", winners[0].OwnerName)
}

// parkingCache holds the first Set until release is closed.
type parkingCache struct {
	cache.Cache
	once    sync.Once
	parked  chan struct{}
	release chan struct{}
}

func (c *parkingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.once.Do(func() {
		close(c.parked)
		<-c.release
	})
	return c.Cache.Set(ctx, key, value, ttl)
}

func TestWinnersListingStoredDuringDrawIsNotServed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, _ := f.raffle(t, 2, 6)

	lru, err := cache.NewLRUCache(16)
	require.NoError(t, err)
	pc := &parkingCache{Cache: lru, parked: make(chan struct{}), release: make(chan struct{})}
	f.svc.(*service).cache = pc

	type listing struct {
		winners []models.WinnerView
		err     error
	}
	done := make(chan listing, 1)
	go func() {
		w, err := f.svc.Winners(ctx, raffleID)
		done <- listing{w, err}
	}()

	// the pre-draw listing is loaded and waits to be cached while the draw commits
	<-pc.parked
	res, err := f.svc.Run(ctx, f.owner, raffleID)
	require.NoError(t, err)
	require.Len(t, res.Winners, 2)

	close(pc.release)
	stale := <-done
	require.NoError(t, stale.err)
	assert.Empty(t, stale.winners)

	winners, err := f.svc.Winners(ctx, raffleID)
	require.NoError(t, err)
	assert.Len(t, winners, 2)
}

func TestLockHeldElsewhereIsConflict(t *testing.T) {
	f := newFixture(t, models.UniqueTicketPrize)
	raffleID, _ := f.raffle(t, 1, 1)

	locker := lock.NewLocal()
	f.svc.(*service).locker = locker
	release, err := locker.Acquire(context.Background(), lock.RaffleKey(raffleID), time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Run(context.Background(), f.owner, raffleID)
	requireCode(t, err, apperrors.ErrCodeConflict)
	assert.Equal(t, "active", testutil.RaffleState(t, f.db, raffleID))
}

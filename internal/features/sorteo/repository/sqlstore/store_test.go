package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/features/sorteo/models"
	"sorteos-backend/internal/features/sorteo/repository"
	"sorteos-backend/internal/testutil"
)

func TestRaffleRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := New(db)

	owner := testutil.CreateUser(t, db, "ana", "admin")
	now := time.Now().UTC().Truncate(time.Second)
	r := &models.Raffle{
		Title:       "Moto",
		TicketPrice: 1500,
		DrawAt:      now.Add(24 * time.Hour),
		State:       models.RaffleActive,
		OwnerID:     &owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.CreateRaffle(ctx, r))
	require.NotZero(t, r.ID)

	got, err := repo.GetRaffleForUpdate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moto", got.Title)
	assert.Equal(t, models.RaffleActive, got.State)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, owner, *got.OwnerID)
	assert.True(t, got.DrawAt.Equal(r.DrawAt))

	ok, err := repo.TransitionRaffle(ctx, r.ID, models.RaffleActive, models.RaffleFinalized, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionRaffle(ctx, r.ID, models.RaffleActive, models.RaffleCancelled, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetRaffle(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertTicketsAndPrefixCount(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := New(db)

	raffleID := testutil.CreateRaffle(t, db, 0, time.Now())
	now := time.Now().UTC()

	var batch []models.Ticket
	for i := 0; i < 12; i++ {
		batch = append(batch, models.Ticket{
			RaffleID:  raffleID,
			Number:    models.FormatTicketNumber("202510", i),
			Price:     500,
			State:     models.TicketAvailable,
			CreatedAt: now,
		})
	}
	require.NoError(t, repo.InsertTickets(ctx, batch))

	n, err := repo.CountTicketsWithPrefix(ctx, raffleID, "202510")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = repo.CountTicketsWithPrefix(ctx, raffleID, "202511")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.CountNumbersInRange(ctx, "2025100010", "2025100020")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	other := testutil.CreateRaffle(t, db, 0, time.Now())
	err = repo.InsertTickets(ctx, []models.Ticket{{
		RaffleID: other, Number: batch[3].Number, Price: 500, State: models.TicketAvailable, CreatedAt: now,
	}})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	tickets, err := repo.ListTickets(ctx, repository.TicketFilter{RaffleID: raffleID, State: models.TicketAvailable, Limit: 5})
	require.NoError(t, err)
	require.Len(t, tickets, 5)
	assert.Equal(t, "2025100000", tickets[0].Number)
	assert.Equal(t, "Sorteo", tickets[0].RaffleTitle)
}

func TestSellTicketIsConditional(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := New(db)

	buyer := testutil.CreateUser(t, db, "beto", "user")
	raffleID := testutil.CreateRaffle(t, db, 0, time.Now())
	ids := testutil.CreateTickets(t, db, raffleID, 2, "available", 0)

	sold, err := repo.SellTicket(ctx, ids[0], buyer, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, sold)

	sold, err = repo.SellTicket(ctx, ids[0], buyer, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, sold)

	testutil.SetRaffleState(t, db, raffleID, "cancelled")
	sold, err = repo.SellTicket(ctx, ids[1], buyer, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, sold)

	tk, err := repo.GetTicket(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.TicketSold, tk.State)
	require.NotNil(t, tk.OwnerID)
	assert.Equal(t, buyer, *tk.OwnerID)
	assert.NotNil(t, tk.PurchasedAt)
	assert.Equal(t, "beto", tk.OwnerName)
}

func TestDeleteOnlyAvailable(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := New(db)

	owner := testutil.CreateUser(t, db, "carla", "user")
	raffleID := testutil.CreateRaffle(t, db, 0, time.Now())
	available := testutil.CreateTickets(t, db, raffleID, 3, "available", 0)
	sold := testutil.CreateTickets(t, db, raffleID, 2, "sold", owner)

	ok, err := repo.DeleteAvailableTicket(ctx, sold[0])
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteAvailableTicket(ctx, available[0])
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.DeleteAvailableTickets(ctx, raffleID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, 2, testutil.Count(t, db, `SELECT COUNT(*) FROM tickets WHERE raffle_id = ?`, raffleID))
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := New(db)

	raffleID := testutil.CreateRaffle(t, db, 0, time.Now())
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx repository.Repository) error {
		if err := tx.InsertTickets(ctx, []models.Ticket{{
			RaffleID: raffleID, Number: "X1", Price: 1, State: models.TicketAvailable, CreatedAt: time.Now().UTC(),
		}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, testutil.Count(t, db, `SELECT COUNT(*) FROM tickets`))
}

func TestPromotions(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := New(db)

	raffleID := testutil.CreateRaffle(t, db, 0, time.Now())
	p := &models.Promotion{RaffleID: raffleID, Title: "3x2", DiscountPercent: 33, MinTickets: 3, Active: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreatePromotion(ctx, p))

	p.Active = false
	require.NoError(t, repo.UpdatePromotion(ctx, p))

	active, err := repo.ListPromotions(ctx, raffleID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListPromotions(ctx, raffleID, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	require.NoError(t, repo.DeletePromotion(ctx, p.ID))
	assert.ErrorIs(t, repo.DeletePromotion(ctx, p.ID), repository.ErrNotFound)
}

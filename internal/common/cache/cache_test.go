package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestLRUCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRUCache(8)
	require.NoError(t, err)

	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", item{ID: 1, Name: "moto"}, time.Minute))

	var got item
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, item{ID: 1, Name: "moto"}, got)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "k2", item{ID: 2}, 0))
	require.NoError(t, c.Delete(ctx, "k2"))
	assert.ErrorIs(t, c.Get(ctx, "k2", &got), ErrMiss)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRUCache(8)
	require.NoError(t, err)

	calls := 0
	load := func() ([]item, error) {
		calls++
		return []item{{ID: 1}, {ID: 2}}, nil
	}

	first, err := GetOrLoad(ctx, c, "list", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, "list", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = GetOrLoad(ctx, c, "other", time.Minute, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	// nil cache always loads
	n, err := GetOrLoad(ctx, nil, "x", time.Minute, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

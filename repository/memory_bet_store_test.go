package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"tombola/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBet(agency, document, number string) models.Bet {
	return models.Bet{
		Agency:    agency,
		FirstName: "Juan",
		LastName:  "Perez",
		Document:  document,
		Birthdate: time.Date(1999, 3, 15, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func TestMemoryBetStore_AppendAndReadAll(t *testing.T) {
	store := NewMemoryBetStore()
	ctx := context.Background()

	bets, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, bets)

	first := testBet("1", "111", "10")
	second := testBet("2", "222", "20")
	require.NoError(t, store.Append(ctx, []models.Bet{first}))
	require.NoError(t, store.Append(ctx, []models.Bet{second}))

	bets, err = store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, first, bets[0])
	assert.Equal(t, second, bets[1])
}

func TestMemoryBetStore_ReadAllReturnsSnapshot(t *testing.T) {
	store := NewMemoryBetStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []models.Bet{testBet("1", "111", "10")}))
	snapshot, err := store.ReadAll(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, []models.Bet{testBet("1", "222", "20")}))
	assert.Len(t, snapshot, 1, "snapshot must not observe later appends")
}

func TestMemoryBetStore_ConcurrentAppends(t *testing.T) {
	store := NewMemoryBetStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Append(ctx, []models.Bet{testBet("1", "111", "10")})
			}
		}()
	}
	wg.Wait()

	bets, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, bets, 1000)
}

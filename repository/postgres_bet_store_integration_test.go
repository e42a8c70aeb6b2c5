package repository

import (
	"context"
	"testing"
	"time"

	"tombola/models"
	"tombola/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresBetStore_AppendAndReadAll(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testDB := testutil.SetupTestDatabase(t)

	store := NewPostgresBetStore(testDB.DB)
	ctx := context.Background()

	bets, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, bets)

	batch := []models.Bet{
		testBet("1", "30904465", "7744"),
		testBet("1", "28000111", "7574"),
		testBet("2", "19555333", "100"),
	}
	require.NoError(t, store.Append(ctx, batch))

	bets, err = store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, bets, 3)

	// Insertion order is preserved
	assert.Equal(t, "30904465", bets[0].Document)
	assert.Equal(t, "28000111", bets[1].Document)
	assert.Equal(t, "19555333", bets[2].Document)

	// Round-trip preserves field content and the calendar date
	assert.Equal(t, batch[0].Agency, bets[0].Agency)
	assert.Equal(t, batch[0].FirstName, bets[0].FirstName)
	assert.Equal(t, batch[0].LastName, bets[0].LastName)
	assert.Equal(t, batch[0].Number, bets[0].Number)
	assert.Equal(t,
		time.Date(1999, 3, 15, 0, 0, 0, 0, time.UTC),
		bets[0].Birthdate.UTC(),
	)
}

func TestPostgresBetStore_AppendEmptyBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testDB := testutil.SetupTestDatabase(t)

	store := NewPostgresBetStore(testDB.DB)
	require.NoError(t, store.Append(context.Background(), nil))
}

func TestPostgresBetStore_FieldsWithDelimiters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testDB := testutil.SetupTestDatabase(t)

	store := NewPostgresBetStore(testDB.DB)
	ctx := context.Background()

	bet := testBet("3", "28#123", "7574")
	bet.FirstName = "Ana#Maria"
	bet.LastName = "O\\Connor"
	require.NoError(t, store.Append(ctx, []models.Bet{bet}))

	bets, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, "Ana#Maria", bets[0].FirstName)
	assert.Equal(t, "O\\Connor", bets[0].LastName)
	assert.Equal(t, "28#123", bets[0].Document)
}

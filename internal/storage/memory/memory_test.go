package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, New())
}

func TestInjectContention(t *testing.T) {
	store := New()
	ctx := context.Background()
	group := storetest.NewGroup(t, store)

	store.InjectContention(2)
	calls := 0
	insert := func(tx storage.Tx) error {
		calls++
		return tx.InsertSettlement(ctx, storetest.Settlement(group.ID))
	}

	assert.ErrorIs(t, store.WithTx(ctx, insert), storage.ErrContention)
	assert.ErrorIs(t, store.WithTx(ctx, insert), storage.ErrContention)
	require.NoError(t, store.WithTx(ctx, insert))
	assert.Equal(t, 1, calls)
}

func TestReadsAreCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	group := storetest.NewGroup(t, store)

	e := storetest.Expense(group.ID)
	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.InsertExpense(ctx, e)
	}))
	e.Description = "mutated after insert"

	got, err := store.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	got.Splits[0].UserID = "mallory"
	assert.Equal(t, "Groceries", got.Description)

	again, err := store.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Splits[0].UserID)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().WithTx(ctx, func(storage.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

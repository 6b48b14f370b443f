package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
)

type countingTx struct {
	reads, writes int
}

func (c *countingTx) GetExpense(context.Context, string) (*models.Expense, error) {
	c.reads++
	return &models.Expense{}, nil
}

func (c *countingTx) GetSettlement(context.Context, string) (*models.Settlement, error) {
	c.reads++
	return &models.Settlement{}, nil
}

func (c *countingTx) InsertExpense(context.Context, *models.Expense) error { c.writes++; return nil }

func (c *countingTx) InsertSettlement(context.Context, *models.Settlement) error {
	c.writes++
	return nil
}

func (c *countingTx) SwapExpense(context.Context, *models.Expense, models.Version) error {
	c.writes++
	return nil
}

func (c *countingTx) SwapSettlement(context.Context, *models.Settlement, models.Version) error {
	c.writes++
	return nil
}

func TestGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("reads before writes pass through", func(t *testing.T) {
		inner := &countingTx{}
		tx := Guard(inner)

		_, err := tx.GetExpense(ctx, "e1")
		require.NoError(t, err)
		_, err = tx.GetSettlement(ctx, "s1")
		require.NoError(t, err)
		require.NoError(t, tx.SwapExpense(ctx, &models.Expense{}, 1))
		require.NoError(t, tx.InsertSettlement(ctx, &models.Settlement{}))

		assert.Equal(t, 2, inner.reads)
		assert.Equal(t, 2, inner.writes)
	})

	t.Run("read after write is rejected", func(t *testing.T) {
		inner := &countingTx{}
		tx := Guard(inner)

		require.NoError(t, tx.InsertExpense(ctx, &models.Expense{}))
		_, err := tx.GetExpense(ctx, "e1")
		assert.ErrorIs(t, err, ErrReadAfterWrite)
		_, err = tx.GetSettlement(ctx, "s1")
		assert.ErrorIs(t, err, ErrReadAfterWrite)
		assert.Zero(t, inner.reads)
	})

	t.Run("guarding twice keeps one state", func(t *testing.T) {
		tx := Guard(&countingTx{})
		assert.Same(t, tx, Guard(tx))
	})
}

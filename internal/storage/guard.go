package storage

import (
	"context"

	"github.com/mmynk/splitledger/internal/models"
)

// Guard wraps tx so that any read issued after a write fails with
// ErrReadAfterWrite. Backends wrap every transaction they hand out.
func Guard(tx Tx) Tx {
	if g, ok := tx.(*guardedTx); ok {
		return g
	}
	return &guardedTx{tx: tx}
}

type guardedTx struct {
	tx    Tx
	wrote bool
}

func (g *guardedTx) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	if g.wrote {
		return nil, ErrReadAfterWrite
	}
	return g.tx.GetExpense(ctx, id)
}

func (g *guardedTx) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	if g.wrote {
		return nil, ErrReadAfterWrite
	}
	return g.tx.GetSettlement(ctx, id)
}

func (g *guardedTx) InsertExpense(ctx context.Context, e *models.Expense) error {
	g.wrote = true
	return g.tx.InsertExpense(ctx, e)
}

func (g *guardedTx) InsertSettlement(ctx context.Context, s *models.Settlement) error {
	g.wrote = true
	return g.tx.InsertSettlement(ctx, s)
}

func (g *guardedTx) SwapExpense(ctx context.Context, e *models.Expense, expected models.Version) error {
	g.wrote = true
	return g.tx.SwapExpense(ctx, e, expected)
}

func (g *guardedTx) SwapSettlement(ctx context.Context, s *models.Settlement, expected models.Version) error {
	g.wrote = true
	return g.tx.SwapSettlement(ctx, s, expected)
}

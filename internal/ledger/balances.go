package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
)

// Balances is the full answer to "who owes whom" for one group.
type Balances struct {
	GroupID string

	// Net maps currency -> user ID -> net balance (positive = owed to them).
	Net map[string]map[string]decimal.Decimal

	// Totals maps currency -> user ID -> gross paid and owed.
	Totals map[string]map[string]calculator.Totals

	// Debts maps currency -> suggested payments that settle the group.
	Debts map[string][]models.Debt

	ZeroToleranceApplied bool
}

// Currencies returns the currencies with balances, sorted.
func (b *Balances) Currencies() []string {
	r := calculator.Result{Net: b.Net}
	return r.Currencies()
}

// GetGroupBalances computes a group's balances for one of its members.
func (s *Service) GetGroupBalances(ctx context.Context, groupID, actorID string) (*Balances, error) {
	if err := s.requireMember(ctx, groupID, actorID, "actor"); err != nil {
		return nil, classify(err)
	}
	return s.ComputeGroupBalances(ctx, groupID)
}

// ComputeGroupBalances loads every active record of a group and computes
// per-currency balances and simplified debts. It never returns a partial
// result: a structurally broken record fails the whole computation with
// FATAL_DATA_ERROR.
func (s *Service) ComputeGroupBalances(ctx context.Context, groupID string) (*Balances, error) {
	start := time.Now()

	expenses, settlements, err := s.store.ListGroupLedger(ctx, groupID)
	if err != nil {
		metrics.ObserveBalance(time.Since(start), "storage")
		slog.Error("ComputeGroupBalances failed to load ledger", "group_id", groupID, "error", err)
		return nil, classify(err)
	}

	result, err := calculator.Compute(expenses, settlements)
	if err != nil {
		metrics.ObserveBalance(time.Since(start), "fatal_data")
		var dataErr *calculator.DataError
		if errors.As(err, &dataErr) {
			slog.Error("ComputeGroupBalances found corrupt record",
				"group_id", groupID,
				"kind", dataErr.Kind,
				"record_id", dataErr.RecordID,
				"error", dataErr.Err,
			)
		}
		return nil, classify(err)
	}

	metrics.ObserveBalance(time.Since(start), "")
	return &Balances{
		GroupID:              groupID,
		Net:                  result.Net,
		Totals:               result.Totals,
		Debts:                calculator.SimplifyAll(result),
		ZeroToleranceApplied: result.ZeroToleranceApplied,
	}, nil
}

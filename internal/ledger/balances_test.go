package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// corruptStore blanks the currency of every listed expense, as a damaged
// row would.
type corruptStore struct {
	storage.Store
}

func (c corruptStore) ListGroupLedger(ctx context.Context, groupID string) ([]*models.Expense, []*models.Settlement, error) {
	expenses, settlements, err := c.Store.ListGroupLedger(ctx, groupID)
	for _, e := range expenses {
		e.Currency = ""
	}
	return expenses, settlements, err
}

// brokenStore fails every ledger listing.
type brokenStore struct {
	storage.Store
}

func (brokenStore) ListGroupLedger(context.Context, string) ([]*models.Expense, []*models.Settlement, error) {
	return nil, nil, errors.New("disk on fire")
}

func TestComputeGroupBalances_MissingCurrencyIsFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
	require.NoError(t, err)
	_, err = f.svc.RecordSettlement(ctx, f.settlement("bob", "alice", "20"), "bob")
	require.NoError(t, err)

	svc := New(corruptStore{f.store}, f.pub, DefaultConfig())
	b, err := svc.ComputeGroupBalances(ctx, f.group.ID)
	assert.Nil(t, b, "no partial result")
	assertCode(t, err, CodeFatalData)
	assert.ErrorIs(t, err, calculator.ErrMissingCurrency)
}

func TestComputeGroupBalances_StorageFailure(t *testing.T) {
	f := newFixture(t)
	svc := New(brokenStore{f.store}, f.pub, DefaultConfig())

	_, err := svc.GetGroupBalances(context.Background(), f.group.ID, "alice")
	assertCode(t, err, CodeService)
}

func TestComputeGroupBalances_Debts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// carol owes alice 90 and bob 30
	draft := f.equalExpense("alice", "120", "alice", "bob", "carol")
	draft.SplitType = models.SplitExact
	draft.Shares = []models.Share{
		{UserID: "alice", Amount: d("0")},
		{UserID: "bob", Amount: d("30")},
		{UserID: "carol", Amount: d("90")},
	}
	_, err := f.svc.RecordExpense(ctx, draft, "alice")
	require.NoError(t, err)

	draft = f.equalExpense("bob", "60", "bob", "carol")
	draft.SplitType = models.SplitExact
	draft.Shares = []models.Share{
		{UserID: "bob", Amount: d("0")},
		{UserID: "carol", Amount: d("60")},
	}
	_, err = f.svc.RecordExpense(ctx, draft, "bob")
	require.NoError(t, err)

	b, err := f.svc.ComputeGroupBalances(ctx, f.group.ID)
	require.NoError(t, err)
	assertBalance(t, b, "USD", "alice", "120")
	assertBalance(t, b, "USD", "bob", "30")
	assertBalance(t, b, "USD", "carol", "-150")

	require.Len(t, b.Debts["USD"], 2)
	assert.Equal(t, "carol", b.Debts["USD"][0].From)
	assert.Equal(t, "alice", b.Debts["USD"][0].To)
	assert.True(t, d("120").Equal(b.Debts["USD"][0].Amount))
	assert.Equal(t, "bob", b.Debts["USD"][1].To)
	assert.True(t, d("30").Equal(b.Debts["USD"][1].Amount))

	assert.True(t, d("180").Equal(b.Totals["USD"]["alice"].Paid.Add(b.Totals["USD"]["bob"].Paid)))
}

func TestComputeGroupBalances_CurrenciesNetIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordExpense(ctx, f.equalExpense("alice", "100", "alice", "bob"), "alice")
	require.NoError(t, err)

	draft := f.equalExpense("bob", "3000", "alice", "bob")
	draft.Currency = "JPY"
	_, err = f.svc.RecordExpense(ctx, draft, "bob")
	require.NoError(t, err)

	b, err := f.svc.ComputeGroupBalances(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"JPY", "USD"}, b.Currencies())
	assertBalance(t, b, "USD", "alice", "50")
	assertBalance(t, b, "JPY", "alice", "-1500")
	assert.Len(t, b.Debts["USD"], 1)
	assert.Len(t, b.Debts["JPY"], 1)
}

func TestComputeGroupBalances_ThreeDecimalCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.equalExpense("carol", "0.027", "alice", "bob", "carol")
	draft.Currency = "KWD"
	_, err := f.svc.RecordExpense(ctx, draft, "carol")
	require.NoError(t, err)

	b, err := f.svc.GetGroupBalances(ctx, f.group.ID, "alice")
	require.NoError(t, err)
	assert.False(t, b.ZeroToleranceApplied)
	assertBalance(t, b, "KWD", "alice", "-0.009")
	assertBalance(t, b, "KWD", "bob", "-0.009")
	assertBalance(t, b, "KWD", "carol", "0.018")

	require.Len(t, b.Debts["KWD"], 2)
	for _, debt := range b.Debts["KWD"] {
		assert.Equal(t, "carol", debt.To)
		assert.True(t, d("0.009").Equal(debt.Amount), "%s owes %s", debt.From, debt.Amount)
	}

	_, err = f.svc.RecordSettlement(ctx, SettlementDraft{
		GroupID:  f.group.ID,
		PayerID:  "alice",
		PayeeID:  "carol",
		Amount:   d("0.009"),
		Currency: "KWD",
	}, "alice")
	require.NoError(t, err)

	b, err = f.svc.GetGroupBalances(ctx, f.group.ID, "bob")
	require.NoError(t, err)
	assertBalance(t, b, "KWD", "alice", "0")
	require.Len(t, b.Debts["KWD"], 1)
	assert.Equal(t, "bob", b.Debts["KWD"][0].From)
}

// TestZeroSumAfterRandomOperations drives the service through random
// creations, amendments and retirements and checks after every step that
// each currency nets to zero and the suggested debts settle everyone.
func TestZeroSumAfterRandomOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2024))

	users := []string{"alice", "bob", "carol"}
	currencies := []string{"USD", "EUR", "JPY", "KWD"}
	var expenseIDs, settlementIDs []string

	randomAmount := func(currency string) decimal.Decimal {
		units := money.MinorUnits(currency)
		return decimal.New(rng.Int63n(500_000)+1, -units)
	}

	for step := 0; step < 150; step++ {
		switch op := rng.Intn(6); {
		case op <= 1 || len(expenseIDs) == 0:
			payer := users[rng.Intn(len(users))]
			participants := append([]string(nil), users[:1+rng.Intn(len(users))]...)
			cur := currencies[rng.Intn(len(currencies))]
			draft := ExpenseDraft{
				GroupID:      f.group.ID,
				Amount:       randomAmount(cur),
				Currency:     cur,
				PayerID:      payer,
				SplitType:    models.SplitEqual,
				Participants: participants,
			}
			if rng.Intn(2) == 0 {
				draft.SplitType = models.SplitPercentage
				first := decimal.NewFromInt(int64(rng.Intn(101)))
				for i, p := range participants {
					pct := decimal.Zero
					switch {
					case len(participants) == 1:
						pct = money.Hundred
					case i == 0:
						pct = first
					case i == 1:
						pct = money.Hundred.Sub(first)
					}
					draft.Shares = append(draft.Shares, models.Share{UserID: p, Percentage: pct})
				}
			}
			e, err := f.svc.RecordExpense(ctx, draft, payer)
			require.NoError(t, err, "step %d", step)
			expenseIDs = append(expenseIDs, e.ID)

		case op == 2:
			pair := rng.Perm(len(users))
			cur := currencies[rng.Intn(len(currencies))]
			payer := users[pair[0]]
			st, err := f.svc.RecordSettlement(ctx, SettlementDraft{
				GroupID:  f.group.ID,
				PayerID:  payer,
				PayeeID:  users[pair[1]],
				Amount:   randomAmount(cur),
				Currency: cur,
			}, payer)
			require.NoError(t, err, "step %d", step)
			settlementIDs = append(settlementIDs, st.ID)

		case op == 3:
			id := expenseIDs[rng.Intn(len(expenseIDs))]
			e, err := f.svc.GetExpense(ctx, id, "alice")
			require.NoError(t, err)
			_, err = f.svc.AmendExpense(ctx, id, ExpenseUpdate{Amount: ptr(randomAmount(e.Currency))}, e.CreatedBy)
			if err != nil {
				assert.Equal(t, CodeAlreadyDeleted, CodeOf(err), "step %d: %v", step, err)
			}

		case op == 4:
			id := expenseIDs[rng.Intn(len(expenseIDs))]
			_, err := f.svc.RetireExpense(ctx, id, "alice", nil)
			if err != nil {
				assert.Equal(t, CodeAlreadyDeleted, CodeOf(err), "step %d", step)
			}

		default:
			if len(settlementIDs) == 0 {
				continue
			}
			id := settlementIDs[rng.Intn(len(settlementIDs))]
			_, err := f.svc.RetireSettlement(ctx, id, "alice", nil)
			if err != nil {
				assert.Equal(t, CodeAlreadyDeleted, CodeOf(err), "step %d", step)
			}
		}

		b, err := f.svc.ComputeGroupBalances(ctx, f.group.ID)
		require.NoError(t, err, "step %d", step)
		assertSettles(t, b, fmt.Sprintf("step %d", step))
	}
}

// assertSettles checks zero-sum per currency and that applying the debts
// zeroes every balance.
func assertSettles(t *testing.T, b *Balances, msg string) {
	t.Helper()
	for cur, net := range b.Net {
		sum := decimal.Zero
		remaining := make(map[string]decimal.Decimal, len(net))
		for u, v := range net {
			sum = sum.Add(v)
			remaining[u] = v
		}
		assert.True(t, sum.Abs().LessThanOrEqual(money.Epsilon), "%s: %s sums to %s", msg, cur, sum)

		for _, debt := range b.Debts[cur] {
			remaining[debt.From] = remaining[debt.From].Add(debt.Amount)
			remaining[debt.To] = remaining[debt.To].Sub(debt.Amount)
		}
		for u, v := range remaining {
			assert.True(t, v.Abs().LessThanOrEqual(money.Epsilon), "%s: %s %s left at %s", msg, cur, u, v)
		}
	}
}

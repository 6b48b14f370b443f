package calculator

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
)

func TestSimplify(t *testing.T) {
	tests := []struct {
		name string
		net  map[string]string
		want []models.Debt
	}{
		{
			name: "one debtor two creditors",
			net:  map[string]string{"A": "90", "B": "30", "C": "-120"},
			want: []models.Debt{
				{From: "C", To: "A", Amount: d("90"), Currency: "USD"},
				{From: "C", To: "B", Amount: d("30"), Currency: "USD"},
			},
		},
		{
			name: "two debtors one creditor",
			net:  map[string]string{"A": "100", "B": "-60", "C": "-40"},
			want: []models.Debt{
				{From: "B", To: "A", Amount: d("60"), Currency: "USD"},
				{From: "C", To: "A", Amount: d("40"), Currency: "USD"},
			},
		},
		{
			name: "ties break by user id",
			net:  map[string]string{"zed": "10", "amy": "10", "bob": "-10", "cal": "-10"},
			want: []models.Debt{
				{From: "bob", To: "amy", Amount: d("10"), Currency: "USD"},
				{From: "cal", To: "zed", Amount: d("10"), Currency: "USD"},
			},
		},
		{
			name: "settled balances produce nothing",
			net:  map[string]string{"A": "0", "B": "0"},
			want: []models.Debt{},
		},
		{
			name: "sub-cent balances are ignored",
			net:  map[string]string{"A": "0.004", "B": "-0.004"},
			want: []models.Debt{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := make(map[string]decimal.Decimal, len(tt.net))
			for u, v := range tt.net {
				net[u] = d(v)
			}
			got := Simplify("USD", net)
			require.NotNil(t, got)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want.From, got[i].From)
				assert.Equal(t, want.To, got[i].To)
				assert.Equal(t, want.Currency, got[i].Currency)
				assertDecimal(t, want.Amount.String(), got[i].Amount)
			}
		})
	}
}

func TestSimplify_ToleranceFollowsCurrency(t *testing.T) {
	net := map[string]decimal.Decimal{"A": d("0.004"), "B": d("-0.004")}

	assert.Empty(t, Simplify("USD", net))

	got := Simplify("KWD", net)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].From)
	assert.Equal(t, "A", got[0].To)
	assert.Equal(t, "KWD", got[0].Currency)
	assertDecimal(t, "0.004", got[0].Amount)

	assert.Empty(t, Simplify("KWD", map[string]decimal.Decimal{"A": d("0.0004"), "B": d("-0.0004")}))
}

func TestSimplify_EmptyInput(t *testing.T) {
	got := Simplify("USD", nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSimplify_ClearsEveryBalance(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 30; round++ {
		expenses, settlements := randomLedger(t, rng)
		res, err := Compute(expenses, settlements)
		require.NoError(t, err)

		for cur, debts := range SimplifyAll(res) {
			remaining := make(map[string]decimal.Decimal)
			creditTotal := decimal.Zero
			for u, bal := range res.Net[cur] {
				remaining[u] = bal
				if bal.IsPositive() {
					creditTotal = creditTotal.Add(bal)
				}
			}

			paid := decimal.Zero
			for _, debt := range debts {
				assert.True(t, debt.Amount.IsPositive())
				assert.NotEqual(t, debt.From, debt.To)
				remaining[debt.From] = remaining[debt.From].Add(debt.Amount)
				remaining[debt.To] = remaining[debt.To].Sub(debt.Amount)
				paid = paid.Add(debt.Amount)
			}

			for u, left := range remaining {
				assert.Truef(t, left.Abs().LessThanOrEqual(d("0.01")), "round %d %s: %s left with %s", round, cur, u, left)
			}
			assert.Truef(t, paid.Sub(creditTotal).Abs().LessThanOrEqual(d("0.01")), "round %d %s: paid %s, owed %s", round, cur, paid, creditTotal)
		}
	}
}

func TestSimplify_Deterministic(t *testing.T) {
	net := map[string]decimal.Decimal{
		"a": d("25"), "b": d("25"), "c": d("-10"), "d": d("-20"), "e": d("-20"),
	}
	first := Simplify("EUR", net)
	for i := 0; i < 20; i++ {
		assert.Equal(t, debtStrings(first), debtStrings(Simplify("EUR", net)))
	}
}

func debtStrings(debts []models.Debt) []string {
	out := make([]string, len(debts))
	for i, debt := range debts {
		out[i] = debt.From + "->" + debt.To + ":" + debt.Amount.String() + " " + debt.Currency
	}
	return out
}

package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

type party struct {
	userID    string
	remaining decimal.Decimal // always positive
}

// byLargest orders parties by remaining amount descending, then user ID.
func byLargest(parties []party) {
	sort.Slice(parties, func(i, j int) bool {
		if c := parties[i].remaining.Cmp(parties[j].remaining); c != 0 {
			return c > 0
		}
		return parties[i].userID < parties[j].userID
	})
}

// Simplify derives suggested payments that zero every balance in net, a
// single currency's user ID -> net balance mapping.
//
// Greedy algorithm: match the largest remaining debtor with the largest
// remaining creditor, pay the smaller of the two amounts, drop whoever
// reaches zero. The result is not guaranteed to have the minimum number of
// payments, but every balance is driven to zero and the total paid equals
// the sum of positive balances. Ties break by user ID so output is stable.
// Amounts below the currency's tolerance count as settled.
func Simplify(currency string, net map[string]decimal.Decimal) []models.Debt {
	tol := money.Tolerance(currency)
	var creditors, debtors []party
	for userID, bal := range net {
		switch {
		case bal.GreaterThanOrEqual(tol):
			creditors = append(creditors, party{userID: userID, remaining: bal})
		case bal.LessThanOrEqual(tol.Neg()):
			debtors = append(debtors, party{userID: userID, remaining: bal.Neg()})
		}
	}
	byLargest(creditors)
	byLargest(debtors)

	debts := []models.Debt{}
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		// Amount to settle is minimum of what debtor owes and creditor is owed
		amount := decimal.Min(debtor.remaining, creditor.remaining)
		if amount.GreaterThanOrEqual(tol) {
			debts = append(debts, models.Debt{
				From:     debtor.userID,
				To:       creditor.userID,
				Amount:   amount,
				Currency: currency,
			})
		}

		debtor.remaining = debtor.remaining.Sub(amount)
		creditor.remaining = creditor.remaining.Sub(amount)

		if debtor.remaining.LessThan(tol) {
			i++
		}
		if creditor.remaining.LessThan(tol) {
			j++
		}
	}

	return debts
}

// SimplifyAll runs Simplify for every currency in r.
func SimplifyAll(r *Result) map[string][]models.Debt {
	out := make(map[string][]models.Debt, len(r.Net))
	for _, cur := range r.Currencies() {
		out[cur] = Simplify(cur, r.Net[cur])
	}
	return out
}

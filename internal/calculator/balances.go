package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var (
	// ErrMissingCurrency means a persisted record has no currency. The whole
	// computation fails; a default currency is never guessed.
	ErrMissingCurrency = errors.New("record has no currency")

	// ErrMissingParty means a record has no payer (or payee).
	ErrMissingParty = errors.New("record has no payer or payee")

	// ErrUnbalanced means a currency's balances do not net to zero.
	ErrUnbalanced = errors.New("balances do not sum to zero")
)

// DataError is a fatal structural defect found while computing balances.
type DataError struct {
	Kind     string // "expense", "settlement" or "currency"
	RecordID string
	Err      error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.RecordID, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Totals is the gross activity of one member in one currency.
type Totals struct {
	Paid decimal.Decimal // Expense shares fronted plus settlements paid
	Owed decimal.Decimal // Expense shares consumed plus settlements received
}

// Result holds per-currency balances for one group.
type Result struct {
	// Net maps currency -> user ID -> net balance.
	// Positive = owed money, Negative = owes money.
	Net map[string]map[string]decimal.Decimal

	// Totals maps currency -> user ID -> gross totals.
	Totals map[string]map[string]Totals

	// ZeroToleranceApplied is set when a non-zero balance smaller than its
	// currency's tolerance was reported as zero.
	ZeroToleranceApplied bool
}

// Currencies returns the currencies present, sorted.
func (r *Result) Currencies() []string {
	out := make([]string, 0, len(r.Net))
	for c := range r.Net {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Members returns the user IDs with a balance in currency, sorted.
func (r *Result) Members(currency string) []string {
	out := make([]string, 0, len(r.Net[currency]))
	for u := range r.Net[currency] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// accumulator tracks gross paid/owed per currency and user.
type accumulator map[string]map[string]*Totals

func (a accumulator) get(currency, userID string) *Totals {
	byUser, ok := a[currency]
	if !ok {
		byUser = make(map[string]*Totals)
		a[currency] = byUser
	}
	t, ok := byUser[userID]
	if !ok {
		t = &Totals{Paid: decimal.Zero, Owed: decimal.Zero}
		byUser[userID] = t
	}
	return t
}

// Compute turns a group's expenses and settlements into per-currency net
// balances. Deleted records are skipped.
//
// Algorithm:
//   - Expense: each split credits the payer and debits the split's user
//   - Settlement: payer is credited, payee is debited
//   - net = paid - owed, rounded to the currency's minor unit, with
//     magnitudes below money.Tolerance(currency) reported as zero
//   - the rounded balances of each currency must sum to zero within
//     money.Epsilon, checked before any tolerance is applied
//
// Any record without a currency or payer fails the entire computation.
func Compute(expenses []*models.Expense, settlements []*models.Settlement) (*Result, error) {
	acc := make(accumulator)

	for _, e := range expenses {
		if e == nil || e.IsDeleted() {
			continue
		}
		if e.Currency == "" {
			return nil, &DataError{Kind: "expense", RecordID: e.ID, Err: ErrMissingCurrency}
		}
		if e.PayerID == "" {
			return nil, &DataError{Kind: "expense", RecordID: e.ID, Err: ErrMissingParty}
		}
		cur := money.Normalize(e.Currency)
		payer := acc.get(cur, e.PayerID)
		for _, s := range e.Splits {
			payer.Paid = payer.Paid.Add(s.Amount)
			consumer := acc.get(cur, s.UserID)
			consumer.Owed = consumer.Owed.Add(s.Amount)
		}
	}

	for _, s := range settlements {
		if s == nil || s.IsDeleted() {
			continue
		}
		if s.Currency == "" {
			return nil, &DataError{Kind: "settlement", RecordID: s.ID, Err: ErrMissingCurrency}
		}
		if s.PayerID == "" || s.PayeeID == "" {
			return nil, &DataError{Kind: "settlement", RecordID: s.ID, Err: ErrMissingParty}
		}
		cur := money.Normalize(s.Currency)
		// Payer's balance improves, payee's claim shrinks
		payer := acc.get(cur, s.PayerID)
		payer.Paid = payer.Paid.Add(s.Amount)
		payee := acc.get(cur, s.PayeeID)
		payee.Owed = payee.Owed.Add(s.Amount)
	}

	result := &Result{
		Net:    make(map[string]map[string]decimal.Decimal, len(acc)),
		Totals: make(map[string]map[string]Totals, len(acc)),
	}
	for cur, byUser := range acc {
		net := make(map[string]decimal.Decimal, len(byUser))
		totals := make(map[string]Totals, len(byUser))
		sum := decimal.Zero
		for userID, t := range byUser {
			raw := t.Paid.Sub(t.Owed)
			bal := money.Round(raw, cur)
			sum = sum.Add(bal)
			if money.IsNegligible(bal, cur) {
				if !raw.IsZero() {
					result.ZeroToleranceApplied = true
				}
				bal = decimal.Zero
			}
			net[userID] = bal
			totals[userID] = Totals{Paid: money.Round(t.Paid, cur), Owed: money.Round(t.Owed, cur)}
		}
		if sum.Abs().GreaterThan(money.Epsilon) {
			return nil, &DataError{Kind: "currency", RecordID: cur, Err: ErrUnbalanced}
		}
		result.Net[cur] = net
		result.Totals[cur] = totals
	}

	return result, nil
}

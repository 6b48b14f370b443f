package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// SplitError reports why a split input was rejected. Field names the
// offending input so callers can surface it verbatim.
type SplitError struct {
	Field  string
	Reason string
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("invalid split (%s): %s", e.Field, e.Reason)
}

func splitErr(field, format string, args ...any) error {
	return &SplitError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// BuildSplits divides amount among the participants of in.
//
// The returned splits always sum to amount exactly:
//   - equal: amount / n rounded down to the currency's minor unit, with the
//     remainder handed out one unit at a time in participant order
//   - exact: shares are taken as given; a residue of at most money.Epsilon
//     is absorbed by the last share
//   - percentage: amount * pct / 100 rounded down, remainder handed out in
//     participant order
func BuildSplits(amount decimal.Decimal, currency string, in models.SplitInput) ([]models.Split, error) {
	if len(in.Participants) == 0 {
		return nil, splitErr("participants", "must have at least one participant")
	}
	seen := make(map[string]bool, len(in.Participants))
	for _, p := range in.Participants {
		if p == "" {
			return nil, splitErr("participants", "participant id cannot be empty")
		}
		if seen[p] {
			return nil, splitErr("participants", "duplicate participant %q", p)
		}
		seen[p] = true
	}
	if !money.IsRepresentable(amount, currency) {
		return nil, splitErr("amount", "%s has more precision than %s allows", amount, currency)
	}

	switch in.Type {
	case models.SplitEqual:
		if len(in.Shares) > 0 {
			return nil, splitErr("shares", "equal splits take no shares")
		}
		return equalSplits(amount, currency, in.Participants), nil
	case models.SplitExact:
		shares, err := sharesByParticipant(in)
		if err != nil {
			return nil, err
		}
		return exactSplits(amount, currency, in.Participants, shares)
	case models.SplitPercentage:
		shares, err := sharesByParticipant(in)
		if err != nil {
			return nil, err
		}
		return percentageSplits(amount, currency, in.Participants, shares)
	default:
		return nil, splitErr("split_type", "unknown split type %q", in.Type)
	}
}

// sharesByParticipant requires exactly one share per participant.
func sharesByParticipant(in models.SplitInput) (map[string]models.Share, error) {
	isParticipant := make(map[string]bool, len(in.Participants))
	for _, p := range in.Participants {
		isParticipant[p] = true
	}
	shares := make(map[string]models.Share, len(in.Shares))
	for _, s := range in.Shares {
		if !isParticipant[s.UserID] {
			return nil, splitErr("shares", "user %q is not a participant", s.UserID)
		}
		if _, dup := shares[s.UserID]; dup {
			return nil, splitErr("shares", "duplicate share for %q", s.UserID)
		}
		shares[s.UserID] = s
	}
	for _, p := range in.Participants {
		if _, ok := shares[p]; !ok {
			return nil, splitErr("shares", "missing share for participant %q", p)
		}
	}
	return shares, nil
}

func equalSplits(amount decimal.Decimal, currency string, participants []string) []models.Split {
	n := decimal.NewFromInt(int64(len(participants)))
	base := money.RoundDown(amount.Div(n), currency)

	splits := make([]models.Split, len(participants))
	for i, p := range participants {
		splits[i] = models.Split{UserID: p, Amount: base}
	}
	distributeRemainder(splits, amount, currency)
	return splits
}

func exactSplits(amount decimal.Decimal, currency string, participants []string, shares map[string]models.Share) ([]models.Split, error) {
	splits := make([]models.Split, len(participants))
	sum := decimal.Zero
	for i, p := range participants {
		a := shares[p].Amount
		if a.IsNegative() {
			return nil, splitErr("shares", "share for %q cannot be negative", p)
		}
		if !money.IsRepresentable(a, currency) {
			return nil, splitErr("shares", "share for %q has more precision than %s allows", p, currency)
		}
		splits[i] = models.Split{UserID: p, Amount: a}
		sum = sum.Add(a)
	}

	residue := amount.Sub(sum)
	if residue.Abs().GreaterThan(money.Epsilon) {
		return nil, splitErr("shares", "shares sum to %s, expected %s", sum, amount)
	}
	if !residue.IsZero() {
		last := &splits[len(splits)-1]
		last.Amount = last.Amount.Add(residue)
		if last.Amount.IsNegative() {
			return nil, splitErr("shares", "shares sum to %s, expected %s", sum, amount)
		}
	}
	return splits, nil
}

func percentageSplits(amount decimal.Decimal, currency string, participants []string, shares map[string]models.Share) ([]models.Split, error) {
	total := decimal.Zero
	for _, p := range participants {
		pct := shares[p].Percentage
		if pct.IsNegative() {
			return nil, splitErr("shares", "percentage for %q cannot be negative", p)
		}
		total = total.Add(pct)
	}
	if total.Sub(money.Hundred).Abs().GreaterThan(money.Epsilon) {
		return nil, splitErr("shares", "percentages sum to %s, expected 100", total)
	}

	splits := make([]models.Split, len(participants))
	for i, p := range participants {
		pct := shares[p].Percentage
		splits[i] = models.Split{
			UserID:     p,
			Amount:     money.RoundDown(amount.Mul(pct).Div(money.Hundred), currency),
			Percentage: &pct,
		}
	}
	distributeRemainder(splits, amount, currency)
	return splits, nil
}

// distributeRemainder hands amount - sum(splits) out one minor unit at a
// time, in participant order. A negative remainder (percentages summing to
// slightly over 100) is taken back from the end of the list.
func distributeRemainder(splits []models.Split, amount decimal.Decimal, currency string) {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	unit := money.Unit(currency)
	remainder := amount.Sub(sum)
	for i := 0; remainder.GreaterThanOrEqual(unit); i = (i + 1) % len(splits) {
		splits[i].Amount = splits[i].Amount.Add(unit)
		remainder = remainder.Sub(unit)
	}
	for i := len(splits) - 1; remainder.IsNegative(); i-- {
		if i < 0 {
			i = len(splits) - 1
		}
		if splits[i].Amount.GreaterThanOrEqual(unit) {
			splits[i].Amount = splits[i].Amount.Sub(unit)
			remainder = remainder.Add(unit)
		}
	}
}

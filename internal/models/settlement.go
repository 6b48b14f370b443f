package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement represents a payment between group members to clear debts.
type Settlement struct {
	RecordMeta

	// PayerID is the user who paid (debtor settling up).
	PayerID string

	// PayeeID is the user who received payment (creditor being paid).
	PayeeID string

	Amount   decimal.Decimal
	Currency string

	SettledOn time.Time

	// Note is an optional description for the settlement.
	Note string
}

// Clone returns a deep copy of s.
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	c := *s
	if s.DeletedAt != nil {
		t := *s.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

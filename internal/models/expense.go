package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense records that PayerID paid Amount on behalf of Participants.
type Expense struct {
	RecordMeta

	Amount   decimal.Decimal
	Currency string
	PayerID  string

	// Participants is ordered; the order decides who absorbs rounding
	// remainders in equal and percentage splits.
	Participants []string

	SplitType SplitType
	Splits    []Split

	Description string
	OccurredOn  time.Time
}

// Clone returns a deep copy that shares no slices or pointers with e.
func (e *Expense) Clone() *Expense {
	if e == nil {
		return nil
	}
	c := *e
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	c.Participants = append([]string(nil), e.Participants...)
	c.Splits = make([]Split, len(e.Splits))
	for i, s := range e.Splits {
		c.Splits[i] = s
		if s.Percentage != nil {
			p := *s.Percentage
			c.Splits[i].Percentage = &p
		}
	}
	return &c
}

// SplitInput reconstructs the input that produced the stored splits, so the
// splits can be rebuilt when amount or currency change.
func (e *Expense) SplitInput() SplitInput {
	in := SplitInput{
		Type:         e.SplitType,
		Participants: append([]string(nil), e.Participants...),
	}
	if e.SplitType == SplitEqual {
		return in
	}
	for _, s := range e.Splits {
		share := Share{UserID: s.UserID, Amount: s.Amount}
		if s.Percentage != nil {
			share.Percentage = *s.Percentage
		}
		in.Shares = append(in.Shares, share)
	}
	return in
}

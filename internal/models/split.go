package models

import "github.com/shopspring/decimal"

// SplitType selects how an expense amount is divided among participants.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitExact      SplitType = "exact"
	SplitPercentage SplitType = "percentage"
)

// Valid reports whether t is a known split type.
func (t SplitType) Valid() bool {
	switch t {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	default:
		return false
	}
}

// Split is one participant's share of an expense.
type Split struct {
	UserID string
	Amount decimal.Decimal

	// Percentage is set only for percentage splits.
	Percentage *decimal.Decimal
}

// Share is a caller-supplied split input: an exact amount for exact splits,
// a percentage for percentage splits. Equal splits take no shares.
type Share struct {
	UserID     string
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// SplitInput describes how to divide an expense. It is turned into []Split
// by calculator.BuildSplits.
type SplitInput struct {
	Type         SplitType
	Participants []string
	Shares       []Share
}

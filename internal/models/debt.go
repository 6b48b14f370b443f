package models

import "github.com/shopspring/decimal"

// Debt is a suggested real-world payment produced by debt simplification.
type Debt struct {
	From     string // Person who owes
	To       string // Person who is owed
	Amount   decimal.Decimal
	Currency string
}

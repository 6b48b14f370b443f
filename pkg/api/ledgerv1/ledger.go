// Package ledgerv1 defines the request and response messages of the
// splitledger.v1.LedgerService RPC API. Messages travel as JSON; amounts are
// decimal strings, dates are YYYY-MM-DD.
package ledgerv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of occurred_on and settled_on.
const DateLayout = "2006-01-02"

// Share is one participant's input for an exact or percentage split.
type Share struct {
	UserID     string           `json:"user_id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

// Split is one participant's computed share of an expense.
type Split struct {
	UserID     string           `json:"user_id"`
	Amount     decimal.Decimal  `json:"amount"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

// Expense is the wire form of a stored expense.
type Expense struct {
	ID           string          `json:"id"`
	GroupID      string          `json:"group_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PayerID      string          `json:"payer_id"`
	Participants []string        `json:"participants"`
	SplitType    string          `json:"split_type"`
	Splits       []*Split        `json:"splits"`
	Description  string          `json:"description,omitempty"`
	OccurredOn   string          `json:"occurred_on"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy    string          `json:"deleted_by,omitempty"`
	Version      int64           `json:"version"`
}

// Settlement is the wire form of a stored settlement.
type Settlement struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"group_id"`
	PayerID   string          `json:"payer_id"`
	PayeeID   string          `json:"payee_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	SettledOn string          `json:"settled_on"`
	Note      string          `json:"note,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy string          `json:"deleted_by,omitempty"`
	Version   int64           `json:"version"`
}

type RecordExpenseRequest struct {
	GroupID      string          `json:"group_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PayerID      string          `json:"payer_id"`
	SplitType    string          `json:"split_type"`
	Participants []string        `json:"participants"`
	Shares       []*Share        `json:"shares,omitempty"`
	Description  string          `json:"description,omitempty"`
	OccurredOn   string          `json:"occurred_on,omitempty"`
}

type RecordExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

// AmendExpenseRequest changes only the fields that are present. An absent
// participants or shares list is left untouched; an empty one is invalid.
type AmendExpenseRequest struct {
	ExpenseID       string           `json:"expense_id"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	PayerID         *string          `json:"payer_id,omitempty"`
	SplitType       *string          `json:"split_type,omitempty"`
	Participants    []string         `json:"participants"`
	Shares          []*Share         `json:"shares"`
	Description     *string          `json:"description,omitempty"`
	OccurredOn      *string          `json:"occurred_on,omitempty"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
}

type AmendExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type RetireExpenseRequest struct {
	ExpenseID       string `json:"expense_id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type RetireExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID        string `json:"group_id"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type RecordSettlementRequest struct {
	GroupID   string          `json:"group_id"`
	PayerID   string          `json:"payer_id"`
	PayeeID   string          `json:"payee_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	SettledOn string          `json:"settled_on,omitempty"`
	Note      string          `json:"note,omitempty"`
}

type RecordSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type AmendSettlementRequest struct {
	SettlementID    string           `json:"settlement_id"`
	PayerID         *string          `json:"payer_id,omitempty"`
	PayeeID         *string          `json:"payee_id,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	SettledOn       *string          `json:"settled_on,omitempty"`
	Note            *string          `json:"note,omitempty"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
}

type AmendSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type RetireSettlementRequest struct {
	SettlementID    string `json:"settlement_id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type RetireSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type GetSettlementRequest struct {
	SettlementID string `json:"settlement_id"`
}

type GetSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID        string `json:"group_id"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

type ListSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id"`
}

// MemberBalance is one member's position in one currency.
// Net = Paid - Owed; positive means the group owes the member.
type MemberBalance struct {
	UserID string          `json:"user_id"`
	Paid   decimal.Decimal `json:"paid"`
	Owed   decimal.Decimal `json:"owed"`
	Net    decimal.Decimal `json:"net"`
}

// Debt is a suggested payment.
type Debt struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// CurrencyBalances groups balances and debts of one currency.
type CurrencyBalances struct {
	Currency string           `json:"currency"`
	Members  []*MemberBalance `json:"members"`
	Debts    []*Debt          `json:"debts"`
}

type GetGroupBalancesResponse struct {
	GroupID              string              `json:"group_id"`
	Currencies           []*CurrencyBalances `json:"currencies"`
	ZeroToleranceApplied bool                `json:"zero_tolerance_applied,omitempty"`
}

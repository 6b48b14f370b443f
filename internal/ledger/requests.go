package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// ExpenseDraft is the input of RecordExpense.
type ExpenseDraft struct {
	GroupID  string          `validate:"required"`
	Amount   decimal.Decimal // checked by checkAmount
	Currency string          `validate:"required,iso4217"`
	PayerID  string          `validate:"required"`

	SplitType    models.SplitType `validate:"required,oneof=equal exact percentage"`
	Participants []string         `validate:"required,min=1,unique,dive,required"`

	// Shares is required for exact and percentage splits and must be empty
	// for equal splits.
	Shares []models.Share

	Description string `validate:"max=500"`

	// OccurredOn defaults to today (UTC) when zero.
	OccurredOn time.Time
}

// ExpenseUpdate lists the fields AmendExpense may change. Nil fields are left
// untouched. Changing Amount, Currency, SplitType, Participants or Shares
// rebuilds the splits from the merged input.
type ExpenseUpdate struct {
	Amount       *decimal.Decimal
	Currency     *string           `validate:"omitnil,iso4217"`
	PayerID      *string           `validate:"omitnil,required"`
	SplitType    *models.SplitType `validate:"omitnil,oneof=equal exact percentage"`
	Participants []string          `validate:"omitempty,unique,dive,required"`
	Shares       []models.Share
	Description  *string `validate:"omitnil,max=500"`
	OccurredOn   *time.Time

	// ExpectedVersion, when set, must match the stored version or the
	// amendment fails with CONCURRENT_UPDATE. When nil the version read at
	// the start of the call is used.
	ExpectedVersion *models.Version
}

func (u ExpenseUpdate) empty() bool {
	return u.Amount == nil && u.Currency == nil && u.PayerID == nil &&
		u.SplitType == nil && u.Participants == nil && u.Shares == nil &&
		u.Description == nil && u.OccurredOn == nil
}

// resplits reports whether the update changes how the amount is divided.
func (u ExpenseUpdate) resplits() bool {
	return u.Amount != nil || u.Currency != nil || u.SplitType != nil ||
		u.Participants != nil || u.Shares != nil
}

// SettlementDraft is the input of RecordSettlement.
type SettlementDraft struct {
	GroupID  string          `validate:"required"`
	PayerID  string          `validate:"required"`
	PayeeID  string          `validate:"required,nefield=PayerID"`
	Amount   decimal.Decimal // checked by checkAmount
	Currency string          `validate:"required,iso4217"`

	// SettledOn defaults to today (UTC) when zero.
	SettledOn time.Time

	Note string `validate:"max=500"`
}

// SettlementUpdate lists the fields AmendSettlement may change.
type SettlementUpdate struct {
	PayerID   *string `validate:"omitnil,required"`
	PayeeID   *string `validate:"omitnil,required"`
	Amount    *decimal.Decimal
	Currency  *string `validate:"omitnil,iso4217"`
	SettledOn *time.Time
	Note      *string `validate:"omitnil,max=500"`

	ExpectedVersion *models.Version
}

func (u SettlementUpdate) empty() bool {
	return u.PayerID == nil && u.PayeeID == nil && u.Amount == nil &&
		u.Currency == nil && u.SettledOn == nil && u.Note == nil
}

// ListOptions filters ListExpenses and ListSettlements.
type ListOptions struct {
	// IncludeDeleted adds retired records to the result.
	IncludeDeleted bool
}

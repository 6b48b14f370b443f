package service

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	ledgerv1 "github.com/mmynk/splitledger/pkg/api/ledgerv1"
)

// parseDate parses an optional YYYY-MM-DD date. An empty string is the zero
// time, which the ledger replaces with today.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(ledgerv1.DateLayout, s)
	if err != nil {
		return time.Time{}, &ledger.Error{
			Code:    ledger.CodeValidation,
			Field:   field,
			Message: fmt.Sprintf("must be a date in %s format", ledgerv1.DateLayout),
			Err:     err,
		}
	}
	return t, nil
}

func parseDatePtr(field string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	if t.IsZero() {
		return nil, &ledger.Error{Code: ledger.CodeValidation, Field: field, Message: "must not be empty"}
	}
	return &t, nil
}

func versionPtr(v *int64) *models.Version {
	if v == nil {
		return nil
	}
	ver := models.Version(*v)
	return &ver
}

func sharesFromProto(shares []*ledgerv1.Share) []models.Share {
	if shares == nil {
		return nil
	}
	out := make([]models.Share, 0, len(shares))
	for _, s := range shares {
		if s == nil {
			continue
		}
		share := models.Share{UserID: s.UserID}
		if s.Amount != nil {
			share.Amount = *s.Amount
		}
		if s.Percentage != nil {
			share.Percentage = *s.Percentage
		}
		out = append(out, share)
	}
	return out
}

func expenseDraft(req *ledgerv1.RecordExpenseRequest) (ledger.ExpenseDraft, error) {
	occurred, err := parseDate("occurred_on", req.OccurredOn)
	if err != nil {
		return ledger.ExpenseDraft{}, err
	}
	return ledger.ExpenseDraft{
		GroupID:      req.GroupID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		PayerID:      req.PayerID,
		SplitType:    models.SplitType(req.SplitType),
		Participants: req.Participants,
		Shares:       sharesFromProto(req.Shares),
		Description:  req.Description,
		OccurredOn:   occurred,
	}, nil
}

func expenseUpdate(req *ledgerv1.AmendExpenseRequest) (ledger.ExpenseUpdate, error) {
	occurred, err := parseDatePtr("occurred_on", req.OccurredOn)
	if err != nil {
		return ledger.ExpenseUpdate{}, err
	}
	upd := ledger.ExpenseUpdate{
		Amount:          req.Amount,
		Currency:        req.Currency,
		PayerID:         req.PayerID,
		Participants:    req.Participants,
		Shares:          sharesFromProto(req.Shares),
		Description:     req.Description,
		OccurredOn:      occurred,
		ExpectedVersion: versionPtr(req.ExpectedVersion),
	}
	if req.SplitType != nil {
		st := models.SplitType(*req.SplitType)
		upd.SplitType = &st
	}
	return upd, nil
}

func settlementDraft(req *ledgerv1.RecordSettlementRequest) (ledger.SettlementDraft, error) {
	settled, err := parseDate("settled_on", req.SettledOn)
	if err != nil {
		return ledger.SettlementDraft{}, err
	}
	return ledger.SettlementDraft{
		GroupID:   req.GroupID,
		PayerID:   req.PayerID,
		PayeeID:   req.PayeeID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		SettledOn: settled,
		Note:      req.Note,
	}, nil
}

func settlementUpdate(req *ledgerv1.AmendSettlementRequest) (ledger.SettlementUpdate, error) {
	settled, err := parseDatePtr("settled_on", req.SettledOn)
	if err != nil {
		return ledger.SettlementUpdate{}, err
	}
	return ledger.SettlementUpdate{
		PayerID:         req.PayerID,
		PayeeID:         req.PayeeID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		SettledOn:       settled,
		Note:            req.Note,
		ExpectedVersion: versionPtr(req.ExpectedVersion),
	}, nil
}

func expenseToProto(e *models.Expense) *ledgerv1.Expense {
	splits := make([]*ledgerv1.Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = &ledgerv1.Split{
			UserID:     s.UserID,
			Amount:     s.Amount,
			Percentage: s.Percentage,
		}
	}
	return &ledgerv1.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Amount:       e.Amount,
		Currency:     e.Currency,
		PayerID:      e.PayerID,
		Participants: e.Participants,
		SplitType:    string(e.SplitType),
		Splits:       splits,
		Description:  e.Description,
		OccurredOn:   e.OccurredOn.Format(ledgerv1.DateLayout),
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		DeletedAt:    e.DeletedAt,
		DeletedBy:    e.DeletedBy,
		Version:      int64(e.Version),
	}
}

func settlementToProto(s *models.Settlement) *ledgerv1.Settlement {
	return &ledgerv1.Settlement{
		ID:        s.ID,
		GroupID:   s.GroupID,
		PayerID:   s.PayerID,
		PayeeID:   s.PayeeID,
		Amount:    s.Amount,
		Currency:  s.Currency,
		SettledOn: s.SettledOn.Format(ledgerv1.DateLayout),
		Note:      s.Note,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		DeletedAt: s.DeletedAt,
		DeletedBy: s.DeletedBy,
		Version:   int64(s.Version),
	}
}

// balancesToProto flattens balances into one entry per currency. Currencies
// and members are sorted so responses are stable.
func balancesToProto(b *ledger.Balances) *ledgerv1.GetGroupBalancesResponse {
	resp := &ledgerv1.GetGroupBalancesResponse{
		GroupID:              b.GroupID,
		Currencies:           []*ledgerv1.CurrencyBalances{},
		ZeroToleranceApplied: b.ZeroToleranceApplied,
	}
	for _, currency := range b.Currencies() {
		cb := &ledgerv1.CurrencyBalances{
			Currency: currency,
			Members:  []*ledgerv1.MemberBalance{},
			Debts:    []*ledgerv1.Debt{},
		}
		for userID, net := range b.Net[currency] {
			totals := b.Totals[currency][userID]
			cb.Members = append(cb.Members, &ledgerv1.MemberBalance{
				UserID: userID,
				Paid:   totals.Paid,
				Owed:   totals.Owed,
				Net:    net,
			})
		}
		slices.SortFunc(cb.Members, func(a, b *ledgerv1.MemberBalance) int {
			return cmp.Compare(a.UserID, b.UserID)
		})
		for _, debt := range b.Debts[currency] {
			cb.Debts = append(cb.Debts, &ledgerv1.Debt{
				From:   debt.From,
				To:     debt.To,
				Amount: debt.Amount,
			})
		}
		resp.Currencies = append(resp.Currencies, cb)
	}
	return resp
}

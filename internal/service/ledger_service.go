package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	ledgerv1 "github.com/mmynk/splitledger/pkg/api/ledgerv1"
	"github.com/mmynk/splitledger/pkg/api/ledgerv1/ledgerv1connect"
)

// Response headers carrying the ledger failure details.
const (
	ErrorCodeHeader  = "Ledger-Error-Code"
	ErrorFieldHeader = "Ledger-Error-Field"
)

// LedgerService implements the Connect LedgerService on top of ledger.Service.
// The caller is identified by the user ID that the auth interceptor placed on
// the context.
type LedgerService struct {
	ledgerv1connect.UnimplementedLedgerServiceHandler
	ledger *ledger.Service
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(l *ledger.Service) *LedgerService {
	return &LedgerService{ledger: l}
}

// connectError converts a ledger failure into a Connect error. The ledger
// code and field travel as response metadata so clients can branch on them.
func connectError(err error) error {
	var le *ledger.Error
	if !errors.As(err, &le) {
		return connect.NewError(connect.CodeInternal, err)
	}

	code := connect.CodeInternal
	switch le.Code {
	case ledger.CodeValidation:
		code = connect.CodeInvalidArgument
	case ledger.CodeNotAMember, ledger.CodeNotCreator, ledger.CodeNotAuthorized:
		code = connect.CodePermissionDenied
	case ledger.CodeNotFound:
		code = connect.CodeNotFound
	case ledger.CodeAlreadyDeleted:
		code = connect.CodeFailedPrecondition
	case ledger.CodeConcurrentUpdate:
		code = connect.CodeAborted
	case ledger.CodeService:
		code = connect.CodeUnavailable
	}

	cerr := connect.NewError(code, le)
	cerr.Meta().Set(ErrorCodeHeader, string(le.Code))
	if le.Field != "" {
		cerr.Meta().Set(ErrorFieldHeader, le.Field)
	}
	return cerr
}

// RecordExpense records a new expense paid by a group member.
func (s *LedgerService) RecordExpense(ctx context.Context, req *connect.Request[ledgerv1.RecordExpenseRequest]) (*connect.Response[ledgerv1.RecordExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("RecordExpense request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"amount", req.Msg.Amount,
		"currency", req.Msg.Currency,
		"split_type", req.Msg.SplitType,
		"participants", len(req.Msg.Participants),
	)

	draft, err := expenseDraft(req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	expense, err := s.ledger.RecordExpense(ctx, draft, userID)
	if err != nil {
		return nil, connectError(err)
	}

	slog.Info("Expense recorded", "expense_id", expense.ID, "group_id", expense.GroupID)
	return connect.NewResponse(&ledgerv1.RecordExpenseResponse{Expense: expenseToProto(expense)}), nil
}

// AmendExpense changes the fields present in the request.
func (s *LedgerService) AmendExpense(ctx context.Context, req *connect.Request[ledgerv1.AmendExpenseRequest]) (*connect.Response[ledgerv1.AmendExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("AmendExpense request received", "expense_id", req.Msg.ExpenseID, "user_id", userID)

	upd, err := expenseUpdate(req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	expense, err := s.ledger.AmendExpense(ctx, req.Msg.ExpenseID, upd, userID)
	if err != nil {
		return nil, connectError(err)
	}

	slog.Info("Expense amended", "expense_id", expense.ID, "version", expense.Version)
	return connect.NewResponse(&ledgerv1.AmendExpenseResponse{Expense: expenseToProto(expense)}), nil
}

// RetireExpense soft-deletes an expense.
func (s *LedgerService) RetireExpense(ctx context.Context, req *connect.Request[ledgerv1.RetireExpenseRequest]) (*connect.Response[ledgerv1.RetireExpenseResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("RetireExpense request received", "expense_id", req.Msg.ExpenseID, "user_id", userID)

	expense, err := s.ledger.RetireExpense(ctx, req.Msg.ExpenseID, userID, versionPtr(req.Msg.ExpectedVersion))
	if err != nil {
		return nil, connectError(err)
	}

	slog.Info("Expense retired", "expense_id", expense.ID)
	return connect.NewResponse(&ledgerv1.RetireExpenseResponse{Expense: expenseToProto(expense)}), nil
}

// GetExpense returns one expense, retired or not.
func (s *LedgerService) GetExpense(ctx context.Context, req *connect.Request[ledgerv1.GetExpenseRequest]) (*connect.Response[ledgerv1.GetExpenseResponse], error) {
	expense, err := s.ledger.GetExpense(ctx, req.Msg.ExpenseID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ledgerv1.GetExpenseResponse{Expense: expenseToProto(expense)}), nil
}

// ListExpenses returns a group's expenses, oldest first.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[ledgerv1.ListExpensesRequest]) (*connect.Response[ledgerv1.ListExpensesResponse], error) {
	expenses, err := s.ledger.ListExpenses(ctx, req.Msg.GroupID, middleware.GetUserID(ctx), ledger.ListOptions{
		IncludeDeleted: req.Msg.IncludeDeleted,
	})
	if err != nil {
		return nil, connectError(err)
	}

	out := make([]*ledgerv1.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = expenseToProto(e)
	}
	slog.Debug("ListExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))
	return connect.NewResponse(&ledgerv1.ListExpensesResponse{Expenses: out}), nil
}

// RecordSettlement records a payment between two group members.
func (s *LedgerService) RecordSettlement(ctx context.Context, req *connect.Request[ledgerv1.RecordSettlementRequest]) (*connect.Response[ledgerv1.RecordSettlementResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("RecordSettlement request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"payer_id", req.Msg.PayerID,
		"payee_id", req.Msg.PayeeID,
		"amount", req.Msg.Amount,
		"currency", req.Msg.Currency,
	)

	draft, err := settlementDraft(req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	settlement, err := s.ledger.RecordSettlement(ctx, draft, userID)
	if err != nil {
		return nil, connectError(err)
	}

	slog.Info("Settlement recorded", "settlement_id", settlement.ID, "group_id", settlement.GroupID)
	return connect.NewResponse(&ledgerv1.RecordSettlementResponse{Settlement: settlementToProto(settlement)}), nil
}

// AmendSettlement changes the fields present in the request.
func (s *LedgerService) AmendSettlement(ctx context.Context, req *connect.Request[ledgerv1.AmendSettlementRequest]) (*connect.Response[ledgerv1.AmendSettlementResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("AmendSettlement request received", "settlement_id", req.Msg.SettlementID, "user_id", userID)

	upd, err := settlementUpdate(req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	settlement, err := s.ledger.AmendSettlement(ctx, req.Msg.SettlementID, upd, userID)
	if err != nil {
		return nil, connectError(err)
	}

	slog.Info("Settlement amended", "settlement_id", settlement.ID, "version", settlement.Version)
	return connect.NewResponse(&ledgerv1.AmendSettlementResponse{Settlement: settlementToProto(settlement)}), nil
}

// RetireSettlement soft-deletes a settlement.
func (s *LedgerService) RetireSettlement(ctx context.Context, req *connect.Request[ledgerv1.RetireSettlementRequest]) (*connect.Response[ledgerv1.RetireSettlementResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("RetireSettlement request received", "settlement_id", req.Msg.SettlementID, "user_id", userID)

	settlement, err := s.ledger.RetireSettlement(ctx, req.Msg.SettlementID, userID, versionPtr(req.Msg.ExpectedVersion))
	if err != nil {
		return nil, connectError(err)
	}

	slog.Info("Settlement retired", "settlement_id", settlement.ID)
	return connect.NewResponse(&ledgerv1.RetireSettlementResponse{Settlement: settlementToProto(settlement)}), nil
}

// GetSettlement returns one settlement, retired or not.
func (s *LedgerService) GetSettlement(ctx context.Context, req *connect.Request[ledgerv1.GetSettlementRequest]) (*connect.Response[ledgerv1.GetSettlementResponse], error) {
	settlement, err := s.ledger.GetSettlement(ctx, req.Msg.SettlementID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ledgerv1.GetSettlementResponse{Settlement: settlementToProto(settlement)}), nil
}

// ListSettlements returns a group's settlements, oldest first.
func (s *LedgerService) ListSettlements(ctx context.Context, req *connect.Request[ledgerv1.ListSettlementsRequest]) (*connect.Response[ledgerv1.ListSettlementsResponse], error) {
	settlements, err := s.ledger.ListSettlements(ctx, req.Msg.GroupID, middleware.GetUserID(ctx), ledger.ListOptions{
		IncludeDeleted: req.Msg.IncludeDeleted,
	})
	if err != nil {
		return nil, connectError(err)
	}

	out := make([]*ledgerv1.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = settlementToProto(st)
	}
	slog.Debug("ListSettlements successful", "group_id", req.Msg.GroupID, "count", len(out))
	return connect.NewResponse(&ledgerv1.ListSettlementsResponse{Settlements: out}), nil
}

// GetGroupBalances calculates per-currency balances and suggested debts
// across all active records of a group.
func (s *LedgerService) GetGroupBalances(ctx context.Context, req *connect.Request[ledgerv1.GetGroupBalancesRequest]) (*connect.Response[ledgerv1.GetGroupBalancesResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	balances, err := s.ledger.GetGroupBalances(ctx, groupID, middleware.GetUserID(ctx))
	if err != nil {
		return nil, connectError(err)
	}

	resp := balancesToProto(balances)
	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"currencies", len(resp.Currencies),
	)
	return connect.NewResponse(resp), nil
}

// Package ledgerv1connect binds the splitledger.v1.LedgerService messages to
// Connect handlers and clients.
package ledgerv1connect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	ledgerv1 "github.com/mmynk/splitledger/pkg/api/ledgerv1"
)

// LedgerServiceName is the fully-qualified name of the LedgerService service.
const LedgerServiceName = "splitledger.v1.LedgerService"

// Procedure paths, in the form "/<service>/<method>".
const (
	LedgerServiceRecordExpenseProcedure    = "/splitledger.v1.LedgerService/RecordExpense"
	LedgerServiceAmendExpenseProcedure     = "/splitledger.v1.LedgerService/AmendExpense"
	LedgerServiceRetireExpenseProcedure    = "/splitledger.v1.LedgerService/RetireExpense"
	LedgerServiceGetExpenseProcedure       = "/splitledger.v1.LedgerService/GetExpense"
	LedgerServiceListExpensesProcedure     = "/splitledger.v1.LedgerService/ListExpenses"
	LedgerServiceRecordSettlementProcedure = "/splitledger.v1.LedgerService/RecordSettlement"
	LedgerServiceAmendSettlementProcedure  = "/splitledger.v1.LedgerService/AmendSettlement"
	LedgerServiceRetireSettlementProcedure = "/splitledger.v1.LedgerService/RetireSettlement"
	LedgerServiceGetSettlementProcedure    = "/splitledger.v1.LedgerService/GetSettlement"
	LedgerServiceListSettlementsProcedure  = "/splitledger.v1.LedgerService/ListSettlements"
	LedgerServiceGetGroupBalancesProcedure = "/splitledger.v1.LedgerService/GetGroupBalances"
)

// LedgerServiceHandler is implemented by the server.
type LedgerServiceHandler interface {
	RecordExpense(context.Context, *connect.Request[ledgerv1.RecordExpenseRequest]) (*connect.Response[ledgerv1.RecordExpenseResponse], error)
	AmendExpense(context.Context, *connect.Request[ledgerv1.AmendExpenseRequest]) (*connect.Response[ledgerv1.AmendExpenseResponse], error)
	RetireExpense(context.Context, *connect.Request[ledgerv1.RetireExpenseRequest]) (*connect.Response[ledgerv1.RetireExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[ledgerv1.GetExpenseRequest]) (*connect.Response[ledgerv1.GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ledgerv1.ListExpensesRequest]) (*connect.Response[ledgerv1.ListExpensesResponse], error)
	RecordSettlement(context.Context, *connect.Request[ledgerv1.RecordSettlementRequest]) (*connect.Response[ledgerv1.RecordSettlementResponse], error)
	AmendSettlement(context.Context, *connect.Request[ledgerv1.AmendSettlementRequest]) (*connect.Response[ledgerv1.AmendSettlementResponse], error)
	RetireSettlement(context.Context, *connect.Request[ledgerv1.RetireSettlementRequest]) (*connect.Response[ledgerv1.RetireSettlementResponse], error)
	GetSettlement(context.Context, *connect.Request[ledgerv1.GetSettlementRequest]) (*connect.Response[ledgerv1.GetSettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[ledgerv1.ListSettlementsRequest]) (*connect.Response[ledgerv1.ListSettlementsResponse], error)
	GetGroupBalances(context.Context, *connect.Request[ledgerv1.GetGroupBalancesRequest]) (*connect.Response[ledgerv1.GetGroupBalancesResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself. The JSON codec is always registered.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	handlers := map[string]http.Handler{
		LedgerServiceRecordExpenseProcedure:    connect.NewUnaryHandler(LedgerServiceRecordExpenseProcedure, svc.RecordExpense, opts...),
		LedgerServiceAmendExpenseProcedure:     connect.NewUnaryHandler(LedgerServiceAmendExpenseProcedure, svc.AmendExpense, opts...),
		LedgerServiceRetireExpenseProcedure:    connect.NewUnaryHandler(LedgerServiceRetireExpenseProcedure, svc.RetireExpense, opts...),
		LedgerServiceGetExpenseProcedure:       connect.NewUnaryHandler(LedgerServiceGetExpenseProcedure, svc.GetExpense, opts...),
		LedgerServiceListExpensesProcedure:     connect.NewUnaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts...),
		LedgerServiceRecordSettlementProcedure: connect.NewUnaryHandler(LedgerServiceRecordSettlementProcedure, svc.RecordSettlement, opts...),
		LedgerServiceAmendSettlementProcedure:  connect.NewUnaryHandler(LedgerServiceAmendSettlementProcedure, svc.AmendSettlement, opts...),
		LedgerServiceRetireSettlementProcedure: connect.NewUnaryHandler(LedgerServiceRetireSettlementProcedure, svc.RetireSettlement, opts...),
		LedgerServiceGetSettlementProcedure:    connect.NewUnaryHandler(LedgerServiceGetSettlementProcedure, svc.GetSettlement, opts...),
		LedgerServiceListSettlementsProcedure:  connect.NewUnaryHandler(LedgerServiceListSettlementsProcedure, svc.ListSettlements, opts...),
		LedgerServiceGetGroupBalancesProcedure: connect.NewUnaryHandler(LedgerServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts...),
	}

	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// LedgerServiceClient is a client for the splitledger.v1.LedgerService service.
type LedgerServiceClient interface {
	RecordExpense(context.Context, *connect.Request[ledgerv1.RecordExpenseRequest]) (*connect.Response[ledgerv1.RecordExpenseResponse], error)
	AmendExpense(context.Context, *connect.Request[ledgerv1.AmendExpenseRequest]) (*connect.Response[ledgerv1.AmendExpenseResponse], error)
	RetireExpense(context.Context, *connect.Request[ledgerv1.RetireExpenseRequest]) (*connect.Response[ledgerv1.RetireExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[ledgerv1.GetExpenseRequest]) (*connect.Response[ledgerv1.GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ledgerv1.ListExpensesRequest]) (*connect.Response[ledgerv1.ListExpensesResponse], error)
	RecordSettlement(context.Context, *connect.Request[ledgerv1.RecordSettlementRequest]) (*connect.Response[ledgerv1.RecordSettlementResponse], error)
	AmendSettlement(context.Context, *connect.Request[ledgerv1.AmendSettlementRequest]) (*connect.Response[ledgerv1.AmendSettlementResponse], error)
	RetireSettlement(context.Context, *connect.Request[ledgerv1.RetireSettlementRequest]) (*connect.Response[ledgerv1.RetireSettlementResponse], error)
	GetSettlement(context.Context, *connect.Request[ledgerv1.GetSettlementRequest]) (*connect.Response[ledgerv1.GetSettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[ledgerv1.ListSettlementsRequest]) (*connect.Response[ledgerv1.ListSettlementsResponse], error)
	GetGroupBalances(context.Context, *connect.Request[ledgerv1.GetGroupBalancesRequest]) (*connect.Response[ledgerv1.GetGroupBalancesResponse], error)
}

// NewLedgerServiceClient constructs a client for the LedgerService. baseURL
// is the server root, e.g. http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ledgerServiceClient{
		recordExpense:    connect.NewClient[ledgerv1.RecordExpenseRequest, ledgerv1.RecordExpenseResponse](httpClient, baseURL+LedgerServiceRecordExpenseProcedure, opts...),
		amendExpense:     connect.NewClient[ledgerv1.AmendExpenseRequest, ledgerv1.AmendExpenseResponse](httpClient, baseURL+LedgerServiceAmendExpenseProcedure, opts...),
		retireExpense:    connect.NewClient[ledgerv1.RetireExpenseRequest, ledgerv1.RetireExpenseResponse](httpClient, baseURL+LedgerServiceRetireExpenseProcedure, opts...),
		getExpense:       connect.NewClient[ledgerv1.GetExpenseRequest, ledgerv1.GetExpenseResponse](httpClient, baseURL+LedgerServiceGetExpenseProcedure, opts...),
		listExpenses:     connect.NewClient[ledgerv1.ListExpensesRequest, ledgerv1.ListExpensesResponse](httpClient, baseURL+LedgerServiceListExpensesProcedure, opts...),
		recordSettlement: connect.NewClient[ledgerv1.RecordSettlementRequest, ledgerv1.RecordSettlementResponse](httpClient, baseURL+LedgerServiceRecordSettlementProcedure, opts...),
		amendSettlement:  connect.NewClient[ledgerv1.AmendSettlementRequest, ledgerv1.AmendSettlementResponse](httpClient, baseURL+LedgerServiceAmendSettlementProcedure, opts...),
		retireSettlement: connect.NewClient[ledgerv1.RetireSettlementRequest, ledgerv1.RetireSettlementResponse](httpClient, baseURL+LedgerServiceRetireSettlementProcedure, opts...),
		getSettlement:    connect.NewClient[ledgerv1.GetSettlementRequest, ledgerv1.GetSettlementResponse](httpClient, baseURL+LedgerServiceGetSettlementProcedure, opts...),
		listSettlements:  connect.NewClient[ledgerv1.ListSettlementsRequest, ledgerv1.ListSettlementsResponse](httpClient, baseURL+LedgerServiceListSettlementsProcedure, opts...),
		getGroupBalances: connect.NewClient[ledgerv1.GetGroupBalancesRequest, ledgerv1.GetGroupBalancesResponse](httpClient, baseURL+LedgerServiceGetGroupBalancesProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	recordExpense    *connect.Client[ledgerv1.RecordExpenseRequest, ledgerv1.RecordExpenseResponse]
	amendExpense     *connect.Client[ledgerv1.AmendExpenseRequest, ledgerv1.AmendExpenseResponse]
	retireExpense    *connect.Client[ledgerv1.RetireExpenseRequest, ledgerv1.RetireExpenseResponse]
	getExpense       *connect.Client[ledgerv1.GetExpenseRequest, ledgerv1.GetExpenseResponse]
	listExpenses     *connect.Client[ledgerv1.ListExpensesRequest, ledgerv1.ListExpensesResponse]
	recordSettlement *connect.Client[ledgerv1.RecordSettlementRequest, ledgerv1.RecordSettlementResponse]
	amendSettlement  *connect.Client[ledgerv1.AmendSettlementRequest, ledgerv1.AmendSettlementResponse]
	retireSettlement *connect.Client[ledgerv1.RetireSettlementRequest, ledgerv1.RetireSettlementResponse]
	getSettlement    *connect.Client[ledgerv1.GetSettlementRequest, ledgerv1.GetSettlementResponse]
	listSettlements  *connect.Client[ledgerv1.ListSettlementsRequest, ledgerv1.ListSettlementsResponse]
	getGroupBalances *connect.Client[ledgerv1.GetGroupBalancesRequest, ledgerv1.GetGroupBalancesResponse]
}

func (c *ledgerServiceClient) RecordExpense(ctx context.Context, req *connect.Request[ledgerv1.RecordExpenseRequest]) (*connect.Response[ledgerv1.RecordExpenseResponse], error) {
	return c.recordExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) AmendExpense(ctx context.Context, req *connect.Request[ledgerv1.AmendExpenseRequest]) (*connect.Response[ledgerv1.AmendExpenseResponse], error) {
	return c.amendExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) RetireExpense(ctx context.Context, req *connect.Request[ledgerv1.RetireExpenseRequest]) (*connect.Response[ledgerv1.RetireExpenseResponse], error) {
	return c.retireExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetExpense(ctx context.Context, req *connect.Request[ledgerv1.GetExpenseRequest]) (*connect.Response[ledgerv1.GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ledgerv1.ListExpensesRequest]) (*connect.Response[ledgerv1.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) RecordSettlement(ctx context.Context, req *connect.Request[ledgerv1.RecordSettlementRequest]) (*connect.Response[ledgerv1.RecordSettlementResponse], error) {
	return c.recordSettlement.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) AmendSettlement(ctx context.Context, req *connect.Request[ledgerv1.AmendSettlementRequest]) (*connect.Response[ledgerv1.AmendSettlementResponse], error) {
	return c.amendSettlement.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) RetireSettlement(ctx context.Context, req *connect.Request[ledgerv1.RetireSettlementRequest]) (*connect.Response[ledgerv1.RetireSettlementResponse], error) {
	return c.retireSettlement.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetSettlement(ctx context.Context, req *connect.Request[ledgerv1.GetSettlementRequest]) (*connect.Response[ledgerv1.GetSettlementResponse], error) {
	return c.getSettlement.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListSettlements(ctx context.Context, req *connect.Request[ledgerv1.ListSettlementsRequest]) (*connect.Response[ledgerv1.ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[ledgerv1.GetGroupBalancesRequest]) (*connect.Response[ledgerv1.GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

// UnimplementedLedgerServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedLedgerServiceHandler struct{}

func unimplemented(procedure string) error {
	return connect.NewError(connect.CodeUnimplemented, errors.New(procedure+" is not implemented"))
}

func (UnimplementedLedgerServiceHandler) RecordExpense(context.Context, *connect.Request[ledgerv1.RecordExpenseRequest]) (*connect.Response[ledgerv1.RecordExpenseResponse], error) {
	return nil, unimplemented(LedgerServiceRecordExpenseProcedure)
}

func (UnimplementedLedgerServiceHandler) AmendExpense(context.Context, *connect.Request[ledgerv1.AmendExpenseRequest]) (*connect.Response[ledgerv1.AmendExpenseResponse], error) {
	return nil, unimplemented(LedgerServiceAmendExpenseProcedure)
}

func (UnimplementedLedgerServiceHandler) RetireExpense(context.Context, *connect.Request[ledgerv1.RetireExpenseRequest]) (*connect.Response[ledgerv1.RetireExpenseResponse], error) {
	return nil, unimplemented(LedgerServiceRetireExpenseProcedure)
}

func (UnimplementedLedgerServiceHandler) GetExpense(context.Context, *connect.Request[ledgerv1.GetExpenseRequest]) (*connect.Response[ledgerv1.GetExpenseResponse], error) {
	return nil, unimplemented(LedgerServiceGetExpenseProcedure)
}

func (UnimplementedLedgerServiceHandler) ListExpenses(context.Context, *connect.Request[ledgerv1.ListExpensesRequest]) (*connect.Response[ledgerv1.ListExpensesResponse], error) {
	return nil, unimplemented(LedgerServiceListExpensesProcedure)
}

func (UnimplementedLedgerServiceHandler) RecordSettlement(context.Context, *connect.Request[ledgerv1.RecordSettlementRequest]) (*connect.Response[ledgerv1.RecordSettlementResponse], error) {
	return nil, unimplemented(LedgerServiceRecordSettlementProcedure)
}

func (UnimplementedLedgerServiceHandler) AmendSettlement(context.Context, *connect.Request[ledgerv1.AmendSettlementRequest]) (*connect.Response[ledgerv1.AmendSettlementResponse], error) {
	return nil, unimplemented(LedgerServiceAmendSettlementProcedure)
}

func (UnimplementedLedgerServiceHandler) RetireSettlement(context.Context, *connect.Request[ledgerv1.RetireSettlementRequest]) (*connect.Response[ledgerv1.RetireSettlementResponse], error) {
	return nil, unimplemented(LedgerServiceRetireSettlementProcedure)
}

func (UnimplementedLedgerServiceHandler) GetSettlement(context.Context, *connect.Request[ledgerv1.GetSettlementRequest]) (*connect.Response[ledgerv1.GetSettlementResponse], error) {
	return nil, unimplemented(LedgerServiceGetSettlementProcedure)
}

func (UnimplementedLedgerServiceHandler) ListSettlements(context.Context, *connect.Request[ledgerv1.ListSettlementsRequest]) (*connect.Response[ledgerv1.ListSettlementsResponse], error) {
	return nil, unimplemented(LedgerServiceListSettlementsProcedure)
}

func (UnimplementedLedgerServiceHandler) GetGroupBalances(context.Context, *connect.Request[ledgerv1.GetGroupBalancesRequest]) (*connect.Response[ledgerv1.GetGroupBalancesResponse], error) {
	return nil, unimplemented(LedgerServiceGetGroupBalancesProcedure)
}

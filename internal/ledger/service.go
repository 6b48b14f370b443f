// Package ledger is the single entry point for balance-affecting writes and
// balance queries. It validates requests, authorizes the acting user against
// group membership, runs writes through the mutation protocol and announces
// committed writes as events.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/mutation"
	"github.com/mmynk/splitledger/internal/storage"
)

// Config tunes a Service.
type Config struct {
	// MaxAmount is the sanity ceiling for a single expense or settlement.
	MaxAmount decimal.Decimal

	// Retry bounds retries of transient storage contention.
	Retry mutation.RetryPolicy
}

// DefaultConfig returns a ten million unit ceiling and the default retry
// policy.
func DefaultConfig() Config {
	return Config{
		MaxAmount: decimal.NewFromInt(10_000_000),
		Retry:     mutation.DefaultRetryPolicy(),
	}
}

// Service implements the ledger operations.
type Service struct {
	store     storage.Store
	protocol  *mutation.Protocol
	publisher events.Publisher
	validate  *requestValidator
	now       func() time.Time
}

// New creates a Service. A nil publisher logs events instead.
func New(store storage.Store, publisher events.Publisher, cfg Config) *Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if cfg.MaxAmount.IsZero() {
		cfg.MaxAmount = DefaultConfig().MaxAmount
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = metrics.RecordRetry
	}
	return &Service{
		store:     store,
		protocol:  mutation.NewProtocol(store, cfg.Retry),
		publisher: publisher,
		validate:  newRequestValidator(cfg.MaxAmount),
		now:       time.Now,
	}
}

// RecordExpense validates draft and stores it as a new expense created by
// actorID. The actor must be a current member of the group and either the
// payer or a participant; the payer and all participants must be current
// members.
func (s *Service) RecordExpense(ctx context.Context, draft ExpenseDraft, actorID string) (*models.Expense, error) {
	e, err := s.recordExpense(ctx, draft, actorID)
	if err != nil {
		return nil, s.fail("expense", "record", actorID, err)
	}
	s.succeed(ctx, "expense", "record", events.ExpenseRecorded, actorID, &e.RecordMeta)
	return e, nil
}

func (s *Service) recordExpense(ctx context.Context, draft ExpenseDraft, actorID string) (*models.Expense, error) {
	draft.Currency = money.Normalize(draft.Currency)
	if err := s.validate.check(draft); err != nil {
		return nil, err
	}
	if err := s.validate.checkAmount("amount", draft.Amount, draft.Currency); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, draft.GroupID, actorID, "actor"); err != nil {
		return nil, err
	}
	if actorID != draft.PayerID && !slices.Contains(draft.Participants, actorID) {
		return nil, &Error{
			Code:    CodeNotAuthorized,
			Field:   "actor",
			Message: "only the payer or a participant can record an expense",
		}
	}
	if err := s.requireMember(ctx, draft.GroupID, draft.PayerID, "payer_id"); err != nil {
		return nil, err
	}
	for i, p := range draft.Participants {
		if err := s.requireMember(ctx, draft.GroupID, p, fmt.Sprintf("participants[%d]", i)); err != nil {
			return nil, err
		}
	}

	in := models.SplitInput{
		Type:         draft.SplitType,
		Participants: slices.Clone(draft.Participants),
		Shares:       slices.Clone(draft.Shares),
	}
	splits, err := calculator.BuildSplits(draft.Amount, draft.Currency, in)
	if err != nil {
		return nil, err
	}

	e := &models.Expense{
		RecordMeta:   models.RecordMeta{GroupID: draft.GroupID, CreatedBy: actorID},
		Amount:       draft.Amount,
		Currency:     draft.Currency,
		PayerID:      draft.PayerID,
		Participants: in.Participants,
		SplitType:    draft.SplitType,
		Splits:       splits,
		Description:  draft.Description,
		OccurredOn:   s.day(draft.OccurredOn),
	}
	if err := s.protocol.CreateExpense(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AmendExpense applies upd to an active expense. Only the creator may amend.
func (s *Service) AmendExpense(ctx context.Context, id string, upd ExpenseUpdate, actorID string) (*models.Expense, error) {
	e, err := s.amendExpense(ctx, id, upd, actorID)
	if err != nil {
		return nil, s.fail("expense", "amend", actorID, err)
	}
	s.succeed(ctx, "expense", "amend", events.ExpenseAmended, actorID, &e.RecordMeta)
	return e, nil
}

func (s *Service) amendExpense(ctx context.Context, id string, upd ExpenseUpdate, actorID string) (*models.Expense, error) {
	if upd.empty() {
		return nil, invalid("", "update changes no fields")
	}
	if upd.Currency != nil {
		cur := money.Normalize(*upd.Currency)
		upd.Currency = &cur
	}
	if err := s.validate.check(upd); err != nil {
		return nil, err
	}
	if upd.Participants != nil && len(upd.Participants) == 0 {
		return nil, invalid("participants", "must have at least 1 entries")
	}

	// Read phase
	current, err := s.protocol.ReadExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := current.Version
	if upd.ExpectedVersion != nil {
		expected = *upd.ExpectedVersion
	}

	// Validate phase
	if current.IsDeleted() {
		return nil, alreadyDeleted("expense", id)
	}
	if err := s.requireMember(ctx, current.GroupID, actorID, "actor"); err != nil {
		return nil, err
	}
	if actorID != current.CreatedBy {
		return nil, &Error{Code: CodeNotCreator, Field: "actor", Message: "only the creator can amend an expense"}
	}
	candidate := current.Clone()
	if err := s.applyExpenseUpdate(candidate, upd); err != nil {
		return nil, err
	}
	if upd.PayerID != nil {
		if err := s.requireMember(ctx, current.GroupID, candidate.PayerID, "payer_id"); err != nil {
			return nil, err
		}
	}
	for i, p := range upd.Participants {
		if err := s.requireMember(ctx, current.GroupID, p, fmt.Sprintf("participants[%d]", i)); err != nil {
			return nil, err
		}
	}

	// Write phase
	return s.protocol.UpdateExpense(ctx, id, expected, func(e *models.Expense) error {
		return s.applyExpenseUpdate(e, upd)
	})
}

// applyExpenseUpdate merges upd into e and rebuilds the splits when needed.
// It does no I/O so it can run inside the write transaction.
func (s *Service) applyExpenseUpdate(e *models.Expense, upd ExpenseUpdate) error {
	if upd.Amount != nil {
		e.Amount = *upd.Amount
	}
	if upd.Currency != nil {
		e.Currency = *upd.Currency
	}
	if upd.PayerID != nil {
		e.PayerID = *upd.PayerID
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.OccurredOn != nil {
		e.OccurredOn = s.day(*upd.OccurredOn)
	}
	if !upd.resplits() {
		return nil
	}

	if err := s.validate.checkAmount("amount", e.Amount, e.Currency); err != nil {
		return err
	}
	in := e.SplitInput()
	if upd.SplitType != nil {
		in.Type = *upd.SplitType
	}
	if upd.Participants != nil {
		in.Participants = slices.Clone(upd.Participants)
	}
	if upd.Shares != nil {
		in.Shares = slices.Clone(upd.Shares)
	}
	if in.Type == models.SplitEqual {
		in.Shares = nil
	}
	splits, err := calculator.BuildSplits(e.Amount, e.Currency, in)
	if err != nil {
		return err
	}
	e.SplitType = in.Type
	e.Participants = in.Participants
	e.Splits = splits
	return nil
}

// RetireExpense soft-deletes an expense. The creator or a group admin may
// retire it. A nil expected uses the version read at the start of the call.
func (s *Service) RetireExpense(ctx context.Context, id, actorID string, expected *models.Version) (*models.Expense, error) {
	e, err := s.retireExpense(ctx, id, actorID, expected)
	if err != nil {
		return nil, s.fail("expense", "retire", actorID, err)
	}
	s.succeed(ctx, "expense", "retire", events.ExpenseRetired, actorID, &e.RecordMeta)
	return e, nil
}

func (s *Service) retireExpense(ctx context.Context, id, actorID string, expected *models.Version) (*models.Expense, error) {
	current, err := s.protocol.ReadExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, alreadyDeleted("expense", id)
	}
	if err := s.requireCreatorOrAdmin(ctx, &current.RecordMeta, actorID, "expense"); err != nil {
		return nil, err
	}
	return s.protocol.RetireExpense(ctx, id, versionOr(expected, current.Version), actorID)
}

// RecordSettlement stores money that changed hands between two members.
// The actor must be the payer, the payee or a group admin. Payer and payee
// may be former members.
func (s *Service) RecordSettlement(ctx context.Context, draft SettlementDraft, actorID string) (*models.Settlement, error) {
	st, err := s.recordSettlement(ctx, draft, actorID)
	if err != nil {
		return nil, s.fail("settlement", "record", actorID, err)
	}
	s.succeed(ctx, "settlement", "record", events.SettlementRecorded, actorID, &st.RecordMeta)
	return st, nil
}

func (s *Service) recordSettlement(ctx context.Context, draft SettlementDraft, actorID string) (*models.Settlement, error) {
	draft.Currency = money.Normalize(draft.Currency)
	if err := s.validate.check(draft); err != nil {
		return nil, err
	}
	if err := s.validate.checkAmount("amount", draft.Amount, draft.Currency); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, draft.GroupID, actorID, "actor"); err != nil {
		return nil, err
	}
	if actorID != draft.PayerID && actorID != draft.PayeeID {
		admin, err := s.isAdmin(ctx, draft.GroupID, actorID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, &Error{
				Code:    CodeNotAuthorized,
				Field:   "actor",
				Message: "only the payer, the payee or a group admin can record a settlement",
			}
		}
	}
	if err := s.requireFormerMember(ctx, draft.GroupID, draft.PayerID, "payer_id"); err != nil {
		return nil, err
	}
	if err := s.requireFormerMember(ctx, draft.GroupID, draft.PayeeID, "payee_id"); err != nil {
		return nil, err
	}

	st := &models.Settlement{
		RecordMeta: models.RecordMeta{GroupID: draft.GroupID, CreatedBy: actorID},
		PayerID:    draft.PayerID,
		PayeeID:    draft.PayeeID,
		Amount:     draft.Amount,
		Currency:   draft.Currency,
		SettledOn:  s.day(draft.SettledOn),
		Note:       draft.Note,
	}
	if err := s.protocol.CreateSettlement(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// AmendSettlement applies upd to an active settlement. The creator or a
// group admin may amend.
func (s *Service) AmendSettlement(ctx context.Context, id string, upd SettlementUpdate, actorID string) (*models.Settlement, error) {
	st, err := s.amendSettlement(ctx, id, upd, actorID)
	if err != nil {
		return nil, s.fail("settlement", "amend", actorID, err)
	}
	s.succeed(ctx, "settlement", "amend", events.SettlementAmended, actorID, &st.RecordMeta)
	return st, nil
}

func (s *Service) amendSettlement(ctx context.Context, id string, upd SettlementUpdate, actorID string) (*models.Settlement, error) {
	if upd.empty() {
		return nil, invalid("", "update changes no fields")
	}
	if upd.Currency != nil {
		cur := money.Normalize(*upd.Currency)
		upd.Currency = &cur
	}
	if err := s.validate.check(upd); err != nil {
		return nil, err
	}

	current, err := s.protocol.ReadSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, alreadyDeleted("settlement", id)
	}
	if err := s.requireCreatorOrAdmin(ctx, &current.RecordMeta, actorID, "settlement"); err != nil {
		return nil, err
	}
	candidate := current.Clone()
	if err := s.applySettlementUpdate(candidate, upd); err != nil {
		return nil, err
	}
	if upd.PayerID != nil {
		if err := s.requireFormerMember(ctx, current.GroupID, candidate.PayerID, "payer_id"); err != nil {
			return nil, err
		}
	}
	if upd.PayeeID != nil {
		if err := s.requireFormerMember(ctx, current.GroupID, candidate.PayeeID, "payee_id"); err != nil {
			return nil, err
		}
	}

	return s.protocol.UpdateSettlement(ctx, id, versionOr(upd.ExpectedVersion, current.Version), func(st *models.Settlement) error {
		return s.applySettlementUpdate(st, upd)
	})
}

func (s *Service) applySettlementUpdate(st *models.Settlement, upd SettlementUpdate) error {
	if upd.PayerID != nil {
		st.PayerID = *upd.PayerID
	}
	if upd.PayeeID != nil {
		st.PayeeID = *upd.PayeeID
	}
	if upd.Amount != nil {
		st.Amount = *upd.Amount
	}
	if upd.Currency != nil {
		st.Currency = *upd.Currency
	}
	if upd.SettledOn != nil {
		st.SettledOn = s.day(*upd.SettledOn)
	}
	if upd.Note != nil {
		st.Note = *upd.Note
	}

	if st.PayerID == st.PayeeID {
		return invalid("payee_id", "must differ from payer_id")
	}
	if upd.Amount != nil || upd.Currency != nil {
		return s.validate.checkAmount("amount", st.Amount, st.Currency)
	}
	return nil
}

// RetireSettlement soft-deletes a settlement. The creator or a group admin
// may retire it.
func (s *Service) RetireSettlement(ctx context.Context, id, actorID string, expected *models.Version) (*models.Settlement, error) {
	st, err := s.retireSettlement(ctx, id, actorID, expected)
	if err != nil {
		return nil, s.fail("settlement", "retire", actorID, err)
	}
	s.succeed(ctx, "settlement", "retire", events.SettlementRetired, actorID, &st.RecordMeta)
	return st, nil
}

func (s *Service) retireSettlement(ctx context.Context, id, actorID string, expected *models.Version) (*models.Settlement, error) {
	current, err := s.protocol.ReadSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, alreadyDeleted("settlement", id)
	}
	if err := s.requireCreatorOrAdmin(ctx, &current.RecordMeta, actorID, "settlement"); err != nil {
		return nil, err
	}
	return s.protocol.RetireSettlement(ctx, id, versionOr(expected, current.Version), actorID)
}

// GetExpense returns an expense, retired or not, to a member of its group.
func (s *Service) GetExpense(ctx context.Context, id, actorID string) (*models.Expense, error) {
	e, err := s.protocol.ReadExpense(ctx, id)
	if err == nil {
		err = s.requireMember(ctx, e.GroupID, actorID, "actor")
	}
	if err != nil {
		return nil, classify(err)
	}
	return e, nil
}

// GetSettlement returns a settlement, retired or not, to a member of its group.
func (s *Service) GetSettlement(ctx context.Context, id, actorID string) (*models.Settlement, error) {
	st, err := s.protocol.ReadSettlement(ctx, id)
	if err == nil {
		err = s.requireMember(ctx, st.GroupID, actorID, "actor")
	}
	if err != nil {
		return nil, classify(err)
	}
	return st, nil
}

// ListExpenses returns a group's expenses, oldest first.
func (s *Service) ListExpenses(ctx context.Context, groupID, actorID string, opts ListOptions) ([]*models.Expense, error) {
	expenses, _, err := s.listLedger(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !opts.IncludeDeleted {
		expenses = slices.DeleteFunc(expenses, func(e *models.Expense) bool { return e.IsDeleted() })
	}
	return expenses, nil
}

// ListSettlements returns a group's settlements, oldest first.
func (s *Service) ListSettlements(ctx context.Context, groupID, actorID string, opts ListOptions) ([]*models.Settlement, error) {
	_, settlements, err := s.listLedger(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !opts.IncludeDeleted {
		settlements = slices.DeleteFunc(settlements, func(st *models.Settlement) bool { return st.IsDeleted() })
	}
	return settlements, nil
}

func (s *Service) listLedger(ctx context.Context, groupID, actorID string) ([]*models.Expense, []*models.Settlement, error) {
	if err := s.requireMember(ctx, groupID, actorID, "actor"); err != nil {
		return nil, nil, classify(err)
	}
	expenses, settlements, err := s.store.ListGroupLedger(ctx, groupID)
	if err != nil {
		slog.Error("ListGroupLedger failed", "group_id", groupID, "error", err)
		return nil, nil, classify(err)
	}
	return expenses, settlements, nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID, field string) error {
	if userID == "" {
		return &Error{Code: CodeNotAuthorized, Field: field, Message: "authentication required"}
	}
	ok, err := s.store.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return notAMember(field, userID, groupID)
	}
	return nil
}

func (s *Service) requireFormerMember(ctx context.Context, groupID, userID, field string) error {
	ok, err := s.store.WasMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return notAMember(field, userID, groupID)
	}
	return nil
}

func (s *Service) isAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	ok, err := s.store.IsAdmin(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return ok, nil
}

// requireCreatorOrAdmin authorizes mutation of an existing record.
func (s *Service) requireCreatorOrAdmin(ctx context.Context, meta *models.RecordMeta, actorID, kind string) error {
	if err := s.requireMember(ctx, meta.GroupID, actorID, "actor"); err != nil {
		return err
	}
	if actorID == meta.CreatedBy {
		return nil
	}
	admin, err := s.isAdmin(ctx, meta.GroupID, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return &Error{
			Code:    CodeNotCreator,
			Field:   "actor",
			Message: fmt.Sprintf("only the creator or a group admin can change this %s", kind),
		}
	}
	return nil
}

func alreadyDeleted(kind, id string) *Error {
	return &Error{Code: CodeAlreadyDeleted, Message: fmt.Sprintf("%s %s was deleted", kind, id)}
}

func versionOr(v *models.Version, fallback models.Version) models.Version {
	if v != nil {
		return *v
	}
	return fallback
}

// day truncates t to its UTC calendar date, defaulting to today.
func (s *Service) day(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// fail classifies, logs and counts a failed write.
func (s *Service) fail(record, op, actorID string, err error) error {
	le := classify(err)
	metrics.RecordMutation(record, op, string(le.Code))
	switch le.Code {
	case CodeService, CodeFatalData:
		slog.Error(fmt.Sprintf("%s %s failed", record, op), "actor_id", actorID, "error", err)
	default:
		slog.Debug(fmt.Sprintf("%s %s rejected", record, op), "actor_id", actorID, "code", le.Code, "error", err)
	}
	return le
}

// succeed counts a committed write and publishes its event. Publishing is
// best effort; a failure is logged and the write stands.
func (s *Service) succeed(ctx context.Context, record, op string, kind events.Kind, actorID string, meta *models.RecordMeta) {
	metrics.RecordMutation(record, op, "ok")

	err := s.publisher.Publish(ctx, events.Event{
		Kind:       kind,
		GroupID:    meta.GroupID,
		RecordID:   meta.ID,
		ActorID:    actorID,
		Version:    meta.Version,
		OccurredAt: meta.UpdatedAt,
	})
	metrics.RecordEvent(err)
	if err != nil {
		slog.Warn("Failed to publish ledger event", "kind", kind, "record_id", meta.ID, "error", err)
	}
}

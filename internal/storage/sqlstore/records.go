package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

type scanner interface {
	Scan(dest ...any) error
}

const expenseColumns = `id, group_id, amount, currency, payer_id, split_type, description, occurred_on,
	created_by, created_at, updated_at, deleted_at, deleted_by, version`

const settlementColumns = `id, group_id, payer_id, payee_id, amount, currency, settled_on, note,
	created_by, created_at, updated_at, deleted_at, deleted_by, version`

func scanExpense(sc scanner) (*models.Expense, error) {
	e := &models.Expense{}
	var (
		currency, deletedBy  sql.NullString
		splitType, occurred  string
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)
	if err := sc.Scan(&e.ID, &e.GroupID, &e.Amount, &currency, &e.PayerID, &splitType, &e.Description, &occurred,
		&e.CreatedBy, &createdAt, &updatedAt, &deletedAt, &deletedBy, &e.Version); err != nil {
		return nil, err
	}
	occurredOn, err := parseDate(occurred)
	if err != nil {
		return nil, fmt.Errorf("expense %s has bad occurred_on %q: %w", e.ID, occurred, err)
	}
	e.Currency = currency.String
	e.SplitType = models.SplitType(splitType)
	e.OccurredOn = occurredOn
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	e.DeletedAt = fromNullMillis(deletedAt)
	e.DeletedBy = deletedBy.String
	return e, nil
}

func scanSettlement(sc scanner) (*models.Settlement, error) {
	st := &models.Settlement{}
	var (
		currency, note, deletedBy sql.NullString
		settled                   string
		createdAt, updatedAt      int64
		deletedAt                 sql.NullInt64
	)
	if err := sc.Scan(&st.ID, &st.GroupID, &st.PayerID, &st.PayeeID, &st.Amount, &currency, &settled, &note,
		&st.CreatedBy, &createdAt, &updatedAt, &deletedAt, &deletedBy, &st.Version); err != nil {
		return nil, err
	}
	settledOn, err := parseDate(settled)
	if err != nil {
		return nil, fmt.Errorf("settlement %s has bad settled_on %q: %w", st.ID, settled, err)
	}
	st.Currency = currency.String
	st.SettledOn = settledOn
	st.Note = note.String
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	st.DeletedAt = fromNullMillis(deletedAt)
	st.DeletedBy = deletedBy.String
	return st, nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *Store) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	return s.getExpense(ctx, s.db, id)
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	return s.getSettlement(ctx, s.db, id)
}

func (s *Store) getExpense(ctx context.Context, q querier, id string) (*models.Expense, error) {
	e, err := scanExpense(s.queryRow(ctx, q, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get expense", err)
	}

	rows, err := s.query(ctx, q,
		"SELECT user_id, amount, percentage FROM expense_splits WHERE expense_id = ? ORDER BY position", id)
	if err != nil {
		return nil, s.fail("get expense splits", err)
	}
	defer rows.Close()

	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		e.Splits = append(e.Splits, split)
		e.Participants = append(e.Participants, split.UserID)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate expense splits", err)
	}
	return e, nil
}

func scanSplit(sc scanner, prefix ...any) (models.Split, error) {
	var (
		split models.Split
		pct   decimal.NullDecimal
	)
	dest := append(prefix, &split.UserID, &split.Amount, &pct)
	if err := sc.Scan(dest...); err != nil {
		return split, err
	}
	if pct.Valid {
		p := pct.Decimal
		split.Percentage = &p
	}
	return split, nil
}

func (s *Store) getSettlement(ctx context.Context, q querier, id string) (*models.Settlement, error) {
	st, err := scanSettlement(s.queryRow(ctx, q, "SELECT "+settlementColumns+" FROM settlements WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get settlement", err)
	}
	return st, nil
}

// ListGroupLedger retrieves every expense and settlement of a group.
func (s *Store) ListGroupLedger(ctx context.Context, groupID string) ([]*models.Expense, []*models.Settlement, error) {
	rows, err := s.query(ctx, s.db,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY created_at, id", groupID)
	if err != nil {
		return nil, nil, s.fail("list expenses", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, nil, s.fail("iterate expenses", err)
	}

	splitRows, err := s.query(ctx, s.db,
		`SELECT s.expense_id, s.user_id, s.amount, s.percentage
		 FROM expense_splits s JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = ? ORDER BY s.expense_id, s.position`, groupID)
	if err != nil {
		return nil, nil, s.fail("list expense splits", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var expenseID string
		split, err := scanSplit(splitRows, &expenseID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if e, ok := byID[expenseID]; ok {
			e.Splits = append(e.Splits, split)
			e.Participants = append(e.Participants, split.UserID)
		}
	}
	if err := splitRows.Err(); err != nil {
		return nil, nil, s.fail("iterate expense splits", err)
	}

	settlementRows, err := s.query(ctx, s.db,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at, id", groupID)
	if err != nil {
		return nil, nil, s.fail("list settlements", err)
	}
	defer settlementRows.Close()

	var settlements []*models.Settlement
	for settlementRows.Next() {
		st, err := scanSettlement(settlementRows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, st)
	}
	if err := settlementRows.Err(); err != nil {
		return nil, nil, s.fail("iterate settlements", err)
	}

	return expenses, settlements, nil
}

// tx implements storage.Tx on a *sql.Tx.
type tx struct {
	store *Store
	q     *sql.Tx
}

func (t *tx) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	return t.store.getExpense(ctx, t.q, id)
}

func (t *tx) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	return t.store.getSettlement(ctx, t.q, id)
}

func (t *tx) stamp(m *models.RecordMeta) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := t.store.now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
}

// InsertExpense persists a new expense and its splits.
func (t *tx) InsertExpense(ctx context.Context, e *models.Expense) error {
	t.stamp(&e.RecordMeta)
	s := t.store

	_, err := s.exec(ctx, t.q,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.GroupID, e.Amount, nullString(e.Currency), e.PayerID, string(e.SplitType), e.Description,
		formatDate(e.OccurredOn), e.CreatedBy, toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
		nullMillis(e.DeletedAt), nullString(e.DeletedBy), int64(1),
	)
	if err != nil {
		return s.fail("insert expense", err)
	}
	if err := t.insertSplits(ctx, e); err != nil {
		return err
	}
	e.Version = 1
	return nil
}

func (t *tx) insertSplits(ctx context.Context, e *models.Expense) error {
	for i, split := range e.Splits {
		var pct decimal.NullDecimal
		if split.Percentage != nil {
			pct = decimal.NewNullDecimal(*split.Percentage)
		}
		_, err := t.store.exec(ctx, t.q,
			"INSERT INTO expense_splits (expense_id, position, user_id, amount, percentage) VALUES (?, ?, ?, ?, ?)",
			e.ID, i, split.UserID, split.Amount, pct,
		)
		if err != nil {
			return t.store.fail("insert expense split", err)
		}
	}
	return nil
}

// SwapExpense overwrites an expense if its stored version equals expected.
func (t *tx) SwapExpense(ctx context.Context, e *models.Expense, expected models.Version) error {
	s := t.store
	e.UpdatedAt = s.now().UTC()

	res, err := s.exec(ctx, t.q,
		`UPDATE expenses SET amount = ?, currency = ?, payer_id = ?, split_type = ?, description = ?,
		 occurred_on = ?, updated_at = ?, deleted_at = ?, deleted_by = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		e.Amount, nullString(e.Currency), e.PayerID, string(e.SplitType), e.Description,
		formatDate(e.OccurredOn), toMillis(e.UpdatedAt), nullMillis(e.DeletedAt), nullString(e.DeletedBy),
		e.ID, int64(expected),
	)
	if err != nil {
		return s.fail("update expense", err)
	}
	if err := checkSwapped(res, "expense", e.ID); err != nil {
		return err
	}

	if _, err := s.exec(ctx, t.q, "DELETE FROM expense_splits WHERE expense_id = ?", e.ID); err != nil {
		return s.fail("clear expense splits", err)
	}
	if err := t.insertSplits(ctx, e); err != nil {
		return err
	}
	e.Version = expected + 1
	return nil
}

// InsertSettlement persists a new settlement.
func (t *tx) InsertSettlement(ctx context.Context, st *models.Settlement) error {
	t.stamp(&st.RecordMeta)
	s := t.store

	_, err := s.exec(ctx, t.q,
		"INSERT INTO settlements ("+settlementColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		st.ID, st.GroupID, st.PayerID, st.PayeeID, st.Amount, nullString(st.Currency), formatDate(st.SettledOn),
		nullString(st.Note), st.CreatedBy, toMillis(st.CreatedAt), toMillis(st.UpdatedAt),
		nullMillis(st.DeletedAt), nullString(st.DeletedBy), int64(1),
	)
	if err != nil {
		return s.fail("insert settlement", err)
	}
	st.Version = 1
	return nil
}

// SwapSettlement overwrites a settlement if its stored version equals expected.
func (t *tx) SwapSettlement(ctx context.Context, st *models.Settlement, expected models.Version) error {
	s := t.store
	st.UpdatedAt = s.now().UTC()

	res, err := s.exec(ctx, t.q,
		`UPDATE settlements SET payer_id = ?, payee_id = ?, amount = ?, currency = ?, settled_on = ?, note = ?,
		 updated_at = ?, deleted_at = ?, deleted_by = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		st.PayerID, st.PayeeID, st.Amount, nullString(st.Currency), formatDate(st.SettledOn), nullString(st.Note),
		toMillis(st.UpdatedAt), nullMillis(st.DeletedAt), nullString(st.DeletedBy),
		st.ID, int64(expected),
	)
	if err != nil {
		return s.fail("update settlement", err)
	}
	if err := checkSwapped(res, "settlement", st.ID); err != nil {
		return err
	}
	st.Version = expected + 1
	return nil
}

func checkSwapped(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check %s update: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrVersionMismatch)
	}
	return nil
}

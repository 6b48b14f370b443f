// Package memory provides an in-process storage.Store for tests and
// single-node development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps records in maps. Transactions are serialized by a mutex and
// their writes are staged until commit.
type Store struct {
	mu          sync.Mutex
	expenses    map[string]*models.Expense
	settlements map[string]*models.Settlement
	groups      map[string]*models.Group
	contention  int
	now         func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		expenses:    make(map[string]*models.Expense),
		settlements: make(map[string]*models.Settlement),
		groups:      make(map[string]*models.Group),
		now:         time.Now,
	}
}

// InjectContention makes the next n transactions fail with
// storage.ErrContention before running.
func (s *Store) InjectContention(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contention = n
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// WithTx runs fn with exclusive access to the store.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.contention > 0 {
		s.contention--
		return fmt.Errorf("failed to begin transaction: %w", storage.ErrContention)
	}

	t := &tx{
		store:       s,
		expenses:    make(map[string]*models.Expense),
		settlements: make(map[string]*models.Settlement),
	}
	if err := fn(storage.Guard(t)); err != nil {
		return err
	}

	for id, e := range t.expenses {
		s.expenses[id] = e
	}
	for id, st := range t.settlements {
		s.settlements[id] = st
	}
	return nil
}

// GetExpense returns a copy of the stored expense.
func (s *Store) GetExpense(_ context.Context, id string) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getExpense(id)
}

func (s *Store) getExpense(id string) (*models.Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	return e.Clone(), nil
}

// GetSettlement returns a copy of the stored settlement.
func (s *Store) GetSettlement(_ context.Context, id string) (*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSettlement(id)
}

func (s *Store) getSettlement(id string) (*models.Settlement, error) {
	st, ok := s.settlements[id]
	if !ok {
		return nil, fmt.Errorf("settlement %s: %w", id, storage.ErrNotFound)
	}
	return st.Clone(), nil
}

// ListGroupLedger returns copies of a group's records, oldest first.
func (s *Store) ListGroupLedger(_ context.Context, groupID string) ([]*models.Expense, []*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expenses []*models.Expense
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			expenses = append(expenses, e.Clone())
		}
	}
	sort.Slice(expenses, func(i, j int) bool { return olderFirst(&expenses[i].RecordMeta, &expenses[j].RecordMeta) })

	var settlements []*models.Settlement
	for _, st := range s.settlements {
		if st.GroupID == groupID {
			settlements = append(settlements, st.Clone())
		}
	}
	sort.Slice(settlements, func(i, j int) bool {
		return olderFirst(&settlements[i].RecordMeta, &settlements[j].RecordMeta)
	})

	return expenses, settlements, nil
}

func olderFirst(a, b *models.RecordMeta) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// tx stages writes until WithTx commits them.
type tx struct {
	store       *Store
	expenses    map[string]*models.Expense
	settlements map[string]*models.Settlement
}

func (t *tx) GetExpense(_ context.Context, id string) (*models.Expense, error) {
	return t.store.getExpense(id)
}

func (t *tx) GetSettlement(_ context.Context, id string) (*models.Settlement, error) {
	return t.store.getSettlement(id)
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

func (t *tx) InsertExpense(_ context.Context, e *models.Expense) error {
	t.stamp(&e.RecordMeta)
	if _, exists := t.store.expenses[e.ID]; exists {
		return fmt.Errorf("failed to insert expense: duplicate id %s", e.ID)
	}
	e.Version = 1
	t.expenses[e.ID] = e.Clone()
	return nil
}

func (t *tx) InsertSettlement(_ context.Context, st *models.Settlement) error {
	t.stamp(&st.RecordMeta)
	if _, exists := t.store.settlements[st.ID]; exists {
		return fmt.Errorf("failed to insert settlement: duplicate id %s", st.ID)
	}
	st.Version = 1
	t.settlements[st.ID] = st.Clone()
	return nil
}

func (t *tx) SwapExpense(_ context.Context, e *models.Expense, expected models.Version) error {
	current, ok := t.expenses[e.ID]
	if !ok {
		current = t.store.expenses[e.ID]
	}
	if current == nil || current.Version != expected {
		return fmt.Errorf("expense %s: %w", e.ID, storage.ErrVersionMismatch)
	}
	e.UpdatedAt = t.store.now().UTC()
	e.Version = expected + 1
	t.expenses[e.ID] = e.Clone()
	return nil
}

func (t *tx) SwapSettlement(_ context.Context, st *models.Settlement, expected models.Version) error {
	current, ok := t.settlements[st.ID]
	if !ok {
		current = t.store.settlements[st.ID]
	}
	if current == nil || current.Version != expected {
		return fmt.Errorf("settlement %s: %w", st.ID, storage.ErrVersionMismatch)
	}
	st.UpdatedAt = t.store.now().UTC()
	st.Version = expected + 1
	t.settlements[st.ID] = st.Clone()
	return nil
}

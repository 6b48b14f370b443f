// Package mutation implements the optimistic concurrency protocol every
// ledger write goes through.
//
// A write has three phases:
//  1. Read: the caller loads the record and captures its Version.
//  2. Validate: the caller checks authorization and business rules against
//     what it read, without holding a transaction.
//  3. Write: inside one transaction the record is re-read; if it vanished,
//     was retired or its Version moved, the write is refused. Otherwise the
//     change is applied and stored with a compare-and-swap that advances
//     the Version.
//
// Transient storage contention is retried with backoff (see WithRetry).
// A Version mismatch is a logical conflict and is returned to the caller
// as ErrConcurrentUpdate, never retried.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

var (
	// ErrNotFound means the record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyDeleted means the record was retired. Retirement is terminal.
	ErrAlreadyDeleted = errors.New("record already deleted")

	// ErrConcurrentUpdate means the record changed after the caller read it.
	ErrConcurrentUpdate = errors.New("record was modified concurrently")
)

// Protocol runs reads and writes against a store.
type Protocol struct {
	store  storage.Store
	policy RetryPolicy
	now    func() time.Time
}

// NewProtocol creates a Protocol that retries contention per policy.
func NewProtocol(store storage.Store, policy RetryPolicy) *Protocol {
	return &Protocol{store: store, policy: policy, now: time.Now}
}

// ReadExpense is the read phase for an expense.
func (p *Protocol) ReadExpense(ctx context.Context, id string) (*models.Expense, error) {
	e, err := p.store.GetExpense(ctx, id)
	if err != nil {
		return nil, translate("expense", id, err)
	}
	return e, nil
}

// ReadSettlement is the read phase for a settlement.
func (p *Protocol) ReadSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	s, err := p.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, translate("settlement", id, err)
	}
	return s, nil
}

// CreateExpense inserts e. The ID is fixed before the first attempt so a
// retry cannot create a second record.
func (p *Protocol) CreateExpense(ctx context.Context, e *models.Expense) error {
	p.prepare(&e.RecordMeta)
	return WithRetry(ctx, p.policy, func(ctx context.Context) error {
		return p.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertExpense(ctx, e)
		})
	})
}

// CreateSettlement inserts s.
func (p *Protocol) CreateSettlement(ctx context.Context, s *models.Settlement) error {
	p.prepare(&s.RecordMeta)
	return WithRetry(ctx, p.policy, func(ctx context.Context) error {
		return p.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertSettlement(ctx, s)
		})
	})
}

func (p *Protocol) prepare(m *models.RecordMeta) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = p.now().UTC()
	}
	m.UpdatedAt = m.CreatedAt
}

// UpdateExpense is the write phase for an expense. apply receives the
// record as re-read inside the transaction and must not do I/O.
func (p *Protocol) UpdateExpense(ctx context.Context, id string, expected models.Version, apply func(*models.Expense) error) (*models.Expense, error) {
	return update(ctx, p, "expense", id, expected,
		func(ctx context.Context, tx storage.Tx) (*models.Expense, error) { return tx.GetExpense(ctx, id) },
		func(ctx context.Context, tx storage.Tx, e *models.Expense) error { return tx.SwapExpense(ctx, e, expected) },
		apply,
	)
}

// UpdateSettlement is the write phase for a settlement.
func (p *Protocol) UpdateSettlement(ctx context.Context, id string, expected models.Version, apply func(*models.Settlement) error) (*models.Settlement, error) {
	return update(ctx, p, "settlement", id, expected,
		func(ctx context.Context, tx storage.Tx) (*models.Settlement, error) { return tx.GetSettlement(ctx, id) },
		func(ctx context.Context, tx storage.Tx, s *models.Settlement) error { return tx.SwapSettlement(ctx, s, expected) },
		apply,
	)
}

// RetireExpense soft-deletes an expense through the same write phase.
func (p *Protocol) RetireExpense(ctx context.Context, id string, expected models.Version, actorID string) (*models.Expense, error) {
	return p.UpdateExpense(ctx, id, expected, func(e *models.Expense) error {
		e.MarkDeleted(actorID, p.now().UTC())
		return nil
	})
}

// RetireSettlement soft-deletes a settlement.
func (p *Protocol) RetireSettlement(ctx context.Context, id string, expected models.Version, actorID string) (*models.Settlement, error) {
	return p.UpdateSettlement(ctx, id, expected, func(s *models.Settlement) error {
		s.MarkDeleted(actorID, p.now().UTC())
		return nil
	})
}

func update[R models.Record](
	ctx context.Context,
	p *Protocol,
	kind, id string,
	expected models.Version,
	get func(context.Context, storage.Tx) (R, error),
	swap func(context.Context, storage.Tx, R) error,
	apply func(R) error,
) (R, error) {
	var out R
	err := WithRetry(ctx, p.policy, func(ctx context.Context) error {
		return p.store.WithTx(ctx, func(tx storage.Tx) error {
			current, err := get(ctx, tx)
			if err != nil {
				return translate(kind, id, err)
			}

			meta := current.Meta()
			switch {
			case meta.IsDeleted():
				return fmt.Errorf("%s %s: %w", kind, id, ErrAlreadyDeleted)
			case meta.Version != expected:
				return fmt.Errorf("%s %s at version %d, expected %d: %w", kind, id, meta.Version, expected, ErrConcurrentUpdate)
			}

			if err := apply(current); err != nil {
				return err
			}
			if err := swap(ctx, tx, current); err != nil {
				return translate(kind, id, err)
			}
			out = current
			return nil
		})
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

// translate maps storage sentinels onto protocol ones.
func translate(kind, id string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	case errors.Is(err, storage.ErrVersionMismatch):
		return fmt.Errorf("%s %s: %w", kind, id, ErrConcurrentUpdate)
	default:
		return err
	}
}

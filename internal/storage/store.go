// Package storage defines the transactional record store the ledger writes
// through, plus the group membership lookup it authorizes against.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when a record or group does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionMismatch is returned by a compare-and-swap write whose
	// expected version no longer matches the stored one.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrContention marks a transient failure (lock timeout, serialization
	// failure) that is safe to retry.
	ErrContention = errors.New("storage contention")

	// ErrReadAfterWrite is returned when a transaction reads after it has
	// already written.
	ErrReadAfterWrite = errors.New("read after write in transaction")
)

// Reader serves non-transactional reads.
type Reader interface {
	// GetExpense returns the expense with id, deleted or not.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// GetSettlement returns the settlement with id, deleted or not.
	GetSettlement(ctx context.Context, id string) (*models.Settlement, error)

	// ListGroupLedger returns every expense and settlement of a group,
	// including deleted ones, oldest first.
	ListGroupLedger(ctx context.Context, groupID string) ([]*models.Expense, []*models.Settlement, error)
}

// Tx is the view of the store inside WithTx. All reads must happen before
// the first write; Guard enforces this.
type Tx interface {
	GetExpense(ctx context.Context, id string) (*models.Expense, error)
	GetSettlement(ctx context.Context, id string) (*models.Settlement, error)

	// InsertExpense stores a new expense and sets its Version to 1.
	InsertExpense(ctx context.Context, e *models.Expense) error
	InsertSettlement(ctx context.Context, s *models.Settlement) error

	// SwapExpense overwrites the stored expense only if its version still
	// equals expected, and advances e.Version. Otherwise it returns
	// ErrVersionMismatch.
	SwapExpense(ctx context.Context, e *models.Expense, expected models.Version) error
	SwapSettlement(ctx context.Context, s *models.Settlement, expected models.Version) error
}

// Directory answers group membership questions. Membership itself is
// managed elsewhere.
type Directory interface {
	// IsMember reports whether userID is a current member of groupID.
	IsMember(ctx context.Context, groupID, userID string) (bool, error)

	// IsAdmin reports whether userID is a current admin of groupID.
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)

	// WasMember reports whether userID is or ever was a member of groupID.
	WasMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Groups seeds and maintains group rosters.
type Groups interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	AddMember(ctx context.Context, groupID string, m models.Member) error
	LeaveGroup(ctx context.Context, groupID, userID string, at time.Time) error
}

// Store is a complete backend.
type Store interface {
	Reader
	Directory
	Groups

	// WithTx runs fn in a transaction. The transaction commits if fn
	// returns nil and rolls back otherwise. Transient backend failures are
	// reported wrapping ErrContention.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

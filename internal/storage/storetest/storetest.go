// Package storetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// NewGroup creates a group where alice is admin and bob and carol are members.
func NewGroup(t *testing.T, store storage.Store) *models.Group {
	t.Helper()
	g := &models.Group{
		Name: "Roommates",
		Members: []models.Member{
			{UserID: "alice", Role: models.RoleAdmin},
			{UserID: "bob", Role: models.RoleMember},
			{UserID: "carol", Role: models.RoleMember},
		},
	}
	require.NoError(t, store.CreateGroup(context.Background(), g))
	return g
}

// Expense returns an unsaved 90 USD expense paid by alice with a
// percentage split.
func Expense(groupID string) *models.Expense {
	sixty, forty := dec("60"), dec("40")
	return &models.Expense{
		RecordMeta:   models.RecordMeta{GroupID: groupID, CreatedBy: "alice"},
		Amount:       dec("90"),
		Currency:     "USD",
		PayerID:      "alice",
		Participants: []string{"alice", "bob"},
		SplitType:    models.SplitPercentage,
		Splits: []models.Split{
			{UserID: "alice", Amount: dec("54"), Percentage: &sixty},
			{UserID: "bob", Amount: dec("36"), Percentage: &forty},
		},
		Description: "Groceries",
		OccurredOn:  time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
	}
}

// Settlement returns an unsaved 20 USD payment from bob to alice.
func Settlement(groupID string) *models.Settlement {
	return &models.Settlement{
		RecordMeta: models.RecordMeta{GroupID: groupID, CreatedBy: "bob"},
		PayerID:    "bob",
		PayeeID:    "alice",
		Amount:     dec("20"),
		Currency:   "USD",
		SettledOn:  time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Note:       "cash",
	}
}

// Run exercises store against the storage contract.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()
	group := NewGroup(t, store)

	insertExpense := func(t *testing.T) *models.Expense {
		t.Helper()
		e := Expense(group.ID)
		require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertExpense(ctx, e)
		}))
		return e
	}

	t.Run("directory answers membership questions", func(t *testing.T) {
		isMember, err := store.IsMember(ctx, group.ID, "bob")
		require.NoError(t, err)
		assert.True(t, isMember)

		isAdmin, err := store.IsAdmin(ctx, group.ID, "alice")
		require.NoError(t, err)
		assert.True(t, isAdmin)

		isAdmin, err = store.IsAdmin(ctx, group.ID, "bob")
		require.NoError(t, err)
		assert.False(t, isAdmin)

		was, err := store.WasMember(ctx, group.ID, "mallory")
		require.NoError(t, err)
		assert.False(t, was)
	})

	t.Run("former members are remembered", func(t *testing.T) {
		require.NoError(t, store.AddMember(ctx, group.ID, models.Member{UserID: "dave"}))
		require.NoError(t, store.LeaveGroup(ctx, group.ID, "dave", time.Now()))

		isMember, err := store.IsMember(ctx, group.ID, "dave")
		require.NoError(t, err)
		assert.False(t, isMember)

		was, err := store.WasMember(ctx, group.ID, "dave")
		require.NoError(t, err)
		assert.True(t, was)

		err = store.LeaveGroup(ctx, group.ID, "dave", time.Now())
		assert.ErrorIs(t, err, storage.ErrNotFound)

		g, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Len(t, g.Members, 4)
	})

	t.Run("unknown group is not found", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "no-such-group")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("insert assigns id and first version", func(t *testing.T) {
		e := insertExpense(t)
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, models.Version(1), e.Version)
		assert.False(t, e.CreatedAt.IsZero())
	})

	t.Run("expense round trips", func(t *testing.T) {
		e := insertExpense(t)

		got, err := store.GetExpense(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, group.ID, got.GroupID)
		assert.True(t, dec("90").Equal(got.Amount))
		assert.Equal(t, "USD", got.Currency)
		assert.Equal(t, "alice", got.PayerID)
		assert.Equal(t, []string{"alice", "bob"}, got.Participants)
		assert.Equal(t, models.SplitPercentage, got.SplitType)
		assert.Equal(t, "Groceries", got.Description)
		assert.True(t, got.OccurredOn.Equal(e.OccurredOn))
		assert.Equal(t, models.Version(1), got.Version)
		assert.False(t, got.IsDeleted())

		require.Len(t, got.Splits, 2)
		assert.Equal(t, "alice", got.Splits[0].UserID)
		assert.True(t, dec("54").Equal(got.Splits[0].Amount))
		require.NotNil(t, got.Splits[0].Percentage)
		assert.True(t, dec("60").Equal(*got.Splits[0].Percentage))
	})

	t.Run("missing records are not found", func(t *testing.T) {
		_, err := store.GetExpense(ctx, "nonexistent-id")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetSettlement(ctx, "nonexistent-id")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("swap with current version advances it", func(t *testing.T) {
		e := insertExpense(t)

		updated := e.Clone()
		updated.Description = "Groceries and wine"
		updated.Amount = dec("100")
		updated.SplitType = models.SplitEqual
		updated.Splits = []models.Split{{UserID: "alice", Amount: dec("50")}, {UserID: "bob", Amount: dec("50")}}
		require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.SwapExpense(ctx, updated, e.Version)
		}))
		assert.Equal(t, models.Version(2), updated.Version)

		got, err := store.GetExpense(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Version(2), got.Version)
		assert.Equal(t, "Groceries and wine", got.Description)
		require.Len(t, got.Splits, 2)
		assert.Nil(t, got.Splits[0].Percentage)
		assert.True(t, dec("50").Equal(got.Splits[1].Amount))
	})

	t.Run("swap with stale version is rejected", func(t *testing.T) {
		e := insertExpense(t)

		first := e.Clone()
		first.Description = "first"
		require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.SwapExpense(ctx, first, 1)
		}))

		second := e.Clone()
		second.Description = "second"
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.SwapExpense(ctx, second, 1)
		})
		assert.ErrorIs(t, err, storage.ErrVersionMismatch)

		got, err := store.GetExpense(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Description)
		assert.Equal(t, models.Version(2), got.Version)
	})

	t.Run("failed transaction leaves nothing behind", func(t *testing.T) {
		e := Expense(group.ID)
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			if err := tx.InsertExpense(ctx, e); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.GetExpense(ctx, e.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("reads after a write are refused", func(t *testing.T) {
		e := insertExpense(t)
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			current, err := tx.GetExpense(ctx, e.ID)
			if err != nil {
				return err
			}
			current.Description = "renamed"
			if err := tx.SwapExpense(ctx, current, current.Version); err != nil {
				return err
			}
			_, err = tx.GetExpense(ctx, e.ID)
			return err
		})
		assert.ErrorIs(t, err, storage.ErrReadAfterWrite)

		got, err := store.GetExpense(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Version(1), got.Version, "rolled back")
	})

	t.Run("settlement round trips and soft deletes", func(t *testing.T) {
		s := Settlement(group.ID)
		require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertSettlement(ctx, s)
		}))
		assert.Equal(t, models.Version(1), s.Version)

		got, err := store.GetSettlement(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.PayerID)
		assert.Equal(t, "alice", got.PayeeID)
		assert.True(t, dec("20").Equal(got.Amount))
		assert.Equal(t, "cash", got.Note)
		assert.True(t, got.SettledOn.Equal(s.SettledOn))

		retired := got.Clone()
		retired.MarkDeleted("alice", time.Now())
		require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.SwapSettlement(ctx, retired, got.Version)
		}))

		got, err = store.GetSettlement(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted())
		assert.Equal(t, "alice", got.DeletedBy)
		assert.Equal(t, models.Version(2), got.Version)

		err = store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.SwapSettlement(ctx, got.Clone(), 1)
		})
		assert.ErrorIs(t, err, storage.ErrVersionMismatch)
	})

	t.Run("group ledger includes deleted records", func(t *testing.T) {
		other := NewGroup(t, store)
		live := Expense(other.ID)
		gone := Expense(other.ID)
		gone.MarkDeleted("alice", time.Now())
		s := Settlement(other.ID)
		require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
			if err := tx.InsertExpense(ctx, live); err != nil {
				return err
			}
			if err := tx.InsertExpense(ctx, gone); err != nil {
				return err
			}
			return tx.InsertSettlement(ctx, s)
		}))

		expenses, settlements, err := store.ListGroupLedger(ctx, other.ID)
		require.NoError(t, err)
		require.Len(t, expenses, 2)
		require.Len(t, settlements, 1)

		deleted := 0
		for _, e := range expenses {
			require.Len(t, e.Splits, 2)
			if e.IsDeleted() {
				deleted++
			}
		}
		assert.Equal(t, 1, deleted)
	})

	t.Run("empty group ledger", func(t *testing.T) {
		empty := NewGroup(t, store)
		expenses, settlements, err := store.ListGroupLedger(ctx, empty.ID)
		require.NoError(t, err)
		assert.Empty(t, expenses)
		assert.Empty(t, settlements)
	})
}

package models

import "time"

// Version is the storage-assigned optimistic concurrency token of a record.
// It starts at 1 on insert and advances by one on every committed write.
type Version int64

// RecordMeta holds the identity, audit and concurrency fields shared by
// every ledger record.
type RecordMeta struct {
	// ID is the unique identifier of the record (UUID format).
	ID string

	// GroupID is the group that owns the record.
	GroupID string

	// CreatedBy is the user ID that recorded it.
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time

	// DeletedAt and DeletedBy are both set when the record is retired.
	DeletedAt *time.Time
	DeletedBy string

	// Version is owned by storage; callers only read and compare it.
	Version Version
}

// Meta returns the embedded metadata. It lets generic code treat expenses
// and settlements alike.
func (m *RecordMeta) Meta() *RecordMeta { return m }

// IsDeleted reports whether the record was soft-deleted.
func (m *RecordMeta) IsDeleted() bool { return m.DeletedAt != nil }

// MarkDeleted sets the soft-deletion marker.
func (m *RecordMeta) MarkDeleted(actorID string, at time.Time) {
	t := at
	m.DeletedAt = &t
	m.DeletedBy = actorID
	m.UpdatedAt = at
}

// Record is implemented by *Expense and *Settlement.
type Record interface {
	Meta() *RecordMeta
}

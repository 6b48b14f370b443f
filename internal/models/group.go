package models

import "time"

// Role is a member's role within a group.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Group is the owner of expenses and settlements. Membership is managed
// outside the ledger; the ledger only reads it.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	Members []Member

	CreatedAt time.Time
}

// Member is one user's membership in a group. LeftAt is set once the user
// leaves; former members can still appear on settlements.
type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
	LeftAt   *time.Time
}

// Active reports whether the member has not left the group.
func (m Member) Active() bool { return m.LeftAt == nil }

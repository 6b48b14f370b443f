package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateGroup persists a new group with its initial roster.
func (s *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := s.exec(ctx, tx, "INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)",
		g.ID, g.Name, toMillis(g.CreatedAt)); err != nil {
		return s.fail("insert group", err)
	}

	for i := range g.Members {
		m := &g.Members[i]
		if m.JoinedAt.IsZero() {
			m.JoinedAt = g.CreatedAt
		}
		if err := s.upsertMember(ctx, tx, g.ID, *m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return s.fail("commit transaction", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including former members.
func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	g := &models.Group{}
	var createdAt int64
	err := s.queryRow(ctx, s.db, "SELECT id, name, created_at FROM groups WHERE id = ?", id).
		Scan(&g.ID, &g.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get group", err)
	}
	g.CreatedAt = fromMillis(createdAt)

	rows, err := s.query(ctx, s.db,
		"SELECT user_id, role, joined_at, left_at FROM group_members WHERE group_id = ? ORDER BY joined_at, user_id", id)
	if err != nil {
		return nil, s.fail("get group members", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate group members", err)
	}
	return g, nil
}

// AddMember adds userID to a group, or re-activates a former member.
func (s *Store) AddMember(ctx context.Context, groupID string, m models.Member) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now().UTC()
	}
	return s.upsertMember(ctx, s.db, groupID, m)
}

func (s *Store) upsertMember(ctx context.Context, q querier, groupID string, m models.Member) error {
	role := m.Role
	if role == "" {
		role = models.RoleMember
	}
	_, err := s.exec(ctx, q,
		`INSERT INTO group_members (group_id, user_id, role, joined_at, left_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET role = excluded.role, left_at = excluded.left_at`,
		groupID, m.UserID, string(role), toMillis(m.JoinedAt), nullMillis(m.LeftAt),
	)
	if err != nil {
		return s.fail("upsert group member", err)
	}
	return nil
}

// LeaveGroup marks a current member as having left.
func (s *Store) LeaveGroup(ctx context.Context, groupID, userID string, at time.Time) error {
	res, err := s.exec(ctx, s.db,
		"UPDATE group_members SET left_at = ? WHERE group_id = ? AND user_id = ? AND left_at IS NULL",
		at.UnixMilli(), groupID, userID)
	if err != nil {
		return s.fail("leave group", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check leave group: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
	}
	return nil
}

func scanMember(sc scanner) (models.Member, error) {
	var (
		m        models.Member
		role     string
		joinedAt int64
		leftAt   sql.NullInt64
	)
	if err := sc.Scan(&m.UserID, &role, &joinedAt, &leftAt); err != nil {
		return m, err
	}
	m.Role = models.Role(role)
	m.JoinedAt = fromMillis(joinedAt)
	m.LeftAt = fromNullMillis(leftAt)
	return m, nil
}

// member returns the membership row, or nil if userID never joined.
func (s *Store) member(ctx context.Context, groupID, userID string) (*models.Member, error) {
	m, err := scanMember(s.queryRow(ctx, s.db,
		"SELECT user_id, role, joined_at, left_at FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("get group member", err)
	}
	return &m, nil
}

// IsMember reports whether userID currently belongs to the group.
func (s *Store) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := s.member(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Active(), nil
}

// IsAdmin reports whether userID is a current admin of the group.
func (s *Store) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := s.member(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Active() && m.Role == models.RoleAdmin, nil
}

// WasMember reports whether userID ever belonged to the group.
func (s *Store) WasMember(ctx context.Context, groupID, userID string) (bool, error) {
	m, err := s.member(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

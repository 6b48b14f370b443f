package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func cloneGroup(g *models.Group) *models.Group {
	c := *g
	c.Members = make([]models.Member, len(g.Members))
	for i, m := range g.Members {
		c.Members[i] = m
		if m.LeftAt != nil {
			t := *m.LeftAt
			c.Members[i].LeftAt = &t
		}
	}
	return &c
}

// CreateGroup stores a new group.
func (s *Store) CreateGroup(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if _, exists := s.groups[g.ID]; exists {
		return fmt.Errorf("failed to insert group: duplicate id %s", g.ID)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now().UTC()
	}
	for i := range g.Members {
		if g.Members[i].JoinedAt.IsZero() {
			g.Members[i].JoinedAt = g.CreatedAt
		}
		if g.Members[i].Role == "" {
			g.Members[i].Role = models.RoleMember
		}
	}
	s.groups[g.ID] = cloneGroup(g)
	return nil
}

// GetGroup returns a copy of the group.
func (s *Store) GetGroup(_ context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, storage.ErrNotFound)
	}
	return cloneGroup(g), nil
}

// AddMember adds or re-activates a member.
func (s *Store) AddMember(_ context.Context, groupID string, m models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now().UTC()
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	for i := range g.Members {
		if g.Members[i].UserID == m.UserID {
			g.Members[i].Role = m.Role
			g.Members[i].LeftAt = m.LeftAt
			return nil
		}
	}
	g.Members = append(g.Members, m)
	return nil
}

// LeaveGroup marks a current member as having left.
func (s *Store) LeaveGroup(_ context.Context, groupID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.member(groupID, userID); m != nil && m.Active() {
		left := at.UTC()
		m.LeftAt = &left
		return nil
	}
	return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
}

func (s *Store) member(groupID, userID string) *models.Member {
	g, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// IsMember reports whether userID currently belongs to the group.
func (s *Store) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.member(groupID, userID)
	return m != nil && m.Active(), nil
}

// IsAdmin reports whether userID is a current admin of the group.
func (s *Store) IsAdmin(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.member(groupID, userID)
	return m != nil && m.Active() && m.Role == models.RoleAdmin, nil
}

// WasMember reports whether userID ever belonged to the group.
func (s *Store) WasMember(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.member(groupID, userID) != nil, nil
}

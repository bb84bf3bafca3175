package substitution

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps groups in process. Groups live in a map keyed by id and
// cardIndex maps every member card to its group id, which is what enforces
// the one-group-per-card rule.
type MemoryStore struct {
	mu        sync.RWMutex
	groups    map[string]*Group
	cardIndex map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:    make(map[string]*Group),
		cardIndex: make(map[string]string),
	}
}

func (s *MemoryStore) CreateGroup(_ context.Context, g Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range g.Members {
		if _, taken := s.cardIndex[m.ScryfallID]; taken {
			return ErrDuplicateMember
		}
	}

	stored := g.clone()
	s.groups[g.ID] = &stored
	for _, m := range g.Members {
		s.cardIndex[m.ScryfallID] = g.ID
	}
	return nil
}

func (s *MemoryStore) GetGroup(_ context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	out := g.clone()
	return &out, nil
}

func (s *MemoryStore) MembershipsFor(_ context.Context, scryfallIDs []string) (map[string]GroupRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make(map[string]GroupRef)
	for _, id := range scryfallIDs {
		groupID, ok := s.cardIndex[id]
		if !ok {
			continue
		}
		refs[id] = GroupRef{ID: groupID, Name: s.groups[groupID].Name}
	}
	return refs, nil
}

func (s *MemoryStore) AddMember(_ context.Context, groupID string, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return groupNotFound(groupID)
	}
	if _, taken := s.cardIndex[m.ScryfallID]; taken {
		return ErrDuplicateMember
	}

	g.Members = append(g.Members, m)
	g.UpdatedAt = m.AddedAt
	s.cardIndex[m.ScryfallID] = groupID
	return nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, scryfallID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groupID, ok := s.cardIndex[scryfallID]
	if !ok {
		return false, nil
	}
	delete(s.cardIndex, scryfallID)

	g := s.groups[groupID]
	kept := g.Members[:0]
	for _, m := range g.Members {
		if m.ScryfallID != scryfallID {
			kept = append(kept, m)
		}
	}
	g.Members = kept
	g.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return false, nil
	}
	for _, m := range g.Members {
		delete(s.cardIndex, m.ScryfallID)
	}
	delete(s.groups, id)
	return true, nil
}

func (s *MemoryStore) UpdateGroup(_ context.Context, id string, upd GroupUpdate, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return false, nil
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Description != nil {
		d := *upd.Description
		g.Description = &d
	}
	g.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) ListGroups(_ context.Context) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g.clone())
	}
	sortGroups(groups)
	return groups, nil
}

var _ Store = (*MemoryStore)(nil)

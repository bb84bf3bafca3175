package substitution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the entry point for group administration. It validates
// membership before every write so conflicts come back as *GroupError
// values naming the group that already holds a card.
type Registry struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	// mu serializes validate-then-write within this process. The storage
	// layer's uniqueness check catches writers in other processes.
	mu sync.Mutex
}

// NewRegistry creates a registry over store.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  store,
		logger: logger.With(zap.String("component", "substitution")),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// CreateGroup creates a group with its initial members. If any member already
// belongs to another group nothing is written and the error lists every
// conflicting card.
func (r *Registry) CreateGroup(ctx context.Context, name string, members []Member, description *string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}

	members = dedupeMembers(members)
	for _, m := range members {
		if m.ScryfallID == "" {
			return nil, fmt.Errorf("%w: member without scryfall id", ErrInvalidGroup)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkConflicts(ctx, members); err != nil {
		return nil, err
	}

	now := r.now()
	g := Group{
		ID:          r.newID(),
		Name:        name,
		Description: description,
		Members:     make([]Member, 0, len(members)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, m := range members {
		m.AddedAt = now
		g.Members = append(g.Members, m)
	}

	if err := r.store.CreateGroup(ctx, g); err != nil {
		if errors.Is(err, ErrDuplicateMember) {
			// Lost a race with another writer; report it like any conflict.
			if cerr := r.checkConflicts(ctx, members); cerr != nil {
				return nil, cerr
			}
		}
		return nil, fmt.Errorf("create group %q: %w", name, err)
	}

	r.logger.Info("substitution group created",
		zap.String("group_id", g.ID),
		zap.String("name", g.Name),
		zap.Int("members", len(g.Members)),
	)
	return &g, nil
}

func (r *Registry) checkConflicts(ctx context.Context, members []Member) error {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ScryfallID)
	}

	refs, err := r.store.MembershipsFor(ctx, ids)
	if err != nil {
		return fmt.Errorf("check memberships: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	conflictErr := &GroupError{Kind: KindMemberConflict}
	for _, m := range members {
		ref, ok := refs[m.ScryfallID]
		if !ok {
			continue
		}
		conflictErr.Conflicts = append(conflictErr.Conflicts, Conflict{
			ScryfallID: m.ScryfallID,
			CardName:   m.CardName,
			GroupID:    ref.ID,
			GroupName:  ref.Name,
		})
	}
	return conflictErr
}

// AddCardToGroup adds a card to an existing group. The card must not belong
// to any group yet; "already in this group" and "already in group <name>"
// are reported as different kinds.
func (r *Registry) AddCardToGroup(ctx context.Context, groupID, scryfallID, cardName string) (*Group, error) {
	scryfallID = strings.TrimSpace(scryfallID)
	if scryfallID == "" {
		return nil, fmt.Errorf("%w: scryfall id is required", ErrInvalidGroup)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", groupID, err)
	}
	if g == nil {
		return nil, groupNotFound(groupID)
	}

	if err := r.checkMembership(ctx, g, scryfallID); err != nil {
		return nil, err
	}

	m := Member{ScryfallID: scryfallID, CardName: cardName, AddedAt: r.now()}
	if err := r.store.AddMember(ctx, groupID, m); err != nil {
		if errors.Is(err, ErrDuplicateMember) {
			if merr := r.checkMembership(ctx, g, scryfallID); merr != nil {
				return nil, merr
			}
		}
		if errors.Is(err, ErrGroupNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("add %s to group %s: %w", scryfallID, groupID, err)
	}

	r.logger.Debug("card added to substitution group",
		zap.String("group_id", groupID),
		zap.String("scryfall_id", scryfallID),
	)
	return r.getGroup(ctx, groupID)
}

func (r *Registry) checkMembership(ctx context.Context, g *Group, scryfallID string) error {
	refs, err := r.store.MembershipsFor(ctx, []string{scryfallID})
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	ref, ok := refs[scryfallID]
	if !ok {
		return nil
	}
	if ref.ID == g.ID {
		return &GroupError{Kind: KindCardInThisGroup, GroupID: g.ID, GroupName: g.Name, CardID: scryfallID}
	}
	return &GroupError{Kind: KindCardInOtherGroup, GroupID: ref.ID, GroupName: ref.Name, CardID: scryfallID}
}

// RemoveCardFromGroup drops the card's membership, reporting whether it had one.
func (r *Registry) RemoveCardFromGroup(ctx context.Context, scryfallID string) (bool, error) {
	scryfallID = strings.TrimSpace(scryfallID)
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.store.RemoveMember(ctx, scryfallID, r.now())
	if err != nil {
		return false, fmt.Errorf("remove %s from group: %w", scryfallID, err)
	}
	return removed, nil
}

// DeleteGroup deletes the group and all of its memberships.
func (r *Registry) DeleteGroup(ctx context.Context, groupID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted, err := r.store.DeleteGroup(ctx, groupID)
	if err != nil {
		return false, fmt.Errorf("delete group %s: %w", groupID, err)
	}
	if deleted {
		r.logger.Info("substitution group deleted", zap.String("group_id", groupID))
	}
	return deleted, nil
}

// UpdateGroup changes the name and/or description. It returns nil when the
// group does not exist; an empty update returns the group unchanged.
func (r *Registry) UpdateGroup(ctx context.Context, groupID string, upd GroupUpdate) (*Group, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidGroup)
		}
		upd.Name = &name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if upd.Empty() {
		return r.getGroup(ctx, groupID)
	}

	ok, err := r.store.UpdateGroup(ctx, groupID, upd, r.now())
	if err != nil {
		return nil, fmt.Errorf("update group %s: %w", groupID, err)
	}
	if !ok {
		return nil, nil
	}
	return r.getGroup(ctx, groupID)
}

// GetGroupForCard returns the group holding the card, or nil.
func (r *Registry) GetGroupForCard(ctx context.Context, scryfallID string) (*Group, error) {
	scryfallID = strings.TrimSpace(scryfallID)
	refs, err := r.store.MembershipsFor(ctx, []string{scryfallID})
	if err != nil {
		return nil, fmt.Errorf("lookup group for %s: %w", scryfallID, err)
	}
	ref, ok := refs[scryfallID]
	if !ok {
		return nil, nil
	}
	return r.getGroup(ctx, ref.ID)
}

// ListGroups returns every group with its members, sorted by name.
func (r *Registry) ListGroups(ctx context.Context) ([]Group, error) {
	groups, err := r.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	sortGroups(groups)
	return groups, nil
}

// Snapshot loads every group into an Index for scoring.
func (r *Registry) Snapshot(ctx context.Context) (*Index, error) {
	groups, err := r.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	return NewIndex(groups), nil
}

func (r *Registry) getGroup(ctx context.Context, groupID string) (*Group, error) {
	g, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", groupID, err)
	}
	return g, nil
}

func dedupeMembers(members []Member) []Member {
	seen := make(map[string]bool, len(members))
	out := make([]Member, 0, len(members))
	for _, m := range members {
		m.ScryfallID = strings.TrimSpace(m.ScryfallID)
		if seen[m.ScryfallID] {
			continue
		}
		seen[m.ScryfallID] = true
		out = append(out, m)
	}
	return out
}

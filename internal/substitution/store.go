package substitution

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateMember is returned by a Store when a write would put a card in
// a second group. The registry checks membership before writing, so this only
// surfaces when another writer raced it.
var ErrDuplicateMember = errors.New("card already has a group membership")

// Store persists groups and their memberships. Lookups that find nothing
// return nil/false rather than an error.
type Store interface {
	CreateGroup(ctx context.Context, g Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	// MembershipsFor maps each given card that has a membership to its group.
	MembershipsFor(ctx context.Context, scryfallIDs []string) (map[string]GroupRef, error)
	AddMember(ctx context.Context, groupID string, m Member) error
	RemoveMember(ctx context.Context, scryfallID string, now time.Time) (bool, error)
	DeleteGroup(ctx context.Context, id string) (bool, error)
	UpdateGroup(ctx context.Context, id string, upd GroupUpdate, now time.Time) (bool, error)
	ListGroups(ctx context.Context) ([]Group, error)
}

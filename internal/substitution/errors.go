package substitution

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. The concrete error is always a *GroupError.
var (
	ErrGroupNotFound    = errors.New("group not found")
	ErrCardInThisGroup  = errors.New("card already in this group")
	ErrCardInOtherGroup = errors.New("card already in another group")
	ErrMemberConflict   = errors.New("cards already in other groups")
	ErrInvalidGroup     = errors.New("invalid group")
)

// Kind classifies a registry failure.
type Kind int

const (
	KindGroupNotFound Kind = iota + 1
	KindCardInThisGroup
	KindCardInOtherGroup
	KindMemberConflict
)

func (k Kind) String() string {
	switch k {
	case KindGroupNotFound:
		return "group_not_found"
	case KindCardInThisGroup:
		return "card_in_this_group"
	case KindCardInOtherGroup:
		return "card_in_other_group"
	case KindMemberConflict:
		return "member_conflict"
	default:
		return "unknown"
	}
}

// Conflict names a card and the group that already holds it.
type Conflict struct {
	ScryfallID string
	CardName   string
	GroupID    string
	GroupName  string
}

// GroupError is returned for not-found and membership conflicts. Callers can
// switch on Kind or use errors.Is with the sentinels; Error() keeps the
// user-facing wording existing callers match on.
type GroupError struct {
	Kind      Kind
	GroupID   string
	GroupName string
	CardID    string
	Conflicts []Conflict
}

func (e *GroupError) Error() string {
	switch e.Kind {
	case KindGroupNotFound:
		return "Group not found"
	case KindCardInThisGroup:
		return "Card is already in this group"
	case KindCardInOtherGroup:
		return fmt.Sprintf("Card is already in group %q", e.GroupName)
	case KindMemberConflict:
		parts := make([]string, 0, len(e.Conflicts))
		for _, c := range e.Conflicts {
			label := c.CardName
			if label == "" {
				label = c.ScryfallID
			}
			parts = append(parts, fmt.Sprintf("%s (in %q)", label, c.GroupName))
		}
		return "Cards already in other groups: " + strings.Join(parts, ", ")
	default:
		return "substitution group error"
	}
}

// Is matches the package sentinels by kind.
func (e *GroupError) Is(target error) bool {
	switch target {
	case ErrGroupNotFound:
		return e.Kind == KindGroupNotFound
	case ErrCardInThisGroup:
		return e.Kind == KindCardInThisGroup
	case ErrCardInOtherGroup:
		return e.Kind == KindCardInOtherGroup
	case ErrMemberConflict:
		return e.Kind == KindMemberConflict
	}
	return false
}

// KindOf returns the kind of a registry error, or 0 when err is not one.
func KindOf(err error) Kind {
	var ge *GroupError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

func groupNotFound(groupID string) error {
	return &GroupError{Kind: KindGroupNotFound, GroupID: groupID}
}

// Package substitution tracks groups of interchangeable cards. A card that
// belongs to a group can be covered by the stock of any other member, which
// lowers the urgency of restocking it.
package substitution

import (
	"sort"
	"time"
)

// Member is one card inside a substitution group.
type Member struct {
	ScryfallID string    `json:"scryfall_id"`
	CardName   string    `json:"card_name,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// Group is a named set of interchangeable cards.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Members     []Member  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupRef identifies the group a card currently belongs to.
type GroupRef struct {
	ID   string
	Name string
}

// GroupUpdate carries the optional fields of an update. Nil fields are left
// untouched.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// Empty reports whether the update changes nothing.
func (u GroupUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil
}

// HasMember reports whether the card is a member of the group.
func (g *Group) HasMember(scryfallID string) bool {
	for _, m := range g.Members {
		if m.ScryfallID == scryfallID {
			return true
		}
	}
	return false
}

func (g Group) clone() Group {
	out := g
	if g.Description != nil {
		d := *g.Description
		out.Description = &d
	}
	out.Members = append([]Member(nil), g.Members...)
	return out
}

func sortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].ID < groups[j].ID
	})
}

package substitution

// Index is a read-only snapshot of every group keyed by member card.
type Index struct {
	byCard map[string]*Group
	groups []Group
}

// NewIndex builds an index from a list of groups. If a card shows up in more
// than one group the first one wins.
func NewIndex(groups []Group) *Index {
	idx := &Index{
		byCard: make(map[string]*Group),
		groups: make([]Group, len(groups)),
	}
	for i := range groups {
		idx.groups[i] = groups[i].clone()
		g := &idx.groups[i]
		for _, m := range g.Members {
			if _, dup := idx.byCard[m.ScryfallID]; !dup {
				idx.byCard[m.ScryfallID] = g
			}
		}
	}
	return idx
}

// GroupFor returns the card's group.
func (i *Index) GroupFor(scryfallID string) (*Group, bool) {
	if i == nil {
		return nil, false
	}
	g, ok := i.byCard[scryfallID]
	return g, ok
}

// Substitutes returns the other members of the card's group.
func (i *Index) Substitutes(scryfallID string) []string {
	g, ok := i.GroupFor(scryfallID)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.Members)-1)
	for _, m := range g.Members {
		if m.ScryfallID != scryfallID {
			out = append(out, m.ScryfallID)
		}
	}
	return out
}

// Len returns the number of groups.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.groups)
}

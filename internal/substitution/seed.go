package substitution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// SeedGroup is one entry of a groups file.
type SeedGroup struct {
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Members     []Member `json:"members"`
}

// SeedResult counts what a seed pass changed.
type SeedResult struct {
	Created  int
	Extended int
	Skipped  int
}

// ParseGroupsFile decodes a JSON array of groups.
func ParseGroupsFile(data []byte) ([]SeedGroup, error) {
	var groups []SeedGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	return groups, nil
}

// LoadGroupsFile reads path and seeds its groups into r.
func LoadGroupsFile(ctx context.Context, r *Registry, path string) (SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("read groups file: %w", err)
	}
	groups, err := ParseGroupsFile(data)
	if err != nil {
		return SeedResult{}, err
	}
	return r.Seed(ctx, groups)
}

// Seed creates groups that don't exist yet, matched by name, and adds missing
// members to those that do. Cards that already belong to another group are
// logged and skipped so one bad entry doesn't block the rest.
func (r *Registry) Seed(ctx context.Context, groups []SeedGroup) (SeedResult, error) {
	var res SeedResult

	existing, err := r.ListGroups(ctx)
	if err != nil {
		return res, err
	}
	byName := make(map[string]Group, len(existing))
	for _, g := range existing {
		byName[g.Name] = g
	}

	for _, sg := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		g, ok := byName[sg.Name]
		if !ok {
			created, err := r.CreateGroup(ctx, sg.Name, sg.Members, sg.Description)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				r.logger.Warn("skipping seed group",
					zap.String("name", sg.Name),
					zap.Error(err),
				)
				res.Skipped++
				continue
			}
			byName[created.Name] = *created
			res.Created++
			continue
		}

		added := 0
		for _, m := range sg.Members {
			if g.HasMember(m.ScryfallID) {
				continue
			}
			if _, err := r.AddCardToGroup(ctx, g.ID, m.ScryfallID, m.CardName); err != nil {
				if errors.Is(err, ErrCardInThisGroup) {
					continue
				}
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				r.logger.Warn("skipping seed member",
					zap.String("group", g.Name),
					zap.String("scryfall_id", m.ScryfallID),
					zap.Error(err),
				)
				continue
			}
			added++
		}
		if added > 0 {
			res.Extended++
		}
	}

	r.logger.Info("substitution groups seeded",
		zap.Int("created", res.Created),
		zap.Int("extended", res.Extended),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

package substitution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/guarzo/mtgautobuy/internal/storage/postgres"
)

// PostgresStore implements Store on the substitution_groups and
// substitution_group_cards tables.
type PostgresStore struct {
	db postgres.DB
}

// NewPostgresStore creates a store over db (normally a *pgxpool.Pool).
func NewPostgresStore(db postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateGroup(ctx context.Context, g Group) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create group: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertGroup = `
		INSERT INTO substitution_groups (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insertGroup, g.ID, g.Name, g.Description, g.CreatedAt, g.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: insert substitution_group %s: %w", g.ID, err)
	}

	for _, m := range g.Members {
		if err := insertMember(ctx, tx, g.ID, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create group %s: %w", g.ID, err)
	}
	return nil
}

func insertMember(ctx context.Context, tx pgx.Tx, groupID string, m Member) error {
	const query = `
		INSERT INTO substitution_group_cards (id, group_id, scryfall_id, card_name, added_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`
	_, err := tx.Exec(ctx, query, uuid.NewString(), groupID, m.ScryfallID, m.CardName, m.AddedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicateMember
	}
	if err != nil {
		return fmt.Errorf("postgres: insert member %s into %s: %w", m.ScryfallID, groupID, err)
	}
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	const query = `
		SELECT id::text, name, description, created_at, updated_at
		FROM substitution_groups WHERE id::text = $1`
	var g Group
	err := s.db.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get substitution_group %s: %w", id, err)
	}

	members, err := s.members(ctx, "WHERE group_id::text = $1", id)
	if err != nil {
		return nil, err
	}
	g.Members = members[g.ID]
	if g.Members == nil {
		g.Members = []Member{}
	}
	return &g, nil
}

// members loads memberships keyed by group id.
func (s *PostgresStore) members(ctx context.Context, where string, args ...any) (map[string][]Member, error) {
	query := `
		SELECT group_id::text, scryfall_id, COALESCE(card_name, ''), added_at
		FROM substitution_group_cards ` + where + `
		ORDER BY added_at, scryfall_id`
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list substitution_group_cards: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Member)
	for rows.Next() {
		var groupID string
		var m Member
		if err := rows.Scan(&groupID, &m.ScryfallID, &m.CardName, &m.AddedAt); err != nil {
			return nil, err
		}
		out[groupID] = append(out[groupID], m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MembershipsFor(ctx context.Context, scryfallIDs []string) (map[string]GroupRef, error) {
	refs := make(map[string]GroupRef)
	if len(scryfallIDs) == 0 {
		return refs, nil
	}

	const query = `
		SELECT c.scryfall_id, g.id::text, g.name
		FROM substitution_group_cards c
		JOIN substitution_groups g ON g.id = c.group_id
		WHERE c.scryfall_id = ANY($1)`
	rows, err := s.db.Query(ctx, query, scryfallIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cardID string
		var ref GroupRef
		if err := rows.Scan(&cardID, &ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs[cardID] = ref
	}
	return refs, rows.Err()
}

func (s *PostgresStore) AddMember(ctx context.Context, groupID string, m Member) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin add member: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE substitution_groups SET updated_at = $2 WHERE id::text = $1`, groupID, m.AddedAt)
	if err != nil {
		return fmt.Errorf("postgres: touch substitution_group %s: %w", groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return groupNotFound(groupID)
	}

	if err := insertMember(ctx, tx, groupID, m); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit add member %s: %w", m.ScryfallID, err)
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, scryfallID string, now time.Time) (bool, error) {
	const query = `
		WITH removed AS (
			DELETE FROM substitution_group_cards WHERE scryfall_id = $1 RETURNING group_id
		)
		UPDATE substitution_groups SET updated_at = $2
		WHERE id IN (SELECT group_id FROM removed)`
	tag, err := s.db.Exec(ctx, query, scryfallID, now)
	if err != nil {
		return false, fmt.Errorf("postgres: remove member %s: %w", scryfallID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteGroup(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin delete group: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM substitution_group_cards WHERE group_id::text = $1`, id); err != nil {
		return false, fmt.Errorf("postgres: delete members of %s: %w", id, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM substitution_groups WHERE id::text = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: delete substitution_group %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit delete group %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdateGroup(ctx context.Context, id string, upd GroupUpdate, now time.Time) (bool, error) {
	const query = `
		UPDATE substitution_groups
		SET name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = $4
		WHERE id::text = $1`
	tag, err := s.db.Exec(ctx, query, id, upd.Name, upd.Description, now)
	if err != nil {
		return false, fmt.Errorf("postgres: update substitution_group %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]Group, error) {
	const query = `
		SELECT id::text, name, description, created_at, updated_at
		FROM substitution_groups ORDER BY name, id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list substitution_groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := s.members(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Members = members[groups[i].ID]
		if groups[i].Members == nil {
			groups[i].Members = []Member{}
		}
	}
	return groups, nil
}

var _ Store = (*PostgresStore)(nil)

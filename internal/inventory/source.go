// Package inventory loads on-hand stock levels and reorder thresholds.
package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/guarzo/mtgautobuy/internal/model"
	"github.com/guarzo/mtgautobuy/internal/storage/postgres"
)

// Source returns the current stock level of every tracked card.
type Source interface {
	StockLevels(ctx context.Context) ([]model.StockLevel, error)
}

// DefaultView is the host application's stock view.
const DefaultView = "autobuy_stock_levels"

// PostgresSource reads stock levels from a view with the columns
// scryfall_id, card_name, set_code, quantity, reorder_threshold.
type PostgresSource struct {
	db   postgres.DB
	view string
}

// NewPostgresSource creates a source over db. An empty view uses DefaultView.
func NewPostgresSource(db postgres.DB, view string) (*PostgresSource, error) {
	if view == "" {
		view = DefaultView
	}
	if !validIdentifier(view) {
		return nil, fmt.Errorf("inventory: invalid view name %q", view)
	}
	return &PostgresSource{db: db, view: view}, nil
}

func (s *PostgresSource) StockLevels(ctx context.Context) ([]model.StockLevel, error) {
	query := `
		SELECT scryfall_id, COALESCE(card_name, ''), COALESCE(set_code, ''),
		       COALESCE(quantity, 0), COALESCE(reorder_threshold, 0)
		FROM ` + s.view + `
		ORDER BY card_name, scryfall_id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("inventory: query %s: %w", s.view, err)
	}
	defer rows.Close()

	var levels []model.StockLevel
	for rows.Next() {
		var l model.StockLevel
		if err := rows.Scan(&l.Card.ScryfallID, &l.Card.Name, &l.Card.SetCode, &l.OnHand, &l.ReorderThreshold); err != nil {
			return nil, fmt.Errorf("inventory: scan %s: %w", s.view, err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: read %s: %w", s.view, err)
	}
	return levels, nil
}

// validIdentifier allows schema-qualified lowercase SQL identifiers.
func validIdentifier(s string) bool {
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_' || (r >= 'a' && r <= 'z'):
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}

// CSVSource reads stock levels from a CSV file with a header row naming the
// same columns as the Postgres view. card_name and set_code are optional.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading path on every call.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) StockLevels(_ context.Context) ([]model.StockLevel, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("inventory: open %s: %w", s.path, err)
	}
	defer f.Close()

	levels, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("inventory: %s: %w", s.path, err)
	}
	return levels, nil
}

// ParseCSV decodes stock levels from r.
func ParseCSV(r io.Reader) ([]model.StockLevel, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"scryfall_id", "quantity", "reorder_threshold"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var levels []model.StockLevel
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id := field(record, "scryfall_id")
		if id == "" {
			continue
		}
		qty, err := atoiDefault(field(record, "quantity"))
		if err != nil {
			return nil, fmt.Errorf("line %d: quantity: %w", line, err)
		}
		threshold, err := atoiDefault(field(record, "reorder_threshold"))
		if err != nil {
			return nil, fmt.Errorf("line %d: reorder_threshold: %w", line, err)
		}

		levels = append(levels, model.StockLevel{
			Card: model.Card{
				ScryfallID: id,
				Name:       field(record, "card_name"),
				SetCode:    field(record, "set_code"),
			},
			OnHand:           qty,
			ReorderThreshold: threshold,
		})
	}
	return levels, nil
}

func atoiDefault(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

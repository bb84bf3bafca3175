package inventory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	data := "\ufeffscryfall_id,card_name,set_code,quantity,reorder_threshold\n" +
		"sol-ring,Sol Ring,c21,1,4\n" +
		"mind-stone, Mind Stone ,cmm,,2\n" +
		",Blank Row,,3,3\n"

	levels, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %+v", levels)
	}
	if levels[0].Card.ScryfallID != "sol-ring" || levels[0].OnHand != 1 || levels[0].ReorderThreshold != 4 || levels[0].Card.SetCode != "c21" {
		t.Errorf("unexpected first row %+v", levels[0])
	}
	if levels[1].Card.Name != "Mind Stone" || levels[1].OnHand != 0 {
		t.Errorf("unexpected second row %+v", levels[1])
	}
}

func TestParseCSV_OptionalColumnsAndOrder(t *testing.T) {
	data := "reorder_threshold,quantity,scryfall_id\n5,2,abc\n"
	levels, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(levels) != 1 || levels[0].Card.ScryfallID != "abc" || levels[0].OnHand != 2 || levels[0].ReorderThreshold != 5 {
		t.Errorf("unexpected levels %+v", levels)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing column", "scryfall_id,quantity\na,1\n", "reorder_threshold"},
		{"bad quantity", "scryfall_id,quantity,reorder_threshold\na,many,1\n", "line 2: quantity"},
		{"bad threshold", "scryfall_id,quantity,reorder_threshold\na,1,x\n", "reorder_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	levels, err := ParseCSV(strings.NewReader(""))
	if err != nil || len(levels) != 0 {
		t.Errorf("empty input = %v, %v", levels, err)
	}
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.csv")
	if err := os.WriteFile(path, []byte("scryfall_id,quantity,reorder_threshold\na,0,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	levels, err := NewCSVSource(path).StockLevels(context.Background())
	if err != nil {
		t.Fatalf("StockLevels failed: %v", err)
	}
	if len(levels) != 1 {
		t.Errorf("expected 1 level, got %d", len(levels))
	}

	if _, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).StockLevels(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewPostgresSource_ValidatesView(t *testing.T) {
	tests := []struct {
		view string
		ok   bool
	}{
		{"", true},
		{"autobuy_stock_levels", true},
		{"inventory.stock_v2", true},
		{"stock; drop table cards", false},
		{"Stock", false},
		{"1stock", false},
		{"inventory.", false},
	}
	for _, tt := range tests {
		src, err := NewPostgresSource(nil, tt.view)
		if (err == nil) != tt.ok {
			t.Errorf("NewPostgresSource(%q) err = %v, want ok=%v", tt.view, err, tt.ok)
		}
		if tt.view == "" && src.view != DefaultView {
			t.Errorf("empty view should default, got %q", src.view)
		}
	}
}

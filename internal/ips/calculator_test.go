package ips

import (
	"math"
	"testing"
	"time"

	"github.com/guarzo/mtgautobuy/internal/aggregate"
	"github.com/guarzo/mtgautobuy/internal/model"
	"github.com/guarzo/mtgautobuy/internal/seasonality"
	"github.com/guarzo/mtgautobuy/internal/substitution"
)

const eps = 1e-9

func stock(id, name string, onHand, threshold int) model.StockLevel {
	return model.StockLevel{
		Card:             model.Card{ScryfallID: id, Name: name},
		OnHand:           onHand,
		ReorderThreshold: threshold,
	}
}

func TestStockFactor(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	tests := []struct {
		name      string
		onHand    int
		threshold int
		want      float64
	}{
		{"empty shelf", 0, 4, 2.0},
		{"half stocked", 2, 4, 1.5},
		{"at threshold", 4, 4, 1.0},
		{"double threshold", 8, 4, 0.1 + 0.9*0.25},
		{"negative on hand treated as zero", -3, 4, 2.0},
		{"no threshold", 0, 0, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.StockFactor(tt.onHand, tt.threshold); math.Abs(got-tt.want) > eps {
				t.Errorf("StockFactor(%d, %d) = %v, want %v", tt.onHand, tt.threshold, got, tt.want)
			}
		})
	}

	// Monotonic: less stock is never less urgent
	prev := math.Inf(1)
	for q := 0; q <= 40; q++ {
		f := c.StockFactor(q, 10)
		if f > prev+eps {
			t.Fatalf("StockFactor increased from %v to %v at q=%d", prev, f, q)
		}
		prev = f
	}
	if prev < 0.1 {
		t.Errorf("factor should stay above baseline, got %v", prev)
	}
}

func TestMarketSignal(t *testing.T) {
	c := NewCalculator(DefaultWeights())

	tests := []struct {
		name    string
		summary aggregate.Summary
		prevMin float64
		want    float64
	}{
		{"unavailable is neutral", aggregate.Summary{}, 0, 1.0},
		{"unavailable ignores price history", aggregate.Summary{MinPrice: 5}, 1, 1.0},
		{"availability at scale is neutral", aggregate.Summary{Available: true, TotalQuantity: 10, MinPrice: 1}, 0, 1.0},
		{"single copy is scarce", aggregate.Summary{Available: true, TotalQuantity: 1, MinPrice: 1}, 0, 1 + 0.5*(10.0/11-0.5)},
		{"plentiful lowers signal", aggregate.Summary{Available: true, TotalQuantity: 90, MinPrice: 1}, 0, 1 + 0.5*(0.1-0.5)},
		{"rising price", aggregate.Summary{Available: true, TotalQuantity: 10, MinPrice: 1.2}, 1.0, 1 + 0.5*0.2},
		{"falling price", aggregate.Summary{Available: true, TotalQuantity: 10, MinPrice: 0.8}, 1.0, 1 - 0.5*0.2},
		{"price spike clamped", aggregate.Summary{Available: true, TotalQuantity: 1, MinPrice: 10}, 1.0, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.MarketSignal(tt.summary, tt.prevMin); math.Abs(got-tt.want) > eps {
				t.Errorf("MarketSignal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_SubstituteBelowThresholdGivesNoDiscount(t *testing.T) {
	groups := substitution.NewIndex([]substitution.Group{{
		ID:   "g1",
		Name: "Rocks",
		Members: []substitution.Member{
			{ScryfallID: "sol-ring"},
			{ScryfallID: "mind-stone"},
		},
	}})
	quiet := seasonality.NewAdjuster(nil, seasonality.Strongest)

	c := NewCalculator(DefaultWeights())
	results := c.Score(Input{
		Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Stock: []model.StockLevel{
			stock("sol-ring", "Sol Ring", 1, 4),
			stock("mind-stone", "Mind Stone", 0, 2),
		},
		Groups:  groups,
		Seasons: quiet,
		Market:  map[string]aggregate.Summary{"sol-ring": {CardID: "sol-ring"}},
	})

	var sol Result
	for _, r := range results {
		if r.CardID == "sol-ring" {
			sol = r
		}
	}
	if sol.Components.SubstitutionFactor != 1.0 {
		t.Errorf("substitutionFactor = %v, want 1.0", sol.Components.SubstitutionFactor)
	}
	if sol.Components.MarketSignal != 1.0 {
		t.Errorf("marketSignal = %v, want neutral 1.0", sol.Components.MarketSignal)
	}
	if sol.Components.SeasonalMultiplier != 1.0 {
		t.Errorf("seasonalMultiplier = %v, want 1.0", sol.Components.SeasonalMultiplier)
	}
	if math.Abs(sol.Score-sol.Components.StockFactor) > eps || math.Abs(sol.Score-1.75) > eps {
		t.Errorf("score = %v, want stock urgency only (1.75)", sol.Score)
	}
}

func TestScore_HealthySubstituteDiscounts(t *testing.T) {
	groups := substitution.NewIndex([]substitution.Group{{
		ID:      "g1",
		Members: []substitution.Member{{ScryfallID: "sol-ring"}, {ScryfallID: "mind-stone"}},
	}})

	c := NewCalculator(DefaultWeights())
	results := c.Score(Input{
		Stock: []model.StockLevel{
			stock("sol-ring", "Sol Ring", 0, 4),
			stock("mind-stone", "Mind Stone", 10, 2),
		},
		Groups: groups,
	})

	for _, r := range results {
		switch r.CardID {
		case "sol-ring":
			if r.Components.SubstitutionFactor != 0.5 {
				t.Errorf("sol-ring should be discounted, got %v", r.Components.SubstitutionFactor)
			}
		case "mind-stone":
			if r.Components.SubstitutionFactor != 1.0 {
				t.Errorf("mind-stone's substitute is empty, got %v", r.Components.SubstitutionFactor)
			}
		}
	}
}

func TestScore_SeasonalMultiplierApplied(t *testing.T) {
	date := time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC)
	seasons := seasonality.NewAdjuster([]seasonality.Event{
		{Name: "Holidays", Type: seasonality.Holiday, Date: time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)},
	}, seasonality.Strongest)

	results := NewCalculator(DefaultWeights()).Score(Input{
		Date:    date,
		Stock:   []model.StockLevel{stock("a", "A", 0, 4)},
		Seasons: seasons,
	})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if math.Abs(results[0].Score-2.4) > eps {
		t.Errorf("score = %v, want 2.0 * 1.2", results[0].Score)
	}
}

func TestScore_OrderingAndTieBreaks(t *testing.T) {
	results := NewCalculator(DefaultWeights()).Score(Input{
		Stock: []model.StockLevel{
			stock("z-id", "Zebra", 0, 4),
			stock("b-id", "Alpha", 0, 4),
			stock("a-id", "Alpha", 0, 4),
			stock("full", "Full", 20, 4),
			stock("mid", "Mid", 2, 4),
		},
	})

	want := []string{"a-id", "b-id", "z-id", "mid", "full"}
	for i, id := range want {
		if results[i].CardID != id {
			t.Fatalf("position %d = %s, want %s (results %+v)", i, results[i].CardID, id, results)
		}
	}
}

func TestScore_EmptyInput(t *testing.T) {
	if got := NewCalculator(DefaultWeights()).Score(Input{}); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}

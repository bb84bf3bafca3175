package model

import "testing"

func TestStockLevel_Healthy(t *testing.T) {
	tests := []struct {
		name     string
		level    StockLevel
		expected bool
	}{
		{"below threshold", StockLevel{OnHand: 1, ReorderThreshold: 4}, false},
		{"at threshold", StockLevel{OnHand: 4, ReorderThreshold: 4}, false},
		{"above threshold", StockLevel{OnHand: 5, ReorderThreshold: 4}, true},
		{"no threshold, no stock", StockLevel{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.Healthy(); got != tt.expected {
				t.Errorf("Healthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOffer_Rating(t *testing.T) {
	var o Offer
	if o.Rating() != 0 {
		t.Errorf("expected 0 for unknown rating, got %v", o.Rating())
	}

	r := 0.97
	o.SellerRating = &r
	if o.Rating() != 0.97 {
		t.Errorf("expected 0.97, got %v", o.Rating())
	}
}

func TestCard_Lookup(t *testing.T) {
	c := Card{ScryfallID: "abc", Name: "Sol Ring", SetCode: "CMM"}
	l := c.Lookup()
	if l.ScryfallID != "abc" || l.Name != "Sol Ring" || l.SetCode != "CMM" {
		t.Errorf("unexpected lookup: %+v", l)
	}
}

// Package ips computes the Inventory Priority Score: how urgently each card
// should be restocked.
package ips

import (
	"math"
	"sort"
	"time"

	"github.com/guarzo/mtgautobuy/internal/aggregate"
	"github.com/guarzo/mtgautobuy/internal/model"
)

// Weights tunes the score components.
type Weights struct {
	// StockWeight scales urgency below the reorder threshold. A card with
	// nothing on hand scores 1 + StockWeight.
	StockWeight float64 `toml:"stock_weight"`
	// Baseline is what stockFactor decays to as stock grows past threshold.
	Baseline float64 `toml:"baseline"`
	// SubstitutionDiscount is the factor applied when a substitute is healthy.
	SubstitutionDiscount float64 `toml:"substitution_discount"`
	ScarcityWeight       float64 `toml:"scarcity_weight"`
	// ScarcityScale is the availability at which scarcity is neutral.
	ScarcityScale float64 `toml:"scarcity_scale"`
	PriceWeight   float64 `toml:"price_weight"`
	MinSignal     float64 `toml:"min_signal"`
	MaxSignal     float64 `toml:"max_signal"`
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		StockWeight:          1.0,
		Baseline:             0.1,
		SubstitutionDiscount: 0.5,
		ScarcityWeight:       0.5,
		ScarcityScale:        10,
		PriceWeight:          0.5,
		MinSignal:            0.5,
		MaxSignal:            1.5,
	}
}

// Components are the four factors of a score.
type Components struct {
	StockFactor        float64 `json:"stock_factor"`
	SubstitutionFactor float64 `json:"substitution_factor"`
	SeasonalMultiplier float64 `json:"seasonal_multiplier"`
	MarketSignal       float64 `json:"market_signal"`
}

// Result is the score of one card.
type Result struct {
	CardID     string     `json:"card_id"`
	CardName   string     `json:"card_name"`
	Score      float64    `json:"score"`
	Components Components `json:"components"`
}

// SeasonalSource returns the seasonal multiplier for a card on a date.
type SeasonalSource interface {
	MultiplierFor(date time.Time, scryfallID string) float64
}

// SubstituteSource lists the other members of a card's substitution group.
type SubstituteSource interface {
	Substitutes(scryfallID string) []string
}

// Input is everything a scoring run needs, already fetched.
type Input struct {
	Date  time.Time
	Stock []model.StockLevel
	// Groups and Seasons may be nil.
	Groups  SubstituteSource
	Seasons SeasonalSource
	Market  map[string]aggregate.Summary
	// PreviousMinPrice holds the last observed min price per card.
	PreviousMinPrice map[string]float64
}

// Calculator scores cards. It holds no mutable state.
type Calculator struct {
	weights Weights
}

// NewCalculator creates a calculator with the given weights.
func NewCalculator(w Weights) *Calculator {
	return &Calculator{weights: w}
}

// Weights returns the calculator's weights.
func (c *Calculator) Weights() Weights {
	return c.weights
}

// Score ranks every card in in.Stock, highest score first. Ties are broken
// by card name, then id.
func (c *Calculator) Score(in Input) []Result {
	stockByCard := make(map[string]model.StockLevel, len(in.Stock))
	for _, s := range in.Stock {
		stockByCard[s.Card.ScryfallID] = s
	}

	results := make([]Result, 0, len(in.Stock))
	for _, s := range in.Stock {
		id := s.Card.ScryfallID
		comp := Components{
			StockFactor:        c.StockFactor(s.OnHand, s.ReorderThreshold),
			SubstitutionFactor: c.substitutionFactor(id, in.Groups, stockByCard),
			SeasonalMultiplier: 1.0,
			MarketSignal:       c.MarketSignal(in.Market[id], in.PreviousMinPrice[id]),
		}
		if in.Seasons != nil {
			comp.SeasonalMultiplier = in.Seasons.MultiplierFor(in.Date, id)
		}

		results = append(results, Result{
			CardID:     id,
			CardName:   s.Card.Name,
			Score:      comp.StockFactor * comp.SubstitutionFactor * comp.SeasonalMultiplier * comp.MarketSignal,
			Components: comp,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].CardName != results[j].CardName {
			return results[i].CardName < results[j].CardName
		}
		return results[i].CardID < results[j].CardID
	})
	return results
}

// StockFactor rises linearly from 1 at the threshold to 1+StockWeight at
// zero stock. Above the threshold it decays toward Baseline with the square
// of threshold/onHand.
func (c *Calculator) StockFactor(onHand, threshold int) float64 {
	w := c.weights
	if threshold <= 0 {
		return w.Baseline
	}
	q := math.Max(float64(onHand), 0)
	t := float64(threshold)
	if q < t {
		return 1 + w.StockWeight*(t-q)/t
	}
	ratio := t / q
	return w.Baseline + (1-w.Baseline)*ratio*ratio
}

func (c *Calculator) substitutionFactor(id string, groups SubstituteSource, stock map[string]model.StockLevel) float64 {
	if groups == nil {
		return 1.0
	}
	for _, other := range groups.Substitutes(id) {
		if s, ok := stock[other]; ok && s.Healthy() {
			return c.weights.SubstitutionDiscount
		}
	}
	return 1.0
}

// MarketSignal is neutral (1.0) without availability. Otherwise scarcity
// pushes it up when availability is below ScarcityScale, and a rising min
// price versus previousMin pushes it further. previousMin <= 0 means unknown.
func (c *Calculator) MarketSignal(s aggregate.Summary, previousMin float64) float64 {
	if !s.Available || s.TotalQuantity <= 0 {
		return 1.0
	}
	w := c.weights

	scale := math.Max(w.ScarcityScale, 0)
	scarcity := 0.0
	if scale > 0 {
		scarcity = scale/(scale+float64(s.TotalQuantity)) - 0.5
	}

	priceChange := 0.0
	if previousMin > 0 && s.MinPrice > 0 {
		priceChange = clamp((s.MinPrice-previousMin)/previousMin, -0.5, 1)
	}

	signal := 1 + w.ScarcityWeight*scarcity + w.PriceWeight*priceChange
	return clamp(signal, w.MinSignal, w.MaxSignal)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

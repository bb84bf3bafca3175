package seasonality

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// CombinePolicy decides the multiplier when several events overlap.
type CombinePolicy string

const (
	// Strongest keeps the single multiplier farthest from 1.0.
	Strongest CombinePolicy = "strongest"
	Max       CombinePolicy = "max"
	Product   CombinePolicy = "product"
	// Sum adds each event's deviation from 1.0.
	Sum CombinePolicy = "sum"
)

// ParseCombinePolicy maps a config string to a policy. Empty means Strongest.
func ParseCombinePolicy(s string) (CombinePolicy, error) {
	switch p := CombinePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Strongest, nil
	case Strongest, Max, Product, Sum:
		return p, nil
	default:
		return "", fmt.Errorf("unknown seasonal combine policy %q", s)
	}
}

// Adjuster answers "what is the seasonal multiplier on this date".
type Adjuster struct {
	events []Event
	policy CombinePolicy
}

// NewAdjuster creates an adjuster over a fixed event list.
func NewAdjuster(events []Event, policy CombinePolicy) *Adjuster {
	if policy == "" {
		policy = Strongest
	}
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return &Adjuster{events: sorted, policy: policy}
}

// Events returns the calendar in date order.
func (a *Adjuster) Events() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// Policy returns the configured combine policy.
func (a *Adjuster) Policy() CombinePolicy {
	return a.policy
}

// ActiveEvents returns events whose window contains date and that apply to
// the card. An empty card id matches only unscoped events.
func (a *Adjuster) ActiveEvents(date time.Time, scryfallID string) []Event {
	if a == nil {
		return nil
	}
	var active []Event
	for _, e := range a.events {
		if e.ActiveOn(date) && e.Applies(scryfallID) {
			active = append(active, e)
		}
	}
	return active
}

// MultiplierFor returns the combined multiplier for the card on date, 1.0
// when nothing is active.
func (a *Adjuster) MultiplierFor(date time.Time, scryfallID string) float64 {
	if a == nil {
		return 1.0
	}
	active := a.ActiveEvents(date, scryfallID)
	multipliers := make([]float64, 0, len(active))
	for _, e := range active {
		multipliers = append(multipliers, e.Multiplier())
	}
	return Combine(a.policy, multipliers)
}

// Combine folds multipliers under policy.
func Combine(policy CombinePolicy, multipliers []float64) float64 {
	if len(multipliers) == 0 {
		return 1.0
	}

	switch policy {
	case Max:
		out := multipliers[0]
		for _, m := range multipliers[1:] {
			out = math.Max(out, m)
		}
		return out
	case Product:
		out := 1.0
		for _, m := range multipliers {
			out *= m
		}
		return out
	case Sum:
		out := 1.0
		for _, m := range multipliers {
			out += m - 1
		}
		return math.Max(out, 0)
	default:
		out := 1.0
		for _, m := range multipliers {
			if math.Abs(m-1) > math.Abs(out-1) {
				out = m
			}
		}
		return out
	}
}

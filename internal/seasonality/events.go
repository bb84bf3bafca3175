// Package seasonality turns a calendar of product releases, holidays and
// bans into demand multipliers for a scoring date.
package seasonality

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// EventType classifies a seasonal event.
type EventType string

const (
	SetRelease       EventType = "set_release"
	CommanderProduct EventType = "commander_product"
	BanAnnouncement  EventType = "ban_announcement"
	Holiday          EventType = "holiday"
	Reprint          EventType = "reprint"
)

// Window is the span of days around an event date during which it is active.
// Both ends are inclusive and relative to the event date.
type Window struct {
	StartOffset int
	EndOffset   int
	Multiplier  float64
}

// windows holds the fixed window and magnitude for each type. Set releases
// are recognised but carry no adjustment.
var windows = map[EventType]Window{
	CommanderProduct: {StartOffset: -14, EndOffset: 0, Multiplier: 1.3},
	Holiday:          {StartOffset: -7, EndOffset: 0, Multiplier: 1.2},
	BanAnnouncement:  {StartOffset: 0, EndOffset: 7, Multiplier: 1.5},
	Reprint:          {StartOffset: 0, EndOffset: 30, Multiplier: 0.6},
	SetRelease:       {StartOffset: 0, EndOffset: 0, Multiplier: 1.0},
}

// WindowFor returns the window for an event type.
func WindowFor(t EventType) (Window, bool) {
	w, ok := windows[t]
	return w, ok
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := windows[t]
	return ok
}

// Event is one entry of the seasonal calendar.
type Event struct {
	Name string
	Type EventType
	// Date is midnight UTC of the event day.
	Date time.Time
	// ScryfallIDs scopes the event to specific cards. Empty applies it to
	// every card.
	ScryfallIDs []string
}

// Applies reports whether the event is relevant to the card.
func (e Event) Applies(scryfallID string) bool {
	if len(e.ScryfallIDs) == 0 {
		return true
	}
	for _, id := range e.ScryfallIDs {
		if id == scryfallID {
			return true
		}
	}
	return false
}

// ActiveOn reports whether day falls inside the event's window.
func (e Event) ActiveOn(day time.Time) bool {
	w, ok := WindowFor(e.Type)
	if !ok {
		return false
	}
	d := truncateDay(day)
	start := e.Date.AddDate(0, 0, w.StartOffset)
	end := e.Date.AddDate(0, 0, w.EndOffset)
	return !d.Before(start) && !d.After(end)
}

// Multiplier returns the event type's magnitude.
func (e Event) Multiplier() float64 {
	w, _ := WindowFor(e.Type)
	return w.Multiplier
}

type eventJSON struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Date        string   `json:"date"`
	ScryfallIDs []string `json:"scryfall_ids,omitempty"`
}

const dateLayout = "2006-01-02"

// ParseEvents decodes a JSON array of {name, type, date} records.
func ParseEvents(data []byte) ([]Event, error) {
	var raw []eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode seasonal events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for i, r := range raw {
		t := EventType(strings.ToLower(strings.TrimSpace(r.Type)))
		if !t.Valid() {
			return nil, fmt.Errorf("seasonal event %d (%q): unknown type %q", i, r.Name, r.Type)
		}
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("seasonal event %d (%q): %w", i, r.Name, err)
		}
		events = append(events, Event{
			Name:        r.Name,
			Type:        t,
			Date:        date,
			ScryfallIDs: r.ScryfallIDs,
		})
	}
	return events, nil
}

// LoadEvents reads the seasonal calendar from a JSON file.
func LoadEvents(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seasonal events %s: %w", path, err)
	}
	return ParseEvents(data)
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return truncateDay(t), nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

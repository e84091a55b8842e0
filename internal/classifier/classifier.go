// Package classifier flags duty days whose on-duty time touches the nightly
// early duty window (EDW).
package classifier

import (
	"fmt"
	"strings"
	"time"

	"pairing_analyzer/internal/pairing"
	"pairing_analyzer/internal/patterns"
)

const minutesPerDay = 24 * 60

// Window is a local time-of-day interval in minutes after midnight.
// An End before Start wraps past midnight. ParseWindow rejects equal ends.
type Window struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// DefaultWindow is 02:30-05:00 local.
var DefaultWindow = Window{Start: 150, End: 300}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("window %q: want HH:MM-HH:MM", s)
	}
	start, err := patterns.ParseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", s, err)
	}
	end, err := patterns.ParseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("window %q: %w", s, err)
	}
	if start == end {
		return Window{}, fmt.Errorf("window %q: start and end are equal", s)
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) String() string {
	return patterns.FormatClock(w.Start) + "-" + patterns.FormatClock(w.End)
}

// Wraps reports whether the window crosses midnight.
func (w Window) Wraps() bool {
	return w.End <= w.Start
}

// Overlaps reports whether the closed interval [start, end] intersects any
// daily occurrence of w in start's location. Touching an endpoint counts.
func (w Window) Overlaps(start, end time.Time) bool {
	if end.Before(start) {
		return false
	}
	loc := start.Location()
	s, e := start.In(loc), end.In(loc)

	length := w.End - w.Start
	if w.Wraps() {
		length += minutesPerDay
	}

	// Occurrences opening on the day before start can still be running.
	first := time.Date(s.Year(), s.Month(), s.Day()-1, 0, 0, 0, 0, loc)
	last := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		ws := time.Date(day.Year(), day.Month(), day.Day(), 0, w.Start, 0, 0, loc)
		we := time.Date(day.Year(), day.Month(), day.Day(), 0, w.Start+length, 0, 0, loc)
		if !s.After(we) && !e.Before(ws) {
			return true
		}
	}
	return false
}

// Config controls classification.
type Config struct {
	Window Window `yaml:"window"`

	// UseReserveBounds classifies legless hot standby duty days by their
	// reserve period when the document prints one.
	UseReserveBounds bool `yaml:"use_reserve_bounds"`
	// HotStandbyDefault is the result for hot standby duty days without
	// usable reserve bounds.
	HotStandbyDefault bool `yaml:"hot_standby_default"`
}

// DefaultConfig returns the 02:30-05:00 window, reserve bounds enabled and
// hot standby days without bounds treated as outside the window.
func DefaultConfig() Config {
	return Config{
		Window:           DefaultWindow,
		UseReserveBounds: true,
	}
}

// TouchesWindow reports whether the duty day's report-to-release interval
// intersects the window on any calendar day.
func TouchesWindow(d pairing.DutyDay, cfg Config) bool {
	if on, ok := d.OnDuty(); ok {
		return cfg.Window.Overlaps(on.Start, on.End)
	}
	if cfg.UseReserveBounds && d.Reserve != nil {
		return cfg.Window.Overlaps(d.Reserve.Start, d.Reserve.End)
	}
	return cfg.HotStandbyDefault
}

// Classify returns copies of ps with TouchesEDW set on every duty day and
// IsEDW set on every pairing with at least one such day. The input is not
// modified.
func Classify(ps []pairing.Pairing, cfg Config) []pairing.Pairing {
	out := make([]pairing.Pairing, len(ps))
	for i, p := range ps {
		c := p.Clone()
		c.IsEDW = false
		for j := range c.DutyDays {
			c.DutyDays[j].TouchesEDW = TouchesWindow(c.DutyDays[j], cfg)
			if c.DutyDays[j].TouchesEDW {
				c.IsEDW = true
			}
		}
		out[i] = c
	}
	return out
}

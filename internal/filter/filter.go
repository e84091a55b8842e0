// Package filter selects pairings by status, aggregate bounds and per-duty-day criteria.
package filter

import (
	"pairing_analyzer/internal/pairing"
)

// EDWFilter selects pairings by EDW status.
type EDWFilter int

const (
	EDWAny EDWFilter = iota
	EDWOnly
	EDWExclude
)

// HotStandbyFilter selects pairings by hot standby status.
type HotStandbyFilter int

const (
	HotStandbyInclude HotStandbyFilter = iota
	HotStandbyExclude
	HotStandbyOnly
)

// EDWState is the duty-day EDW state a Criterion requires.
type EDWState int

const (
	StateAny EDWState = iota
	StateTrue
	StateFalse
)

// Mode decides how the Criterion combines over a pairing's duty days.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeAnyDutyDay
	ModeAllDutyDays
)

// Criterion is the per-duty-day test.
type Criterion struct {
	MinHours float64  `json:"min_hours"`
	MinLegs  int      `json:"min_legs"`
	EDW      EDWState `json:"edw"`
}

// Meets reports whether a single duty day satisfies c.
func (c Criterion) Meets(d pairing.DutyDay) bool {
	if d.Hours() < c.MinHours || d.LegCount() < c.MinLegs {
		return false
	}
	switch c.EDW {
	case StateTrue:
		return d.TouchesEDW
	case StateFalse:
		return !d.TouchesEDW
	}
	return true
}

// Spec is an immutable filter configuration. Nil bounds are unbounded.
type Spec struct {
	EDW        EDWFilter        `json:"edw"`
	HotStandby HotStandbyFilter `json:"hot_standby"`

	MinDutyHours *float64 `json:"min_duty_hours,omitempty"`
	MaxDutyHours *float64 `json:"max_duty_hours,omitempty"`
	MinLegs      *int     `json:"min_legs,omitempty"`
	MaxLegs      *int     `json:"max_legs,omitempty"`

	Criterion Criterion `json:"criterion"`
	Mode      Mode      `json:"mode"`
}

// Float returns a pointer to v for Spec bounds.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v for Spec bounds.
func Int(v int) *int { return &v }

// Match reports whether p passes every dimension of s.
func (s Spec) Match(p pairing.Pairing) bool {
	switch s.EDW {
	case EDWOnly:
		if !p.IsEDW {
			return false
		}
	case EDWExclude:
		if p.IsEDW {
			return false
		}
	}
	switch s.HotStandby {
	case HotStandbyExclude:
		if p.IsHotStandby {
			return false
		}
	case HotStandbyOnly:
		if !p.IsHotStandby {
			return false
		}
	}

	hours, legs := p.MaxDutyHours(), p.MaxLegs()
	if s.MinDutyHours != nil && hours < *s.MinDutyHours {
		return false
	}
	if s.MaxDutyHours != nil && hours > *s.MaxDutyHours {
		return false
	}
	if s.MinLegs != nil && legs < *s.MinLegs {
		return false
	}
	if s.MaxLegs != nil && legs > *s.MaxLegs {
		return false
	}

	switch s.Mode {
	case ModeAnyDutyDay:
		for _, d := range p.DutyDays {
			if s.Criterion.Meets(d) {
				return true
			}
		}
		return false
	case ModeAllDutyDays:
		if len(p.DutyDays) == 0 {
			return false
		}
		for _, d := range p.DutyDays {
			if !s.Criterion.Meets(d) {
				return false
			}
		}
	}
	return true
}

// Apply returns the pairings matching s in their original order. The result
// is a new slice of copies; ps is not modified.
func Apply(ps []pairing.Pairing, s Spec) []pairing.Pairing {
	out := make([]pairing.Pairing, 0, len(ps))
	for _, p := range ps {
		if s.Match(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Package pairing provides the record types produced from a crew pairing
// document: the document header, pairings, duty days and flight legs.
package pairing

import (
	"fmt"
	"time"
)

// Header holds the document metadata found in the opening lines.
// It is a value type and is not modified after extraction.
type Header struct {
	Base      string    `json:"base"`
	Fleet     string    `json:"fleet"`
	BidPeriod string    `json:"bid_period"`
	ValidFrom time.Time `json:"valid_from,omitempty"`
	ValidTo   time.Time `json:"valid_to,omitempty"`
	Generated time.Time `json:"generated,omitempty"`

	// UTCOffset is the base's offset in minutes east of UTC.
	UTCOffset int  `json:"utc_offset_minutes"`
	HasOffset bool `json:"has_offset,omitempty"`
}

// Location returns the fixed zone for the header's base offset (UTC when absent).
func (h Header) Location() *time.Location {
	return Zone(h.UTCOffset)
}

// Zone returns a fixed zone for an offset in minutes east of UTC.
func Zone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	sign := '+'
	abs := offsetMinutes
	if abs < 0 {
		sign = '-'
		abs = -abs
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, abs/60, abs%60)
	return time.FixedZone(name, offsetMinutes*60)
}

// Period is a closed time interval, used for hot standby reserve bounds.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours returns the period length in hours (never negative).
func (p Period) Hours() float64 {
	if p.End.Before(p.Start) {
		return 0
	}
	return p.End.Sub(p.Start).Hours()
}

// Leg is a single scheduled flight segment.
type Leg struct {
	FlightNumber string    `json:"flight_number"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Departure    time.Time `json:"departure"`
	Arrival      time.Time `json:"arrival"`
	Line         int       `json:"line,omitempty"` // Source line number.
}

// BlockHours returns the scheduled block time of the leg.
func (l Leg) BlockHours() float64 {
	return l.Arrival.Sub(l.Departure).Hours()
}

// DutyDay is one on-duty period of a pairing.
type DutyDay struct {
	Ordinal int       `json:"ordinal"`
	Date    time.Time `json:"date"`
	Report  time.Time `json:"report,omitempty"`
	Release time.Time `json:"release,omitempty"`
	Legs    []Leg     `json:"legs"`

	// HotStandby marks a legless reserve duty day; Reserve carries its bounds
	// when the document prints them.
	HotStandby bool    `json:"hot_standby,omitempty"`
	Reserve    *Period `json:"reserve,omitempty"`

	TouchesEDW bool `json:"touches_edw"`
	Line       int  `json:"line,omitempty"`
}

// Hours returns the report-to-release duration in hours. Legless reserve
// duty days report the length of their reserve period.
func (d DutyDay) Hours() float64 {
	if d.Report.IsZero() || d.Release.IsZero() {
		if d.Reserve != nil {
			return d.Reserve.Hours()
		}
		return 0
	}
	if d.Release.Before(d.Report) {
		return 0
	}
	return d.Release.Sub(d.Report).Hours()
}

// LegCount returns the number of legs flown in the duty day.
func (d DutyDay) LegCount() int {
	return len(d.Legs)
}

// OnDuty returns the on-duty interval and whether it is known.
func (d DutyDay) OnDuty() (Period, bool) {
	if d.Report.IsZero() || d.Release.IsZero() {
		return Period{}, false
	}
	return Period{Start: d.Report, End: d.Release}, true
}

// Pairing is a multi-day trip with the number of times it operates in the bid period.
type Pairing struct {
	ID        string        `json:"id"`
	Frequency int           `json:"frequency"`
	DutyDays  []DutyDay     `json:"duty_days"`
	TAFB      time.Duration `json:"tafb"`

	IsEDW        bool    `json:"is_edw"`
	IsHotStandby bool    `json:"is_hot_standby"`
	Reserve      *Period `json:"reserve,omitempty"`

	Line int `json:"line,omitempty"` // Source line of the pairing identifier.
}

// TAFBHours returns the time away from base in hours.
func (p Pairing) TAFBHours() float64 {
	return p.TAFB.Hours()
}

// IsTurn reports whether the pairing is a single-duty-day trip.
func (p Pairing) IsTurn() bool {
	return len(p.DutyDays) == 1
}

// MaxDutyHours returns the longest duty day in hours (0 with no duty days).
func (p Pairing) MaxDutyHours() float64 {
	var max float64
	for _, d := range p.DutyDays {
		if h := d.Hours(); h > max {
			max = h
		}
	}
	return max
}

// MaxLegs returns the highest leg count of any duty day (0 with no duty days).
func (p Pairing) MaxLegs() int {
	var max int
	for _, d := range p.DutyDays {
		if n := d.LegCount(); n > max {
			max = n
		}
	}
	return max
}

// EDWDutyDays returns how many duty days touch the EDW window.
func (p Pairing) EDWDutyDays() int {
	n := 0
	for _, d := range p.DutyDays {
		if d.TouchesEDW {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the pairing so callers can set derived
// flags without touching the source record.
func (p Pairing) Clone() Pairing {
	out := p
	if p.Reserve != nil {
		r := *p.Reserve
		out.Reserve = &r
	}
	if p.DutyDays != nil {
		out.DutyDays = make([]DutyDay, len(p.DutyDays))
		for i, d := range p.DutyDays {
			if d.Legs != nil {
				d.Legs = append([]Leg(nil), d.Legs...)
			}
			if d.Reserve != nil {
				r := *d.Reserve
				d.Reserve = &r
			}
			out.DutyDays[i] = d
		}
	}
	return out
}

package filter

import (
	"net/url"
	"testing"
	"time"

	"pairing_analyzer/internal/pairing"
)

func dutyDay(hours float64, legs int, edw bool) pairing.DutyDay {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	d := pairing.DutyDay{
		Report:     start,
		Release:    start.Add(time.Duration(hours * float64(time.Hour))),
		TouchesEDW: edw,
	}
	for i := 0; i < legs; i++ {
		d.Legs = append(d.Legs, pairing.Leg{FlightNumber: "UA1"})
	}
	return d
}

func mixed() pairing.Pairing {
	return pairing.Pairing{
		ID:        "M1",
		Frequency: 1,
		DutyDays:  []pairing.DutyDay{dutyDay(6, 3, false), dutyDay(9, 5, false)},
	}
}

func sample() []pairing.Pairing {
	return []pairing.Pairing{
		mixed(),
		{ID: "E1", Frequency: 2, IsEDW: true, DutyDays: []pairing.DutyDay{dutyDay(5, 2, true)}},
		{ID: "H1", Frequency: 3, IsHotStandby: true},
		{ID: "L1", Frequency: 1, DutyDays: []pairing.DutyDay{dutyDay(12, 6, false), dutyDay(10, 4, false)}},
		{ID: "E2", Frequency: 1, IsEDW: true, DutyDays: []pairing.DutyDay{dutyDay(11, 4, true), dutyDay(8, 2, false)}},
	}
}

func ids(ps []pairing.Pairing) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCriterionModes(t *testing.T) {
	crit := Criterion{MinHours: 8, MinLegs: 4, EDW: StateAny}

	tests := []struct {
		name string
		mode Mode
		want bool
	}{
		{"any duty day", ModeAnyDutyDay, true},
		{"all duty days", ModeAllDutyDays, false},
		{"disabled", ModeDisabled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Spec{Criterion: crit, Mode: tt.mode}
			if got := s.Match(mixed()); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriterionEDWState(t *testing.T) {
	d := dutyDay(9, 5, true)
	tests := []struct {
		state EDWState
		want  bool
	}{
		{StateAny, true},
		{StateTrue, true},
		{StateFalse, false},
	}
	for _, tt := range tests {
		if got := (Criterion{EDW: tt.state}).Meets(d); got != tt.want {
			t.Errorf("Meets with %s = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{"zero spec keeps all", Spec{}, []string{"M1", "E1", "H1", "L1", "E2"}},
		{"edw only", Spec{EDW: EDWOnly}, []string{"E1", "E2"}},
		{"edw exclude", Spec{EDW: EDWExclude}, []string{"M1", "H1", "L1"}},
		{"hot standby only", Spec{HotStandby: HotStandbyOnly}, []string{"H1"}},
		{"hot standby exclude", Spec{HotStandby: HotStandbyExclude}, []string{"M1", "E1", "L1", "E2"}},
		{"max duty hours", Spec{MaxDutyHours: Float(10)}, []string{"M1", "E1", "H1"}},
		{"min duty hours", Spec{MinDutyHours: Float(10)}, []string{"L1", "E2"}},
		{"max legs", Spec{MaxLegs: Int(4)}, []string{"E1", "H1", "E2"}},
		{"min legs", Spec{MinLegs: Int(5)}, []string{"M1", "L1"}},
		{"min above max", Spec{MinDutyHours: Float(10), MaxDutyHours: Float(5)}, []string{}},
		{"combined", Spec{HotStandby: HotStandbyExclude, MaxLegs: Int(5), Mode: ModeAnyDutyDay,
			Criterion: Criterion{MinHours: 8, EDW: StateFalse}}, []string{"M1", "E2"}},
		{"all days edw", Spec{Mode: ModeAllDutyDays, Criterion: Criterion{EDW: StateTrue}}, []string{"E1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sample(), tt.spec))
			if !equalIDs(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	spec := Spec{EDW: EDWExclude, MinLegs: Int(3), Mode: ModeAnyDutyDay, Criterion: Criterion{MinHours: 9}}
	once := Apply(sample(), spec)
	twice := Apply(once, spec)
	if !equalIDs(ids(once), ids(twice)) {
		t.Errorf("once = %v, twice = %v", ids(once), ids(twice))
	}
}

func TestApplyMonotonic(t *testing.T) {
	prev := len(Apply(sample(), Spec{}))
	for _, max := range []float64{13, 11, 9, 5, 1} {
		n := len(Apply(sample(), Spec{MaxDutyHours: Float(max)}))
		if n > prev {
			t.Errorf("tightening max duty hours to %v grew result from %d to %d", max, prev, n)
		}
		prev = n
	}
}

func TestAllModeVacuous(t *testing.T) {
	hs := pairing.Pairing{ID: "H1", Frequency: 1, IsHotStandby: true}
	for _, c := range []Criterion{{}, {EDW: StateFalse}, {MinHours: 0, MinLegs: 0}} {
		if (Spec{Mode: ModeAllDutyDays, Criterion: c}).Match(hs) {
			t.Errorf("hot standby pairing passed all-duty-days mode with %+v", c)
		}
	}
	if (Spec{Mode: ModeAnyDutyDay}).Match(hs) {
		t.Error("hot standby pairing passed any-duty-day mode")
	}
}

func TestAnyAllDuality(t *testing.T) {
	// all(c) fails exactly when some duty day does not meet c.
	crit := Criterion{MinHours: 9}
	for _, p := range sample() {
		if len(p.DutyDays) == 0 {
			continue
		}
		all := Spec{Mode: ModeAllDutyDays, Criterion: crit}.Match(p)
		someFails := false
		for _, d := range p.DutyDays {
			if !crit.Meets(d) {
				someFails = true
			}
		}
		if all == someFails {
			t.Errorf("%s: all=%v someFails=%v", p.ID, all, someFails)
		}
	}
}

func TestApplyDoesNotAlias(t *testing.T) {
	src := sample()
	out := Apply(src, Spec{})
	out[0].DutyDays[0].TouchesEDW = true
	out[0].ID = "changed"
	if src[0].ID != "M1" || src[0].DutyDays[0].TouchesEDW {
		t.Error("Apply result aliases its input")
	}
}

func TestParseSpec(t *testing.T) {
	q := url.Values{}
	q.Set("edw", "only")
	q.Set("hot_standby", "EXCLUDE")
	q.Set("max_duty_hours", "10.5")
	q.Set("min_legs", "2")
	q.Set("mode", "all")
	q.Set("min_hours", "8")
	q.Set("min_day_legs", "4")
	q.Set("day_edw", "true")

	s, err := ParseSpec(q)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if s.EDW != EDWOnly || s.HotStandby != HotStandbyExclude || s.Mode != ModeAllDutyDays {
		t.Errorf("enums = %s/%s/%s", s.EDW, s.HotStandby, s.Mode)
	}
	if s.MaxDutyHours == nil || *s.MaxDutyHours != 10.5 {
		t.Errorf("MaxDutyHours = %v", s.MaxDutyHours)
	}
	if s.MinDutyHours != nil || s.MaxLegs != nil {
		t.Error("absent bounds should stay nil")
	}
	if s.MinLegs == nil || *s.MinLegs != 2 {
		t.Errorf("MinLegs = %v", s.MinLegs)
	}
	if s.Criterion != (Criterion{MinHours: 8, MinLegs: 4, EDW: StateTrue}) {
		t.Errorf("Criterion = %+v", s.Criterion)
	}
}

func TestParseSpecErrors(t *testing.T) {
	for _, raw := range []string{"edw=sometimes", "max_legs=four", "min_duty_hours=x", "mode=most",
		"max_duty_hours=NaN", "min_duty_hours=-Inf", "min_hours=Inf"} {
		q, _ := url.ParseQuery(raw)
		if _, err := ParseSpec(q); err == nil {
			t.Errorf("ParseSpec(%q) succeeded, want error", raw)
		}
	}
}

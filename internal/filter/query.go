package filter

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

var (
	edwNames        = []string{"any", "only", "exclude"}
	hotStandbyNames = []string{"include", "exclude", "only"}
	stateNames      = []string{"any", "true", "false"}
	modeNames       = []string{"disabled", "any", "all"}
)

func (f EDWFilter) String() string        { return name(edwNames, int(f)) }
func (f HotStandbyFilter) String() string { return name(hotStandbyNames, int(f)) }
func (s EDWState) String() string         { return name(stateNames, int(s)) }
func (m Mode) String() string             { return name(modeNames, int(m)) }

func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return strconv.Itoa(i)
	}
	return names[i]
}

func lookup(param, value string, names []string) (int, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, n := range names {
		if n == value {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s: unknown value %q (want one of %s)", param, value, strings.Join(names, ", "))
}

// ParseSpec builds a Spec from query parameters:
//
//	edw=any|only|exclude
//	hot_standby=include|exclude|only
//	min_duty_hours, max_duty_hours, min_legs, max_legs
//	mode=disabled|any|all
//	min_hours, min_day_legs, day_edw=any|true|false
//
// Absent parameters keep the zero Spec value.
func ParseSpec(q url.Values) (Spec, error) {
	var s Spec

	enums := []struct {
		param string
		names []string
		set   func(int)
	}{
		{"edw", edwNames, func(i int) { s.EDW = EDWFilter(i) }},
		{"hot_standby", hotStandbyNames, func(i int) { s.HotStandby = HotStandbyFilter(i) }},
		{"mode", modeNames, func(i int) { s.Mode = Mode(i) }},
		{"day_edw", stateNames, func(i int) { s.Criterion.EDW = EDWState(i) }},
	}
	for _, e := range enums {
		if v := q.Get(e.param); v != "" {
			i, err := lookup(e.param, v, e.names)
			if err != nil {
				return Spec{}, err
			}
			e.set(i)
		}
	}

	floats := []struct {
		param string
		dst   **float64
	}{
		{"min_duty_hours", &s.MinDutyHours},
		{"max_duty_hours", &s.MaxDutyHours},
	}
	for _, f := range floats {
		if v := q.Get(f.param); v != "" {
			n, err := parseHours(v)
			if err != nil {
				return Spec{}, fmt.Errorf("%s: %w", f.param, err)
			}
			*f.dst = Float(n)
		}
	}

	ints := []struct {
		param string
		dst   **int
	}{
		{"min_legs", &s.MinLegs},
		{"max_legs", &s.MaxLegs},
	}
	for _, f := range ints {
		if v := q.Get(f.param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Spec{}, fmt.Errorf("%s: %w", f.param, err)
			}
			*f.dst = Int(n)
		}
	}

	if v := q.Get("min_hours"); v != "" {
		n, err := parseHours(v)
		if err != nil {
			return Spec{}, fmt.Errorf("min_hours: %w", err)
		}
		s.Criterion.MinHours = n
	}
	if v := q.Get("min_day_legs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Spec{}, fmt.Errorf("min_day_legs: %w", err)
		}
		s.Criterion.MinLegs = n
	}

	return s, nil
}

// parseHours parses a finite hour count. NaN and infinities would make
// every comparison false.
func parseHours(v string) (float64, error) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%q is not a finite number", v)
	}
	return n, nil
}

package patterns

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date and time helpers shared by the header extractor and the pairing parser.
var (
	clockRe    = regexp.MustCompile(`^(\d{1,2}):?(\d{2})$`)
	durationRe = regexp.MustCompile(`^(\d{1,3})[:.](\d{2})$`)
	offsetRe   = regexp.MustCompile(`^(?:UTC|GMT|Z)?\s*([+-])(\d{1,2})(?::?(\d{2}))?$`)

	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})$`)
	dmyDateRe   = regexp.MustCompile(`^(\d{1,2})([A-Z]{3})(\d{4}|\d{2})$`)
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dayMonthRe  = regexp.MustCompile(`^(\d{1,2})([A-Z]{3})$`)
	monthDayRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// ParseClock parses an HH:MM or HHMM local clock time into minutes after midnight.
func ParseClock(s string) (int, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hh*60 + mm, nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDuration parses an HHH:MM (or HHH.MM) elapsed time such as a TAFB value.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("duration %q out of range", s)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

// ParseOffset parses a UTC offset such as "-08:00", "UTC+5", "-0800" into
// minutes east of UTC.
func ParseOffset(s string) (int, error) {
	m := offsetRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	hh, _ := strconv.Atoi(m[2])
	mm := 0
	if m[3] != "" {
		mm, _ = strconv.Atoi(m[3])
	}
	if hh > 14 || mm > 59 {
		return 0, fmt.Errorf("UTC offset %q out of range", s)
	}
	total := hh*60 + mm
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}

// ParseDate parses a calendar date in any of the supported document layouts
// (MM/DD/YY, MM/DD/YYYY, DDMMMYY, DDMMMYYYY, YYYY-MM-DD) and normalises it to
// midnight UTC. Two-digit years are taken as 20YY.
func ParseDate(s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var year, day int
	var month time.Month

	switch {
	case slashDateRe.MatchString(s):
		m := slashDateRe.FindStringSubmatch(s)
		mo, _ := strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		year = expandYear(m[3])
		month = time.Month(mo)
	case dmyDateRe.MatchString(s):
		m := dmyDateRe.FindStringSubmatch(s)
		day, _ = strconv.Atoi(m[1])
		mo, ok := months[m[2]]
		if !ok {
			return time.Time{}, fmt.Errorf("invalid month in date %q", s)
		}
		month = mo
		year = expandYear(m[3])
	case isoDateRe.MatchString(s):
		m := isoDateRe.FindStringSubmatch(s)
		year, _ = strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
		month = time.Month(mo)
	default:
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}

	return civilDate(year, month, day, s)
}

// ParsePartialDate parses a date without a year ("04JAN" or "01/04") and
// places it in the year that keeps it closest to ref.
func ParsePartialDate(s string, ref time.Time) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var day int
	var month time.Month

	switch {
	case dayMonthRe.MatchString(s):
		m := dayMonthRe.FindStringSubmatch(s)
		day, _ = strconv.Atoi(m[1])
		mo, ok := months[m[2]]
		if !ok {
			return time.Time{}, fmt.Errorf("invalid month in date %q", s)
		}
		month = mo
	case monthDayRe.MatchString(s):
		m := monthDayRe.FindStringSubmatch(s)
		mo, _ := strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		month = time.Month(mo)
	default:
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}

	year := ref.Year()
	if ref.IsZero() {
		year = 2000
	}
	d, err := civilDate(year, month, day, s)
	if err != nil {
		return time.Time{}, err
	}

	// A bid period spanning the new year: 02JAN in a December-anchored document
	// belongs to the following year.
	if !ref.IsZero() {
		if d.Sub(ref) < -180*24*time.Hour {
			d = d.AddDate(1, 0, 0)
		} else if d.Sub(ref) > 180*24*time.Hour {
			d = d.AddDate(-1, 0, 0)
		}
	}
	return d, nil
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}

// civilDate builds a midnight UTC date, rejecting values time.Date would normalise.
func civilDate(year int, month time.Month, day int, src string) (time.Time, error) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, fmt.Errorf("date %q out of range", src)
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, fmt.Errorf("date %q out of range", src)
	}
	return d, nil
}

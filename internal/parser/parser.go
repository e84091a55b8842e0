// Package parser turns the body of a pairing document into pairing, duty day
// and leg records.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"pairing_analyzer/internal/pairing"
	"pairing_analyzer/internal/patterns"
	"pairing_analyzer/internal/progress"
)

// Options controls time defaults and progress reporting.
type Options struct {
	// ReportLead is subtracted from the first departure when a duty day has no RPT time.
	ReportLead time.Duration
	// ReleaseLag is added to the last arrival when a duty day has no RLS time.
	ReleaseLag time.Duration
	// ProgressEvery is the number of lines between progress callbacks.
	ProgressEvery int
	// Progress receives parse progress; nil means no reporting.
	Progress progress.Func
}

// DefaultOptions returns the parser defaults.
func DefaultOptions() Options {
	return Options{
		ReportLead:    time.Hour,
		ReleaseLag:    15 * time.Minute,
		ProgressEvery: 50,
	}
}

// Warning is a non-fatal deviation from the expected document layout.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// ParseError is returned when a leg row carries timestamps that cannot be
// resolved to a clock time. It aborts the whole document.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// Grok compiler singletons.
var (
	lineCompiler  *patterns.Compiler
	idCompiler    *patterns.Compiler
	fieldCompiler *patterns.Compiler
	grokOnce      sync.Once
	grokErr       error
)

// getCompilers returns the line, bare-identifier and field compilers.
func getCompilers() (lines, ids, fields *patterns.Compiler, err error) {
	grokOnce.Do(func() {
		lineCompiler = patterns.NewCompiler(Formats, nil)
		idCompiler = patterns.NewCompiler(idFormats, nil)
		fieldCompiler = patterns.NewCompiler(fieldFormats, nil)
		for _, c := range []*patterns.Compiler{lineCompiler, idCompiler, fieldCompiler} {
			if grokErr = c.Compile(); grokErr != nil {
				return
			}
		}
	})
	return lineCompiler, idCompiler, fieldCompiler, grokErr
}

// fallbackDate anchors duty days when neither the line nor the header carries a date.
var fallbackDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Parse segments text into pairings. The header supplies the validity range
// and base offset used to resolve dates and times. All layout deviations are
// returned as warnings; only an unresolvable leg timestamp fails, in which
// case no pairings are returned.
func Parse(text string, hdr pairing.Header, opts Options) ([]pairing.Pairing, []Warning, error) {
	lc, ic, fc, err := getCompilers()
	if err != nil {
		return nil, nil, err
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultOptions().ProgressEvery
	}
	report := progress.Monotonic(opts.Progress)

	lines := splitLines(text)
	pages := countPages(lc, lines)

	s := &state{
		hdr:    hdr,
		opts:   opts,
		loc:    hdr.Location(),
		fields: fc,
		seen:   make(map[string]bool),
	}

	report(0, fmt.Sprintf("Processing page 1 of %d", pages))

	page := 0
	blankRun := 0
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		if (i+1)%opts.ProgressEvery == 0 {
			report(min(99, lineNo*100/len(lines)), fmt.Sprintf("Processed page %d of %d", max(page, 1), pages))
		}

		if line == "" {
			blankRun++
			continue
		}
		afterBlank := blankRun > 0

		c := classify(lc, ic, line, afterBlank)
		if c.kind == kindPage {
			page++
			report(min(99, lineNo*100/len(lines)), fmt.Sprintf("Processed page %d of %d", page, pages))
			continue
		}
		blankRun = 0

		if err := s.handle(lineNo, c); err != nil {
			return nil, nil, err
		}
	}
	s.finishPairing()

	report(100, fmt.Sprintf("Parsed %d pairings from %d pages", len(s.out), pages))
	return s.out, s.warnings, nil
}

type lineKind int

const (
	kindOther lineKind = iota
	kindPage
	kindLeg
	kindPairing
	kindBareID
	kindAmbiguous
	kindDuty
	kindRelease
	kindTAFB
	kindHotStandby
)

var kindNames = map[lineKind]string{
	kindOther:      "other",
	kindPage:       "page",
	kindLeg:        "leg",
	kindPairing:    "pairing",
	kindBareID:     "pairing_id",
	kindAmbiguous:  "ambiguous",
	kindDuty:       "duty",
	kindRelease:    "release",
	kindTAFB:       "tafb",
	kindHotStandby: "hot_standby",
}

func (k lineKind) String() string { return kindNames[k] }

type classified struct {
	kind  lineKind
	match *patterns.Match // Line format match.
	id    *patterns.Match // Bare identifier match, set for kindBareID and kindAmbiguous.
}

// classify assigns a line to a kind. A bare identifier line is only a
// pairing boundary after blank lines; when it also reads as a duty-day
// marker the line is ambiguous and the parser state decides.
func classify(lc, ic *patterns.Compiler, line string, afterBlank bool) classified {
	m := lc.Parse(line)
	c := classified{kind: kindOther, match: m}
	if m != nil {
		switch m.FormatName {
		case fmtPage:
			c.kind = kindPage
		case fmtLeg:
			c.kind = kindLeg
		case fmtPairing:
			c.kind = kindPairing
		case fmtDuty:
			c.kind = kindDuty
		case fmtRelease:
			c.kind = kindRelease
		case fmtTAFB:
			c.kind = kindTAFB
		case fmtHotStandby:
			c.kind = kindHotStandby
		}
	}

	if !afterBlank || (c.kind != kindOther && c.kind != kindDuty) {
		return c
	}
	if id := ic.Parse(line); id != nil {
		c.id = id
		if c.kind == kindDuty {
			c.kind = kindAmbiguous
		} else {
			c.kind = kindBareID
		}
	}
	return c
}

// draft is a pairing under construction.
type draft struct {
	p          pairing.Pairing
	hasFreq    bool
	hasTAFB    bool
	hotStandby bool
}

// dayDraft is a duty day under construction.
type dayDraft struct {
	d          pairing.DutyDay
	loc        *time.Location
	hasReport  bool
	hasRelease bool
	last       time.Time // Latest resolved instant, used to roll past midnight.
}

type state struct {
	hdr    pairing.Header
	opts   Options
	loc    *time.Location
	fields *patterns.Compiler

	out      []pairing.Pairing
	warnings []Warning
	seen     map[string]bool

	cur *draft
	day *dayDraft
}

func (s *state) warn(line int, format string, args ...any) {
	s.warnings = append(s.warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (s *state) handle(lineNo int, c classified) error {
	switch c.kind {
	case kindLeg:
		return s.leg(lineNo, c.match)

	case kindPairing:
		s.openPairing(lineNo, c.match.Captures["id"], c.match.Captures["rest"])

	case kindBareID:
		s.openPairing(lineNo, c.id.Captures["id"], c.id.Captures["rest"])

	case kindAmbiguous:
		if s.cur != nil {
			s.warn(lineNo, "line reads as pairing %q or duty day; treated as duty day of open pairing %s",
				c.id.Captures["id"], s.cur.p.ID)
			s.openDay(lineNo, c.match)
		} else {
			s.warn(lineNo, "line reads as pairing %q or duty day; no pairing open, treated as new pairing",
				c.id.Captures["id"])
			s.openPairing(lineNo, c.id.Captures["id"], c.id.Captures["rest"])
		}

	case kindDuty:
		if s.cur == nil {
			s.warn(lineNo, "duty-day marker outside a pairing skipped")
			return nil
		}
		s.openDay(lineNo, c.match)

	case kindRelease:
		s.release(lineNo, c.match.Captures["release"])

	case kindTAFB:
		if s.cur == nil {
			return nil
		}
		if d, err := patterns.ParseDuration(c.match.Captures["tafb"]); err == nil {
			s.cur.p.TAFB = d
			s.cur.hasTAFB = true
		} else {
			s.warn(lineNo, "unreadable TAFB %q", c.match.Captures["tafb"])
		}
		s.finishPairing()

	case kindHotStandby:
		if s.cur == nil {
			return nil
		}
		s.hotStandby(lineNo, c.match)

	default:
		if s.cur != nil {
			s.warn(lineNo, "unrecognised line in pairing %s skipped", s.cur.p.ID)
		}
	}
	return nil
}

func (s *state) openPairing(lineNo int, id, rest string) {
	s.finishPairing()

	id = strings.Join(strings.Fields(id), " ")
	s.cur = &draft{p: pairing.Pairing{ID: id, Frequency: 1, Line: lineNo}}

	for _, m := range s.fields.ParseAll(rest) {
		switch m.FormatName {
		case "freq":
			n, _ := strconv.Atoi(m.Captures["freq"])
			if n < 1 {
				s.warn(lineNo, "pairing %s has frequency %d; using 1", id, n)
				n = 1
			}
			s.cur.p.Frequency = n
			s.cur.hasFreq = true
		case "tafb":
			if d, err := patterns.ParseDuration(m.Captures["tafb"]); err == nil {
				s.cur.p.TAFB = d
				s.cur.hasTAFB = true
			}
		case fmtHotStandby:
			s.hotStandby(lineNo, m)
		}
	}
	if !s.cur.hasFreq {
		s.warn(lineNo, "pairing %s has no frequency; assuming 1", id)
	}
}

// dayDate picks the calendar date for the next duty day of the open pairing.
func (s *state) dayDate(explicit string, lineNo int) time.Time {
	ref := s.hdr.ValidFrom
	if n := len(s.cur.p.DutyDays); n > 0 {
		ref = s.cur.p.DutyDays[n-1].Date.AddDate(0, 0, 1)
	}
	if explicit != "" {
		anchor := ref
		if anchor.IsZero() {
			anchor = s.hdr.Generated
		}
		if d, err := patterns.ParsePartialDate(explicit, anchor); err == nil {
			return d
		}
		s.warn(lineNo, "unreadable duty date %q", explicit)
	}
	if ref.IsZero() {
		return fallbackDate
	}
	return ref
}

func (s *state) openDay(lineNo int, m *patterns.Match) {
	s.finishDay()

	ordinal := len(s.cur.p.DutyDays) + 1
	if printed, err := strconv.Atoi(m.Captures["ordinal"]); err == nil && printed != ordinal {
		s.warn(lineNo, "duty day printed as %d is day %d of pairing %s", printed, ordinal, s.cur.p.ID)
	}

	fields := map[string]*patterns.Match{}
	for _, fm := range s.fields.ParseAll(m.Captures["rest"]) {
		fields[fm.FormatName] = fm
	}

	loc := s.loc
	if fm := fields["offset"]; fm != nil {
		if off, err := patterns.ParseOffset(fm.Captures["offset"]); err == nil {
			loc = pairing.Zone(off)
		}
	}

	s.day = &dayDraft{
		d: pairing.DutyDay{
			Ordinal: ordinal,
			Date:    s.dayDate(fields["date"].GetCapture("date", ""), lineNo),
			Line:    lineNo,
		},
		loc: loc,
	}

	// Never start before the previous duty day released.
	if n := len(s.cur.p.DutyDays); n > 0 {
		s.day.last = s.cur.p.DutyDays[n-1].Release
	}

	if fm := fields["report"]; fm != nil {
		clock, err := patterns.ParseClock(fm.Captures["report"])
		if err != nil {
			s.warn(lineNo, "unreadable report time %q; using default", fm.Captures["report"])
		} else {
			s.day.d.Report = s.resolve(s.day.d.Date, clock)
			s.day.last = s.day.d.Report
			s.day.hasReport = true
		}
	}

	if fm := fields[fmtHotStandby]; fm != nil {
		s.hotStandby(lineNo, fm)
	}
}

// resolve places a clock time on the open duty day at or after the last
// resolved instant, rolling forward a day at a time across midnight.
func (s *state) resolve(date time.Time, clock int) time.Time {
	base := date
	if !s.day.last.IsZero() {
		l := s.day.last.In(s.day.loc)
		if ld := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC); ld.After(base) {
			base = ld
		}
	}
	t := time.Date(base.Year(), base.Month(), base.Day(), 0, clock, 0, 0, s.day.loc)
	for !s.day.last.IsZero() && t.Before(s.day.last) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func (s *state) leg(lineNo int, m *patterns.Match) error {
	dep, err := patterns.ParseClock(m.Captures["departure"])
	if err != nil {
		return &ParseError{Line: lineNo, Message: fmt.Sprintf("leg %s %s-%s: %v",
			m.Captures["flight"], m.Captures["origin"], m.Captures["destination"], err)}
	}
	arr, err := patterns.ParseClock(m.Captures["arrival"])
	if err != nil {
		return &ParseError{Line: lineNo, Message: fmt.Sprintf("leg %s %s-%s: %v",
			m.Captures["flight"], m.Captures["origin"], m.Captures["destination"], err)}
	}

	if s.cur == nil {
		s.warn(lineNo, "leg row outside a pairing skipped")
		return nil
	}
	if s.day == nil {
		s.warn(lineNo, "leg before first duty-day marker of pairing %s; assuming day %d",
			s.cur.p.ID, len(s.cur.p.DutyDays)+1)
		s.openDay(lineNo, &patterns.Match{Captures: map[string]string{
			"ordinal": strconv.Itoa(len(s.cur.p.DutyDays) + 1),
		}})
	}

	leg := pairing.Leg{
		FlightNumber: strings.ReplaceAll(m.Captures["flight"], " ", ""),
		Origin:       m.Captures["origin"],
		Destination:  m.Captures["destination"],
		Line:         lineNo,
	}
	leg.Departure = s.resolve(s.day.d.Date, dep)
	s.day.last = leg.Departure
	leg.Arrival = s.resolve(s.day.d.Date, arr)
	s.day.last = leg.Arrival

	s.day.d.Legs = append(s.day.d.Legs, leg)
	return nil
}

func (s *state) release(lineNo int, value string) {
	if s.day == nil {
		if s.cur != nil {
			s.warn(lineNo, "release outside a duty day of pairing %s skipped", s.cur.p.ID)
		}
		return
	}
	clock, err := patterns.ParseClock(value)
	if err != nil {
		s.warn(lineNo, "unreadable release time %q; using default", value)
		return
	}
	s.day.d.Release = s.resolve(s.day.d.Date, clock)
	s.day.hasRelease = true
}

func (s *state) hotStandby(lineNo int, m *patterns.Match) {
	var reserve *pairing.Period
	if from, to := m.Captures["from"], m.Captures["to"]; from != "" && to != "" {
		fc, err1 := patterns.ParseClock(from)
		tc, err2 := patterns.ParseClock(to)
		if err1 != nil || err2 != nil {
			s.warn(lineNo, "unreadable reserve period %s-%s", from, to)
		} else {
			reserve = &pairing.Period{}
			if s.day != nil {
				reserve.Start = s.resolve(s.day.d.Date, fc)
				s.day.last = reserve.Start
				reserve.End = s.resolve(s.day.d.Date, tc)
				s.day.last = reserve.End
			} else {
				date := s.hdr.ValidFrom
				if date.IsZero() {
					date = fallbackDate
				}
				reserve.Start = time.Date(date.Year(), date.Month(), date.Day(), 0, fc, 0, 0, s.loc)
				reserve.End = time.Date(date.Year(), date.Month(), date.Day(), 0, tc, 0, 0, s.loc)
				if !reserve.End.After(reserve.Start) {
					reserve.End = reserve.End.AddDate(0, 0, 1)
				}
			}
		}
	}

	if s.day != nil {
		s.day.d.HotStandby = true
		s.day.d.Reserve = reserve
		return
	}
	s.cur.hotStandby = true
	s.cur.p.Reserve = reserve
}

func (s *state) finishDay() {
	if s.day == nil {
		return
	}
	dd := s.day
	s.day = nil
	d := dd.d

	if len(d.Legs) == 0 {
		if !d.HotStandby {
			s.warn(d.Line, "duty day %d of pairing %s has no legs; skipped", d.Ordinal, s.cur.p.ID)
			return
		}
		if d.Reserve == nil {
			s.warn(d.Line, "hot standby duty day %d of pairing %s has no reserve period", d.Ordinal, s.cur.p.ID)
		}
		d.Report, d.Release = time.Time{}, time.Time{}
		s.cur.p.DutyDays = append(s.cur.p.DutyDays, d)
		return
	}

	first, last := d.Legs[0], d.Legs[len(d.Legs)-1]
	if !dd.hasReport {
		d.Report = first.Departure.Add(-s.opts.ReportLead)
	}
	if !dd.hasRelease || d.Release.Before(last.Arrival) {
		if dd.hasRelease {
			s.warn(d.Line, "release of duty day %d of pairing %s precedes last arrival; using default", d.Ordinal, s.cur.p.ID)
		}
		d.Release = last.Arrival.Add(s.opts.ReleaseLag)
	}
	s.cur.p.DutyDays = append(s.cur.p.DutyDays, d)
}

func (s *state) finishPairing() {
	if s.cur == nil {
		return
	}
	s.finishDay()
	dr := s.cur
	s.cur = nil
	p := dr.p

	if len(p.DutyDays) == 0 {
		if !dr.hotStandby {
			s.warn(p.Line, "pairing %s has no duty days; skipped", p.ID)
			return
		}
		p.IsHotStandby = true
		if p.Reserve == nil {
			s.warn(p.Line, "hot standby pairing %s has no reserve period", p.ID)
		}
	}

	if s.seen[p.ID] {
		s.warn(p.Line, "duplicate pairing %s skipped", p.ID)
		return
	}
	s.seen[p.ID] = true

	if !dr.hasTAFB {
		p.TAFB = elapsed(p)
	}
	s.out = append(s.out, p)
}

// elapsed derives TAFB from the first report to the last release.
func elapsed(p pairing.Pairing) time.Duration {
	var start, end time.Time
	extend := func(a, b time.Time) {
		if a.IsZero() || b.IsZero() {
			return
		}
		if start.IsZero() || a.Before(start) {
			start = a
		}
		if b.After(end) {
			end = b
		}
	}

	if p.Reserve != nil {
		extend(p.Reserve.Start, p.Reserve.End)
	}
	for _, d := range p.DutyDays {
		if on, ok := d.OnDuty(); ok {
			extend(on.Start, on.End)
		} else if d.Reserve != nil {
			extend(d.Reserve.Start, d.Reserve.End)
		}
	}
	if start.IsZero() {
		return 0
	}
	return end.Sub(start)
}

// splitLines normalises line endings and tabs. Form feeds are dropped so
// line numbers stay physical.
func splitLines(text string) []string {
	r := strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "", "\t", " ")
	return strings.Split(r.Replace(text), "\n")
}

// countPages counts repeating page header markers; a document without any
// counts as a single page.
func countPages(lc *patterns.Compiler, lines []string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(strings.ToUpper(line), "PAGE") && lc.Has(strings.TrimSpace(line), fmtPage) {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

package parser

import "pairing_analyzer/internal/patterns"

// Line format names, in precedence order.
const (
	fmtPage       = "page"
	fmtLeg        = "leg"
	fmtPairing    = "pairing"
	fmtDuty       = "duty"
	fmtRelease    = "release"
	fmtTAFB       = "tafb"
	fmtHotStandby = "hot_standby"
)

// Formats defines the recognised body lines. Compiler.Parse returns the first
// matching format, so the order below is the line precedence.
var Formats = []patterns.Format{
	// Repeating page header, e.g. "ONT 757 BID PERIOD 2601   PAGE 3 OF 12".
	{
		Name:    fmtPage,
		Pattern: `^(?:.*\s)?PAGE\s+(?P<page>\d{1,4})(?:\s+OF\s+(?P<pages>\d{1,4}))?\s*$`,
		Fields:  []string{"page", "pages"},
	},
	// Leg row: flight, origin, destination and two timestamps.
	// The timestamps are matched loosely here and validated afterwards, so a
	// misprinted time is reported instead of silently skipped.
	// e.g. "UA1234  ONT  SFO  02:00  03:30", "1234 ONT-SFO 0200 0330"
	{
		Name: fmtLeg,
		Pattern: `^\s*(?P<flight>{FLIGHT})\s+(?P<origin>{STATION})\s*[-/ ]\s*(?P<destination>{STATION})` +
			`\s+(?P<departure>{CLOCKISH})\s+(?P<arrival>{CLOCKISH})(?:\s+(?P<rest>.*))?$`,
		Fields: []string{"flight", "origin", "destination", "departure", "arrival", "rest"},
	},
	// Keyword pairing line: "TRIP ID: O8001  FREQ: 3  TAFB 45:30", "PAIRING H100".
	{
		Name:    fmtPairing,
		Pattern: `^\s*(?:TRIP|PAIRING|SEQ)\s*(?:ID|#|NO\.?)?\s*[:#]?\s*(?P<id>[A-Z]{0,4}\d{1,5}[A-Z]?)\b(?P<rest>.*)$`,
		Fields:  []string{"id", "rest"},
	},
	// Duty-day line: "DAY 1  04JAN  RPT 01:00  UTC-05:00", "DUTY 2 HOT STANDBY 03:00-09:00".
	{
		Name:    fmtDuty,
		Pattern: `^\s*(?:DAY|DUTY)\s*(?:DAY\s*)?(?P<ordinal>\d{1,2})(?:\s+(?P<rest>.*))?$`,
		Fields:  []string{"ordinal", "rest"},
	},
	// Release line: "RLS 06:00", "RELEASE: 0600".
	{
		Name:    fmtRelease,
		Pattern: `^\s*(?:RLS|RELEASE)\s*[:=]?\s*(?P<release>\S+)(?P<rest>.*)$`,
		Fields:  []string{"release", "rest"},
	},
	// Pairing total: "TAFB: 45:30", "TOTAL TAFB 105.15".
	{
		Name:    fmtTAFB,
		Pattern: `^\s*(?:TOTAL\s+)?TAFB\s*[:=]?\s*(?P<tafb>{DURATION})`,
		Fields:  []string{"tafb"},
	},
	// Hot standby marker with optional reserve bounds: "HOT STANDBY 02:00-10:00".
	{
		Name:    fmtHotStandby,
		Pattern: hotStandbyPattern,
		Fields:  []string{"from", "to"},
	},
}

const hotStandbyPattern = `\b(?:HOT\s*STANDBY|HOTSBY|HSBY)\b(?:\s*[:=]?\s*(?P<from>{CLOCK})\s*-\s*(?P<to>{CLOCK}))?`

// idFormats recognises a bare pairing identifier line. It only counts as a
// pairing boundary directly after a run of blank lines.
var idFormats = []patterns.Format{
	{
		Name:    "pairing_id",
		Pattern: `^\s*(?P<id>{PAIRING_ID})(?P<rest>(?:\s+(?:FREQ|TAFB)\b.*)?)\s*$`,
		Fields:  []string{"id", "rest"},
	},
}

// fieldFormats pick optional fields out of the remainder of a pairing or duty line.
var fieldFormats = []patterns.Format{
	{Name: "freq", Pattern: `\bFREQ(?:UENCY)?\s*[:=]?\s*(?P<freq>\d{1,3})\b`},
	{Name: "tafb", Pattern: `\bTAFB\s*[:=]?\s*(?P<tafb>{DURATION})`},
	{Name: "report", Pattern: `\b(?:RPT|REPORT)\s*[:=]?\s*(?P<report>\S+)`},
	{Name: "offset", Pattern: `\b(?:UTC|GMT)\s*(?P<offset>{OFFSET})`},
	{Name: "date", Pattern: `(?:^|\s)(?P<date>{DAYMONTH}|{MONTHDAY})(?:\s|$)`},
	{Name: fmtHotStandby, Pattern: hotStandbyPattern},
}

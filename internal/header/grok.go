package header

import "pairing_analyzer/internal/patterns"

// Formats defines the labelled header fields. Several formats may fill the
// same capture; the first non-empty value wins.
var Formats = []patterns.Format{
	// BASE: ONT / DOMICILE ONT / CREW BASE - ONT
	{
		Name:    "base",
		Pattern: `\b(?:CREW\s+)?(?:BASE|DOMICILE){SEPARATOR}(?P<base>{STATION})\b`,
		Fields:  []string{"base"},
	},
	// FLEET: 757 / FLEET TYPE 757 / EQUIPMENT 75E / AIRCRAFT TYPE: 320
	{
		Name:    "fleet",
		Pattern: `\b(?:(?:FLEET|EQUIPMENT|EQPT)(?:\s+TYPE)?|AIRCRAFT\s+TYPE){SEPARATOR}(?P<fleet>{FLEET})\b`,
		Fields:  []string{"fleet"},
	},
	// BID PERIOD: 2601 / BIDPERIOD JAN26
	{
		Name:    "bid_period",
		Pattern: `\bBID\s*PERIOD{SEPARATOR}(?P<bid_period>{BIDPERIOD})\b`,
		Fields:  []string{"bid_period"},
	},
	// VALID 01/01/26 - 01/31/26 / EFFECTIVE 01JAN2026 THRU 31JAN2026
	{
		Name: "validity",
		Pattern: `\b(?:VALID|EFFECTIVE)(?:\s+FROM)?{SEPARATOR}(?P<valid_from>{DATE})` +
			`\s*(?:-|THRU|THROUGH|TO)\s*(?P<valid_to>{DATE})`,
		Fields: []string{"valid_from", "valid_to"},
	},
	// GENERATED 12/15/2025 / DATE GENERATED: 15DEC25
	{
		Name:    "generated",
		Pattern: `\b(?:DATE\s+)?GENERATED(?:\s+ON)?{SEPARATOR}(?P<generated>{DATE})`,
		Fields:  []string{"generated"},
	},
	// TIME ZONE: UTC-08:00 / TZ -0800
	{
		Name:    "time_zone",
		Pattern: `\b(?:TIME\s*ZONE|TZ)\s*[:=]?\s*(?:UTC|GMT)?\s*(?P<offset>{OFFSET})`,
		Fields:  []string{"offset"},
	},
}

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
// Every component is a non-capturing expression so it can be wrapped in a named group.
var BasePatterns = map[string]string{
	// Stations.
	"STATION": `[A-Z]{3}`, // IATA station code, e.g. ONT, SFO

	// Flight identifiers.
	// Optional 2-character carrier designator + 1-4 digit number + optional suffix.
	// e.g., UA1234, UA 1234, 9E3321, 1234, 412A
	"FLIGHT": `(?:[A-Z0-9]{2}\s?)?\d{1,4}[A-Z]?`,

	// Pairing identifiers: 1-4 letters, optional space, 1-5 digits, optional suffix letter.
	// e.g., O8001, H 123, SEQ 4512 is handled by the keyword format instead.
	"PAIRING_ID": `[A-Z]{1,4} ?\d{1,5}[A-Z]?`,

	// Time formats.
	"CLOCK":     `\d{1,2}:?\d{2}`, // HH:MM or HHMM
	"CLOCKISH":  `\d[\dA-Z:.]{2,5}`, // anything a misprinted clock can look like
	"DURATION":  `\d{1,3}[:.]\d{2}`, // HHH:MM
	"OFFSET":    `[+-]\d{1,2}(?::?\d{2})?`,
	"DAYMONTH":  `\d{1,2}[A-Z]{3}`,  // 04JAN
	"MONTHDAY":  `\d{1,2}/\d{1,2}`,  // 01/04
	"DATE":      `(?:\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})|\d{1,2}[A-Z]{3}(?:\d{4}|\d{2})|\d{4}-\d{2}-\d{2})`,
	"SEPARATOR": `\s*[:=\-]?\s*`,

	// Fleet / equipment codes, e.g. 757, 75E, 320, B738.
	"FLEET": `[A-Z0-9]{2,4}`,

	// Bid period identifiers, e.g. 2601, JAN26, 2026-01.
	"BIDPERIOD": `[A-Z0-9][A-Z0-9\-]{2,8}`,
}

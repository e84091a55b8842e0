package parser

import (
	"strings"

	"pairing_analyzer/internal/patterns"
)

// LineTrace records how one document line was classified.
type LineTrace struct {
	Line       int                  `json:"line"`
	Text       string               `json:"text"`
	Kind       string               `json:"kind"`
	AfterBlank bool                 `json:"after_blank,omitempty"`
	Captures   map[string]string    `json:"captures,omitempty"`
	Formats    *patterns.ParseTrace `json:"formats,omitempty"`
}

// Trace classifies every non-blank line of text without building pairings.
// With formats set each line also carries the full list of format attempts.
func Trace(text string, formats bool) ([]LineTrace, error) {
	lc, ic, _, err := getCompilers()
	if err != nil {
		return nil, err
	}

	var out []LineTrace
	blankRun := 0
	for i, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			blankRun++
			continue
		}

		c := classify(lc, ic, line, blankRun > 0)
		lt := LineTrace{
			Line:       i + 1,
			Text:       line,
			Kind:       c.kind.String(),
			AfterBlank: blankRun > 0,
		}
		switch {
		case c.id != nil && c.kind == kindBareID:
			lt.Captures = c.id.Captures
		case c.match != nil:
			lt.Captures = c.match.Captures
		}
		if formats {
			lt.Formats = lc.ParseWithTrace(line)
		}
		out = append(out, lt)

		if c.kind != kindPage {
			blankRun = 0
		}
	}
	return out, nil
}

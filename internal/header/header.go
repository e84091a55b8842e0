// Package header extracts document metadata from the opening lines of a
// pairing document.
package header

import (
	"strings"
	"sync"

	"pairing_analyzer/internal/pairing"
	"pairing_analyzer/internal/patterns"
)

// RegionLines is how many leading non-blank lines are searched for header labels.
const RegionLines = 40

// MalformedHeaderError reports required header fields that were not found.
type MalformedHeaderError struct {
	Missing []string
}

func (e *MalformedHeaderError) Error() string {
	return "malformed header: missing " + strings.Join(e.Missing, ", ")
}

// Grok compiler singleton.
var (
	grokCompiler *patterns.Compiler
	grokOnce     sync.Once
	grokErr      error
)

// getCompiler returns the singleton grok compiler.
func getCompiler() (*patterns.Compiler, error) {
	grokOnce.Do(func() {
		grokCompiler = patterns.NewCompiler(Formats, nil)
		grokErr = grokCompiler.Compile()
	})
	return grokCompiler, grokErr
}

// Region returns the leading part of the document that carries the header.
func Region(text string) string {
	var b strings.Builder
	n := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
		n++
		if n >= RegionLines {
			break
		}
	}
	return b.String()
}

// Extract returns the document header, or a *MalformedHeaderError when the
// base, fleet or bid period labels are absent from the leading region.
// Optional fields that fail to parse are left zero.
func Extract(text string) (pairing.Header, error) {
	compiler, err := getCompiler()
	if err != nil {
		return pairing.Header{}, err
	}

	fields := make(map[string]string)
	for _, m := range compiler.ParseAll(Region(normalise(text))) {
		for k, v := range m.Captures {
			if v != "" && fields[k] == "" {
				fields[k] = v
			}
		}
	}

	var missing []string
	for _, name := range []string{"base", "fleet", "bid_period"} {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return pairing.Header{}, &MalformedHeaderError{Missing: missing}
	}

	h := pairing.Header{
		Base:      fields["base"],
		Fleet:     fields["fleet"],
		BidPeriod: fields["bid_period"],
	}

	if v := fields["valid_from"]; v != "" {
		h.ValidFrom, _ = patterns.ParseDate(v)
	}
	if v := fields["valid_to"]; v != "" {
		h.ValidTo, _ = patterns.ParseDate(v)
	}
	if v := fields["generated"]; v != "" {
		h.Generated, _ = patterns.ParseDate(v)
	}
	if v := fields["offset"]; v != "" {
		if off, err := patterns.ParseOffset(v); err == nil {
			h.UTCOffset = off
			h.HasOffset = true
		}
	}

	return h, nil
}

// normalise folds CRLF line endings and tabs so label patterns see plain spaces.
func normalise(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\t", " ")
}

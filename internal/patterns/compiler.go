// Package patterns provides shared regex patterns and helper functions for
// pairing document parsing. This file contains the grok-style pattern compiler.
package patterns

import (
	"regexp"
	"strings"
)

// Format represents a line format with named capture groups.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler manages pattern compilation and matching for a set of formats.
// Formats are tried in declaration order, so earlier formats take precedence.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a new pattern compiler with the given formats.
// It merges the provided local patterns over the global BasePatterns.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string, len(BasePatterns)+len(localPatterns)),
		formats:      make([]Format, len(formats)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	copy(c.formats, formats)
	return c
}

// Compile expands all {PLACEHOLDER} references and compiles regexes.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		re, err := regexp.Compile(c.expand(c.formats[i].Pattern))
		if err != nil {
			return err
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (c *Compiler) expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		result = strings.ReplaceAll(result, "{"+name+"}", regex)
	}
	return result
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Captures   map[string]string // Named capture group values
}

// GetCapture is a helper to safely get a capture value with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}

// captures maps the named subexpressions of re onto a submatch slice.
func captures(re *regexp.Regexp, submatch []string) map[string]string {
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(submatch[i])
	}
	return out
}

// Parse matches text against the compiled formats in order.
// Matching is case-insensitive: the text is upper-cased first.
// Returns the first successful match, or nil if no format matches.
func (c *Compiler) Parse(text string) *Match {
	upperText := strings.ToUpper(text)

	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}
		sub := format.Compiled.FindStringSubmatch(upperText)
		if sub == nil {
			continue
		}
		return &Match{FormatName: format.Name, Captures: captures(format.Compiled, sub)}
	}

	return nil
}

// ParseAll returns every format that matches text, in declaration order.
// Useful when several formats each contribute different fields.
func (c *Compiler) ParseAll(text string) []*Match {
	upperText := strings.ToUpper(text)
	var results []*Match

	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}
		sub := format.Compiled.FindStringSubmatch(upperText)
		if sub == nil {
			continue
		}
		results = append(results, &Match{FormatName: format.Name, Captures: captures(format.Compiled, sub)})
	}

	return results
}

// Has reports whether the named format matches text.
func (c *Compiler) Has(text, formatName string) bool {
	upperText := strings.ToUpper(text)
	for _, format := range c.formats {
		if format.Name == formatName && format.Compiled != nil {
			return format.Compiled.MatchString(upperText)
		}
	}
	return false
}

// FormatTrace contains debug information about a format match attempt.
type FormatTrace struct {
	Name     string            `json:"name"`
	Matched  bool              `json:"matched"`
	Pattern  string            `json:"pattern,omitempty"`
	Captures map[string]string `json:"captures,omitempty"`
}

// ParseTrace contains complete trace information for a parse attempt.
type ParseTrace struct {
	Formats []FormatTrace `json:"formats"`
	Match   *Match        `json:"match,omitempty"`
}

// ParseWithTrace matches text against every format and records each attempt.
// This is useful for debugging why a document line was not recognised.
func (c *Compiler) ParseWithTrace(text string) *ParseTrace {
	upperText := strings.ToUpper(text)
	trace := &ParseTrace{
		Formats: make([]FormatTrace, 0, len(c.formats)),
	}

	for _, format := range c.formats {
		ft := FormatTrace{
			Name:    format.Name,
			Pattern: c.expand(format.Pattern),
		}

		if format.Compiled != nil {
			if sub := format.Compiled.FindStringSubmatch(upperText); sub != nil {
				ft.Matched = true
				ft.Captures = captures(format.Compiled, sub)
				if trace.Match == nil {
					trace.Match = &Match{FormatName: format.Name, Captures: ft.Captures}
				}
			}
		}

		trace.Formats = append(trace.Formats, ft)
	}

	return trace
}

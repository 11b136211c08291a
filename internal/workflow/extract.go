package workflow

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// A matcher locates one candidate JSON span inside free-form text.
// Matchers are tried in priority order; the first span that parses and
// validates wins.
type matcher struct {
	name string
	re   *regexp.Regexp
}

// Candidate patterns, most specific first:
//  1. a fenced block explicitly tagged as JSON
//  2. any fenced block
//  3. a bare object carrying all required field names in declaration order
var matchers = []matcher{
	{name: "tagged_fence", re: regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")},
	{name: "bare_fence", re: regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")},
	{name: "inline_object", re: regexp.MustCompile(`(?s)(\{.*"title".*"start_event".*"steps".*"people".*"systems".*"pain_points".*\})`)},
}

// Extract scans assistant text for an embedded workflow document. It tries
// each candidate pattern in order; a span that fails to parse or fails shape
// validation is skipped silently and the next pattern is tried. Failed
// extraction is a normal outcome during ongoing discovery, never an error.
func Extract(text string) (Document, bool) {
	for _, m := range matchers {
		match := m.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		span := json.RawMessage(strings.TrimSpace(match[1]))
		if !json.Valid(span) {
			slog.Debug("workflow candidate span is not valid JSON", "pattern", m.name)
			continue
		}
		if !ValidShape(span) {
			slog.Debug("workflow candidate span failed shape validation", "pattern", m.name)
			continue
		}

		var doc Document
		if err := json.Unmarshal(span, &doc); err != nil {
			slog.Debug("workflow candidate span failed decode", "pattern", m.name, "error", err)
			continue
		}
		return doc, true
	}
	return Document{}, false
}

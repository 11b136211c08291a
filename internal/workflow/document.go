package workflow

import (
	"bytes"
	"encoding/json"
)

// Document is the structured representation of one business workflow,
// extracted from free-form conversation text. Its JSON shape is both the
// storage format and the exact shape the extractor looks for in model
// output; the two must stay identical.
type Document struct {
	Title      string   `json:"title"`
	StartEvent string   `json:"start_event"`
	EndEvent   string   `json:"end_event"`
	Steps      []Step   `json:"steps"`
	People     []Person `json:"people"`
	Systems    []System `json:"systems"`
	PainPoints []string `json:"pain_points"`
}

// Step is one ordered activity in the workflow. Actor and System reference
// ids from the People and Systems lists, but referential integrity is not
// enforced: documents come from best-effort extraction and may contain
// dangling references.
type Step struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Actor       string `json:"actor,omitempty"`
	System      string `json:"system,omitempty"`
}

// Person is a role involved in the workflow, flagged internal or external.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// System is a tool or platform used by the workflow, flagged internal or external.
type System struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// requiredFields are the top-level keys a candidate JSON object must carry
// to be accepted as a workflow document.
var requiredFields = []string{"title", "start_event", "end_event", "steps", "people", "systems", "pain_points"}

// ValidShape reports whether raw is a JSON object with all required fields
// present and with steps, people, systems, and pain_points each list-shaped.
// Field contents are not inspected beyond shape.
func ValidShape(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}

	for _, f := range requiredFields {
		if _, ok := obj[f]; !ok {
			return false
		}
	}

	for _, f := range []string{"steps", "people", "systems", "pain_points"} {
		// A JSON null decodes into a nil slice without error, so the raw
		// value must actually be an array literal.
		span := bytes.TrimSpace(obj[f])
		if len(span) == 0 || span[0] != '[' {
			return false
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(span, &arr); err != nil {
			return false
		}
	}

	return true
}

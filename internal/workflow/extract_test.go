package workflow

import (
	"encoding/json"
	"fmt"
	"testing"
)

const validDoc = `{
	"title": "Invoice Processing",
	"start_event": "Invoice arrives by email",
	"end_event": "Payment confirmed",
	"steps": [{"id": "step1", "description": "Log invoice", "actor": "person1", "system": "system1"}],
	"people": [{"id": "person1", "name": "AP Clerk", "type": "internal"}],
	"systems": [{"id": "system1", "name": "QuickBooks", "type": "external"}],
	"pain_points": ["Manual data entry"]
}`

func TestValidShape_AllFieldsPresent(t *testing.T) {
	minimal := `{"title":"W","start_event":"s","end_event":"e","steps":[],"people":[],"systems":[],"pain_points":[]}`
	if !ValidShape(json.RawMessage(minimal)) {
		t.Error("ValidShape(minimal complete doc) = false, want true")
	}
	if !ValidShape(json.RawMessage(validDoc)) {
		t.Error("ValidShape(full doc) = false, want true")
	}
}

func TestValidShape_MissingField(t *testing.T) {
	base := map[string]any{
		"title":       "W",
		"start_event": "s",
		"end_event":   "e",
		"steps":       []any{},
		"people":      []any{},
		"systems":     []any{},
		"pain_points": []any{},
	}

	for field := range base {
		t.Run("missing_"+field, func(t *testing.T) {
			partial := make(map[string]any, len(base)-1)
			for k, v := range base {
				if k != field {
					partial[k] = v
				}
			}
			raw, err := json.Marshal(partial)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if ValidShape(raw) {
				t.Errorf("ValidShape with %s missing = true, want false", field)
			}
		})
	}
}

func TestValidShape_WrongShape(t *testing.T) {
	for _, field := range []string{"steps", "people", "systems", "pain_points"} {
		for _, bad := range []string{`{}`, `"text"`, `42`, `null`} {
			t.Run(fmt.Sprintf("%s_as_%s", field, bad), func(t *testing.T) {
				doc := map[string]any{
					"title":       "W",
					"start_event": "s",
					"end_event":   "e",
					"steps":       []any{},
					"people":      []any{},
					"systems":     []any{},
					"pain_points": []any{},
				}
				doc[field] = json.RawMessage(bad)
				raw, err := json.Marshal(doc)
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}
				if ValidShape(raw) {
					t.Errorf("ValidShape with %s = %s returned true, want false", field, bad)
				}
			})
		}
	}
}

func TestValidShape_NotAnObject(t *testing.T) {
	for _, raw := range []string{`[]`, `"just a string"`, `null`, `{broken`} {
		if ValidShape(json.RawMessage(raw)) {
			t.Errorf("ValidShape(%s) = true, want false", raw)
		}
	}
}

func TestExtract_TaggedFence(t *testing.T) {
	text := "Here is the confirmed workflow:\n\n```json\n" + validDoc + "\n```\n\nWould you like a diagram?"
	doc, ok := Extract(text)
	if !ok {
		t.Fatal("Extract() ok = false, want true")
	}
	if doc.Title != "Invoice Processing" {
		t.Errorf("Title = %q, want %q", doc.Title, "Invoice Processing")
	}
	if len(doc.Steps) != 1 || doc.Steps[0].Actor != "person1" {
		t.Errorf("Steps = %+v, want one step with actor person1", doc.Steps)
	}
}

func TestExtract_BareFence(t *testing.T) {
	text := "Summary:\n```\n" + validDoc + "\n```"
	doc, ok := Extract(text)
	if !ok {
		t.Fatal("Extract() ok = false, want true")
	}
	if doc.StartEvent != "Invoice arrives by email" {
		t.Errorf("StartEvent = %q", doc.StartEvent)
	}
}

func TestExtract_InlineObject(t *testing.T) {
	text := "The structured data is " + validDoc + " as discussed."
	doc, ok := Extract(text)
	if !ok {
		t.Fatal("Extract() ok = false, want true")
	}
	if doc.EndEvent != "Payment confirmed" {
		t.Errorf("EndEvent = %q", doc.EndEvent)
	}
}

func TestExtract_NoDocument(t *testing.T) {
	cases := map[string]string{
		"plain question":  "What triggers the invoice to arrive in the first place?",
		"broken fence":    "```json\n{\"title\": broken\n```",
		"incomplete keys": "```json\n{\"title\":\"W\",\"steps\":[]}\n```",
		"empty":           "",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := Extract(text); ok {
				t.Errorf("Extract(%q) ok = true, want false", text)
			}
		})
	}
}

func TestExtract_SkipsNonJSONFence(t *testing.T) {
	// A code fence holding non-object content matches neither fence pattern;
	// the inline pattern still finds the document later in the text.
	text := "```mermaid\nflowchart TD\n  A --> B\n```\nStructured record: " + validDoc
	doc, ok := Extract(text)
	if !ok {
		t.Fatal("Extract() ok = false, want true via inline pattern")
	}
	if doc.Title != "Invoice Processing" {
		t.Errorf("Title = %q, want inline document", doc.Title)
	}
}

func TestExtract_NullListRejected(t *testing.T) {
	// "steps": null decodes into a nil slice without error; the shape gate
	// must still refuse it so a half-formed summary never advances the phase.
	text := "```json\n" + `{"title":"W","start_event":"s","end_event":"e",` +
		`"steps":null,"people":[],"systems":[],"pain_points":[]}` + "\n```"
	if _, ok := Extract(text); ok {
		t.Error("Extract() ok = true for a document with steps = null, want false")
	}
}

func TestExtract_DanglingReferencesAccepted(t *testing.T) {
	// Referential integrity between steps and people/systems is deliberately
	// not checked; a step pointing at an unknown actor still extracts.
	text := "```json\n{\"title\":\"W\",\"start_event\":\"s\",\"end_event\":\"e\"," +
		`"steps":[{"id":"step1","description":"d","actor":"nobody"}],` +
		`"people":[],"systems":[],"pain_points":[]}` + "\n```"
	doc, ok := Extract(text)
	if !ok {
		t.Fatal("Extract() ok = false, want true")
	}
	if doc.Steps[0].Actor != "nobody" {
		t.Errorf("Actor = %q, want dangling reference preserved", doc.Steps[0].Actor)
	}
}

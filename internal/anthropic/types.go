package anthropic

import "encoding/json"

// Message is one entry in the conversation transcript sent to the Messages
// API. Content is always the block form; plain text and tool events share
// the same shape.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a single content element. Type selects which fields are
// meaningful: "text" uses Text; "tool_use" uses ID, Name, Input;
// "tool_result" uses ToolUseID and Content.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// TextMessage builds a single-block text message for the given role.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ToolResultMessage builds a user message carrying tool results back to the
// model, one block per satisfied request.
func ToolResultMessage(results []ContentBlock) Message {
	return Message{Role: "user", Content: results}
}

// Tool declares a capability the model may request during completion.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"input_schema"`
}

// Schema describes a tool's expected input object.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Options tunes a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
	Tools       []Tool
}

// Reply is the model's response: zero or more text segments plus zero or
// more tool requests the caller must satisfy and feed back.
type Reply struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Text concatenates all text segments of the reply.
func (r Reply) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			if out != "" {
				out += "\n\n"
			}
			out += b.Text
		}
	}
	return out
}

// FirstText returns the first text segment, or "" if the reply has none.
func (r Reply) FirstText() string {
	for _, b := range r.Content {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

// ToolUse is a structured request to invoke a named capability.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolUses extracts all tool requests from the reply.
func (r Reply) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, b := range r.Content {
		if b.Type == "tool_use" {
			uses = append(uses, ToolUse{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return uses
}

// AssistantMessage converts the reply into a transcript message so tool
// request/response rounds can be threaded through the history.
func (r Reply) AssistantMessage() Message {
	return Message{Role: "assistant", Content: r.Content}
}

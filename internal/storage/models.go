package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Phase is the conversational stage a chat is in. Phases are ordered and
// only ever advance during normal operation.
type Phase int

const (
	PhaseDiscovery     Phase = 1
	PhaseDiagram       Phase = 2
	PhaseOpportunities Phase = 3
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDiscovery:
		return "discovery"
	case PhaseDiagram:
		return "diagram"
	case PhaseOpportunities:
		return "opportunities"
	default:
		return "unknown"
	}
}

// Chat is one conversation mapping exactly one workflow.
type Chat struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Phase           Phase     `json:"phase"`
	Completed       bool      `json:"completed"`
	WorkflowJSON    string    `json:"workflow_json,omitempty"`   // serialized workflow.Document; "" until extraction succeeds
	Recommendations string    `json:"recommendations,omitempty"` // markdown opportunity table; "" until generated
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Message is one immutable turn in a chat, role "user" or "assistant".
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

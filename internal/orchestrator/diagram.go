package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/flowsage/internal/anthropic"
	"github.com/kalambet/flowsage/internal/diagram"
)

// DiagramResult holds both the intermediate graph notation and the
// renderable artifact produced from it.
type DiagramResult struct {
	Notation    string `json:"mermaidSyntax"`
	ArtifactURL string `json:"imageUrl"`
}

// GenerateDiagram converts the chat's workflow document to Mermaid notation
// via the model, then renders the notation locally to an SVG data URL. The
// phase is never mutated here; this operation is invoked explicitly by a
// collaborator, not inferred from chat text.
func (o *Orchestrator) GenerateDiagram(ctx context.Context, chatID string) (DiagramResult, error) {
	chat, err := o.store.GetChat(chatID)
	if err != nil {
		return DiagramResult{}, fmt.Errorf("loading chat %s: %w", chatID, err)
	}
	if chat.WorkflowJSON == "" {
		return DiagramResult{}, ErrMissingWorkflowData
	}

	prompt := "Please convert this workflow JSON to Mermaid flowchart syntax:\n\n" + chat.WorkflowJSON
	reply, err := o.llm.Complete(ctx, diagramSystem, []anthropic.Message{anthropic.TextMessage("user", prompt)}, anthropic.Options{
		MaxTokens:   20000,
		Temperature: 0.2,
	})
	if err != nil {
		return DiagramResult{}, fmt.Errorf("diagram completion: %w", err)
	}

	notation := diagram.StripFences(reply.Text())
	if notation == "" {
		return DiagramResult{}, fmt.Errorf("model produced no diagram notation")
	}

	svg, err := diagram.RenderSVG(notation)
	if err != nil {
		// The notation is still returned; only the rendered artifact degrades.
		slog.Warn("diagram render failed, using fallback artifact", "chat_id", chatID, "error", err)
		svg = diagram.FallbackSVG
	}

	return DiagramResult{
		Notation:    notation,
		ArtifactURL: diagram.DataURL(svg),
	}, nil
}

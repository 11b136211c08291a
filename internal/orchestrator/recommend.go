package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kalambet/flowsage/internal/anthropic"
	"github.com/kalambet/flowsage/internal/search"
	"github.com/kalambet/flowsage/internal/storage"
)

// maxToolRounds bounds the tool-use loop. When the bound is hit the last
// reply is used as-is; the protocol is capped best-effort, not
// correctness-critical.
const maxToolRounds = 5

const webSearchToolName = "web_search"

func webSearchTool() anthropic.Tool {
	return anthropic.Tool{
		Name:        webSearchToolName,
		Description: "Search the web for AI implementation case studies, best practices, and industry research",
		InputSchema: anthropic.Schema{
			Type: "object",
			Properties: map[string]anthropic.SchemaProperty{
				"query": {
					Type:        "string",
					Description: "The search query to find information about AI implementations and industry best practices",
				},
			},
			Required: []string{"query"},
		},
	}
}

// GenerateRecommendations runs the opportunity-analysis tool loop against
// the chat's workflow document, stores the resulting markdown, and marks
// the chat completed. Requires a previously extracted workflow document.
func (o *Orchestrator) GenerateRecommendations(ctx context.Context, chatID string) (string, error) {
	chat, err := o.store.GetChat(chatID)
	if err != nil {
		return "", fmt.Errorf("loading chat %s: %w", chatID, err)
	}
	if chat.WorkflowJSON == "" {
		return "", ErrMissingWorkflowData
	}

	initial := "Please analyze this workflow JSON to identify AI implementation opportunities. " +
		"Use the web_search tool to find current industry examples and best practices for similar workflows.\n\n" +
		chat.WorkflowJSON

	opts := anthropic.Options{
		MaxTokens:   4000,
		Temperature: 0.7,
		Tools:       []anthropic.Tool{webSearchTool()},
	}

	msgs := []anthropic.Message{anthropic.TextMessage("user", initial)}
	reply, err := o.llm.Complete(ctx, opportunitiesSystem, msgs, opts)
	if err != nil {
		return "", fmt.Errorf("opportunity completion: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		uses := reply.ToolUses()
		if len(uses) == 0 {
			break
		}
		slog.Debug("processing tool round", "chat_id", chatID, "round", round+1, "requests", len(uses))

		results := make([]anthropic.ContentBlock, 0, len(uses))
		for _, use := range uses {
			results = append(results, o.satisfyToolUse(ctx, use))
		}

		msgs = append(msgs, reply.AssistantMessage(), anthropic.ToolResultMessage(results))
		reply, err = o.llm.Complete(ctx, opportunitiesSystem, msgs, opts)
		if err != nil {
			return "", fmt.Errorf("opportunity completion (round %d): %w", round+1, err)
		}
	}

	text := reply.Text()
	if text == "" {
		return "", ErrEmptyRecommendations
	}

	if err := o.store.SetRecommendations(chatID, text); err != nil {
		return "", fmt.Errorf("storing recommendations: %w", err)
	}
	if err := o.store.SetPhase(chatID, storage.PhaseOpportunities); err != nil {
		return "", fmt.Errorf("setting opportunities phase: %w", err)
	}
	if err := o.store.SetCompleted(chatID, true); err != nil {
		return "", fmt.Errorf("marking chat completed: %w", err)
	}

	slog.Info("recommendations generated", "chat_id", chatID, "length", len(text))
	return text, nil
}

// satisfyToolUse executes one capability request and wraps the outcome as a
// tool_result block. Search failures have already been downgraded to empty
// result sets by the bridge, so a flaky provider costs one empty round, not
// the whole loop.
func (o *Orchestrator) satisfyToolUse(ctx context.Context, use anthropic.ToolUse) anthropic.ContentBlock {
	result := anthropic.ContentBlock{Type: "tool_result", ToolUseID: use.ID}

	if use.Name != webSearchToolName {
		result.Content = fmt.Sprintf("unsupported tool: %s", use.Name)
		return result
	}

	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(use.Input, &input); err != nil || input.Query == "" {
		slog.Warn("malformed web_search input", "error", err)
		result.Content = `{"results":[]}`
		return result
	}

	results := o.searcher.Search(ctx, input.Query)
	payload, err := json.Marshal(struct {
		Results []search.Result `json:"results"`
	}{Results: results})
	if err != nil {
		result.Content = `{"results":[]}`
		return result
	}

	slog.Debug("web search satisfied", "query", input.Query, "results", len(results))
	result.Content = string(payload)
	return result
}

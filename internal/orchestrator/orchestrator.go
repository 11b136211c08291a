// Package orchestrator drives the phase-based workflow-mapping conversation:
// discovery interview, diagram hand-off, and opportunity analysis. It owns
// the phase state machine and coordinates extraction, deduplication, and the
// web-search tool loop around the language model.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/flowsage/internal/anthropic"
	"github.com/kalambet/flowsage/internal/dedupe"
	"github.com/kalambet/flowsage/internal/search"
	"github.com/kalambet/flowsage/internal/storage"
	"github.com/kalambet/flowsage/internal/workflow"
)

// ErrMissingWorkflowData is returned when diagram or recommendation
// generation is attempted before a workflow document has been extracted.
var ErrMissingWorkflowData = errors.New("no workflow data found for this chat")

// ErrEmptyRecommendations is returned when the tool-use loop completes
// without producing any usable text.
var ErrEmptyRecommendations = errors.New("recommendation generation produced no content")

// ChatStore is the persistence contract the orchestrator depends on.
// Message append/read order must be strictly chronological per chat.
type ChatStore interface {
	GetChat(id string) (storage.Chat, error)
	GetMessages(chatID string) ([]storage.Message, error)
	GetFirstMessages(chatID string, n int) ([]storage.Message, error)
	AppendMessage(chatID, role, content string) (storage.Message, error)
	SetPhase(id string, phase storage.Phase) error
	SetCompleted(id string, completed bool) error
	SetWorkflowJSON(id, workflowJSON string) error
	SetRecommendations(id, markdown string) error
	SetTitle(id, title string) error
}

// Completer is the language-model contract: full history in, reply out.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, opts anthropic.Options) (anthropic.Reply, error)
}

// Searcher is the web-search capability offered to the model during
// opportunity analysis. It soft-fails: provider errors surface as an empty
// result set, never as an error.
type Searcher interface {
	Search(ctx context.Context, query string) []search.Result
}

// Orchestrator processes chat turns and the explicit generation operations.
type Orchestrator struct {
	store    ChatStore
	llm      Completer
	searcher Searcher
	guard    *dedupe.Guard
	titles   singleflight.Group
}

// New creates an Orchestrator. The guard may be shared with other consumers
// but is typically one per process.
func New(store ChatStore, llm Completer, searcher Searcher, guard *dedupe.Guard) *Orchestrator {
	return &Orchestrator{
		store:    store,
		llm:      llm,
		searcher: searcher,
		guard:    guard,
	}
}

// ProcessTurn handles one inbound user message: dedup, phase dispatch, and
// persistence of the resulting turn pair. Duplicate submissions fail with
// dedupe.ErrDuplicateMessage; concurrent identical submissions share one
// execution and one stored turn pair.
func (o *Orchestrator) ProcessTurn(ctx context.Context, chatID, userText string) (string, error) {
	return o.guard.Do(chatID, userText, func() (string, error) {
		return o.processTurn(ctx, chatID, userText)
	})
}

func (o *Orchestrator) processTurn(ctx context.Context, chatID, userText string) (string, error) {
	chat, err := o.store.GetChat(chatID)
	if err != nil {
		return "", fmt.Errorf("loading chat %s: %w", chatID, err)
	}

	history, err := o.store.GetMessages(chatID)
	if err != nil {
		return "", fmt.Errorf("loading messages for chat %s: %w", chatID, err)
	}

	if _, err := o.store.AppendMessage(chatID, "user", userText); err != nil {
		return "", fmt.Errorf("appending user turn: %w", err)
	}

	reply, err := o.dispatch(ctx, chat, history, userText)
	if err != nil {
		return "", err
	}

	if _, err := o.store.AppendMessage(chatID, "assistant", reply); err != nil {
		return "", fmt.Errorf("appending assistant turn: %w", err)
	}
	return reply, nil
}

// dispatch routes the turn to the phase-appropriate behavior. history is
// the transcript before the current user turn.
func (o *Orchestrator) dispatch(ctx context.Context, chat storage.Chat, history []storage.Message, userText string) (string, error) {
	slog.Debug("dispatching turn", "chat_id", chat.ID, "phase", chat.Phase.String())

	switch chat.Phase {
	case storage.PhaseDiagram:
		if wantsDiagram(userText, lastAssistantText(history)) {
			if err := o.store.SetPhase(chat.ID, storage.PhaseOpportunities); err != nil {
				return "", fmt.Errorf("advancing to opportunities: %w", err)
			}
			slog.Info("chat advanced to opportunities phase", "chat_id", chat.ID)
			return diagramAcknowledgment, nil
		}
		// Ambiguous intent: keep refining the workflow rather than getting
		// stuck. Staying in the discovery behavior can only re-extract and
		// overwrite the document, never regress the phase.
		return o.runDiscovery(ctx, chat, history, userText)

	case storage.PhaseOpportunities:
		if wantsSuggestions(userText, lastAssistantText(history)) {
			return suggestionsAcknowledgment, nil
		}
		return o.consultantReply(ctx, history, userText)

	default:
		return o.runDiscovery(ctx, chat, history, userText)
	}
}

// runDiscovery sends the full history plus the current user turn to the
// model under discovery instructions, then gates phase advancement on a
// successful structured extraction from the reply. Extraction failure is
// the normal steady state mid-interview and is not an error.
func (o *Orchestrator) runDiscovery(ctx context.Context, chat storage.Chat, history []storage.Message, userText string) (string, error) {
	if isFirstUserTurn(history) {
		userText += firstMessageGuidance
	}

	msgs := append(transcript(history), anthropic.TextMessage("user", userText))
	reply, err := o.llm.Complete(ctx, discoverySystem, msgs, anthropic.Options{
		MaxTokens:   20000,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("discovery completion: %w", err)
	}

	text := reply.Text()

	if doc, ok := workflow.Extract(text); ok {
		raw, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("encoding workflow document: %w", err)
		}
		if err := o.store.SetWorkflowJSON(chat.ID, string(raw)); err != nil {
			return "", fmt.Errorf("storing workflow document: %w", err)
		}
		if err := o.store.SetPhase(chat.ID, storage.PhaseDiagram); err != nil {
			return "", fmt.Errorf("advancing to diagram phase: %w", err)
		}
		slog.Info("workflow document extracted", "chat_id", chat.ID, "title", doc.Title)
	}

	return text, nil
}

// consultantReply answers an opportunities-phase turn that is not asking to
// kick off generation. No phase transition happens here.
func (o *Orchestrator) consultantReply(ctx context.Context, history []storage.Message, userText string) (string, error) {
	msgs := append(transcript(history), anthropic.TextMessage("user", userText))
	reply, err := o.llm.Complete(ctx, consultantSystem, msgs, anthropic.Options{
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("consultant completion: %w", err)
	}
	if text := reply.Text(); text != "" {
		return text, nil
	}
	return consultantFallback, nil
}

// transcript converts stored messages into model messages, preserving order.
func transcript(history []storage.Message) []anthropic.Message {
	msgs := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, anthropic.TextMessage(role, m.Content))
	}
	return msgs
}

// lastAssistantText returns the content of the most recent assistant turn,
// or "" if there is none.
func lastAssistantText(history []storage.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return history[i].Content
		}
	}
	return ""
}

// isFirstUserTurn reports whether the history contains no user turns yet.
func isFirstUserTurn(history []storage.Message) bool {
	for _, m := range history {
		if m.Role == "user" {
			return false
		}
	}
	return true
}

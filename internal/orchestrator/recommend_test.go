package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/flowsage/internal/anthropic"
	"github.com/kalambet/flowsage/internal/search"
	"github.com/kalambet/flowsage/internal/storage"
)

const sampleWorkflowJSON = `{"title":"Invoice Processing","start_event":"Invoice arrives","end_event":"Payment sent","steps":[],"people":[],"systems":[],"pain_points":["manual entry"]}`

func toolUseReply(id, query string) anthropic.Reply {
	return anthropic.Reply{
		Content: []anthropic.ContentBlock{
			{Type: "tool_use", ID: id, Name: webSearchToolName, Input: json.RawMessage(`{"query":"` + query + `"}`)},
		},
		StopReason: "tool_use",
	}
}

func chatWithWorkflow(store *stubStore, id string) {
	c := store.addChat(id, storage.PhaseDiagram)
	c.WorkflowJSON = sampleWorkflowJSON
}

func TestGenerateRecommendations_SearchRoundThreadsResults(t *testing.T) {
	store := newStubStore()
	chatWithWorkflow(store, "c1")

	table := "| Step | Opportunity |\n|---|---|\n| manual entry | OCR ingestion |"
	llm := &stubLLM{replies: []anthropic.Reply{
		toolUseReply("tu1", "invoice OCR automation"),
		textReply(table),
	}}
	searcher := &stubSearcher{results: []search.Result{
		{Title: "OCR case study", Link: "https://example.com/ocr", Snippet: "cut entry time by 80%"},
	}}
	o := newTestOrchestrator(store, llm, searcher)

	got, err := o.GenerateRecommendations(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if got != table {
		t.Errorf("recommendations = %q", got)
	}

	if len(searcher.queries) != 1 || searcher.queries[0] != "invoice OCR automation" {
		t.Errorf("search queries = %v", searcher.queries)
	}

	// The second completion carries the request/response round: the
	// assistant's tool_use turn followed by a user turn with the results.
	second := llm.calls[1].msgs
	if len(second) != 3 {
		t.Fatalf("second call has %d messages, want 3", len(second))
	}
	if second[1].Role != "assistant" || second[1].Content[0].Type != "tool_use" {
		t.Errorf("tool request turn not threaded: %+v", second[1])
	}
	result := second[2].Content[0]
	if result.Type != "tool_result" || result.ToolUseID != "tu1" {
		t.Errorf("tool result block = %+v", result)
	}
	if !strings.Contains(result.Content, "OCR case study") {
		t.Errorf("result payload missing search hit: %q", result.Content)
	}

	chat, _ := store.GetChat("c1")
	if chat.Recommendations != table {
		t.Errorf("stored recommendations = %q", chat.Recommendations)
	}
	if chat.Phase != storage.PhaseOpportunities || !chat.Completed {
		t.Errorf("chat state = phase %v completed %v, want opportunities/completed", chat.Phase, chat.Completed)
	}
}

func TestGenerateRecommendations_LoopBound(t *testing.T) {
	store := newStubStore()
	chatWithWorkflow(store, "c1")

	// Every reply asks for another search and also carries text, so the
	// loop must stop on its own and use the last reply's text.
	greedy := anthropic.Reply{
		Content: []anthropic.ContentBlock{
			{Type: "text", Text: "still researching"},
			{Type: "tool_use", ID: "tu", Name: webSearchToolName, Input: json.RawMessage(`{"query":"more"}`)},
		},
		StopReason: "tool_use",
	}
	llm := &stubLLM{replies: []anthropic.Reply{greedy}}
	searcher := &stubSearcher{}
	o := newTestOrchestrator(store, llm, searcher)

	got, err := o.GenerateRecommendations(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GenerateRecommendations: %v", err)
	}
	if got != "still researching" {
		t.Errorf("recommendations = %q, want last reply's text", got)
	}

	// One initial completion plus one per permitted round.
	if n := llm.callCount(); n != 1+maxToolRounds {
		t.Errorf("model called %d times, want %d", n, 1+maxToolRounds)
	}
	if len(searcher.queries) != maxToolRounds {
		t.Errorf("search called %d times, want %d", len(searcher.queries), maxToolRounds)
	}
}

func TestGenerateRecommendations_NoWorkflow(t *testing.T) {
	store := newStubStore()
	store.addChat("c1", storage.PhaseDiscovery)
	o := newTestOrchestrator(store, &stubLLM{}, &stubSearcher{})

	if _, err := o.GenerateRecommendations(context.Background(), "c1"); !errors.Is(err, ErrMissingWorkflowData) {
		t.Errorf("error = %v, want ErrMissingWorkflowData", err)
	}
}

func TestGenerateRecommendations_EmptyReply(t *testing.T) {
	store := newStubStore()
	chatWithWorkflow(store, "c1")
	llm := &stubLLM{replies: []anthropic.Reply{{StopReason: "end_turn"}}}
	o := newTestOrchestrator(store, llm, &stubSearcher{})

	if _, err := o.GenerateRecommendations(context.Background(), "c1"); !errors.Is(err, ErrEmptyRecommendations) {
		t.Errorf("error = %v, want ErrEmptyRecommendations", err)
	}

	chat, _ := store.GetChat("c1")
	if chat.Completed {
		t.Error("chat marked completed despite empty output")
	}
}

func TestGenerateRecommendations_ChatNotFound(t *testing.T) {
	o := newTestOrchestrator(newStubStore(), &stubLLM{}, &stubSearcher{})
	if _, err := o.GenerateRecommendations(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSatisfyToolUse_UnknownTool(t *testing.T) {
	o := newTestOrchestrator(newStubStore(), &stubLLM{}, &stubSearcher{})
	block := o.satisfyToolUse(context.Background(), anthropic.ToolUse{ID: "tu1", Name: "format_disk"})
	if block.Type != "tool_result" || block.ToolUseID != "tu1" {
		t.Fatalf("block = %+v", block)
	}
	if !strings.Contains(block.Content, "unsupported tool") {
		t.Errorf("content = %q", block.Content)
	}
}

func TestSatisfyToolUse_MalformedInput(t *testing.T) {
	o := newTestOrchestrator(newStubStore(), &stubLLM{}, &stubSearcher{})
	block := o.satisfyToolUse(context.Background(), anthropic.ToolUse{
		ID: "tu1", Name: webSearchToolName, Input: json.RawMessage(`{"query":`),
	})
	if block.Content != `{"results":[]}` {
		t.Errorf("content = %q, want empty result set", block.Content)
	}
}

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/flowsage/internal/anthropic"
	"github.com/kalambet/flowsage/internal/storage"
)

const mermaidReply = "```mermaid\nflowchart TD\n    A[Invoice arrives] --> B[Log invoice]\n    B --> C[Payment sent]\n```"

func TestGenerateDiagram(t *testing.T) {
	store := newStubStore()
	chatWithWorkflow(store, "c1")
	llm := &stubLLM{replies: []anthropic.Reply{textReply(mermaidReply)}}
	o := newTestOrchestrator(store, llm, &stubSearcher{})

	got, err := o.GenerateDiagram(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GenerateDiagram: %v", err)
	}
	if strings.Contains(got.Notation, "```") {
		t.Errorf("notation still fenced: %q", got.Notation)
	}
	if !strings.HasPrefix(got.Notation, "flowchart TD") {
		t.Errorf("notation = %q", got.Notation)
	}
	if !strings.HasPrefix(got.ArtifactURL, "data:image/svg+xml,") {
		t.Errorf("artifact URL = %q", got.ArtifactURL)
	}
	if got.ArtifactURL == "data:image/svg+xml," {
		t.Error("artifact URL carries no document")
	}

	// The model sees the stored workflow document, and the phase is not
	// touched by diagram generation.
	if !strings.Contains(llm.calls[0].msgs[0].Content[0].Text, sampleWorkflowJSON) {
		t.Error("workflow document not included in prompt")
	}
	chat, _ := store.GetChat("c1")
	if chat.Phase != storage.PhaseDiagram {
		t.Errorf("phase = %v, want unchanged", chat.Phase)
	}
}

func TestGenerateDiagram_UnrenderableNotationFallsBack(t *testing.T) {
	store := newStubStore()
	chatWithWorkflow(store, "c1")
	llm := &stubLLM{replies: []anthropic.Reply{textReply("graph with no edges at all")}}
	o := newTestOrchestrator(store, llm, &stubSearcher{})

	got, err := o.GenerateDiagram(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GenerateDiagram: %v", err)
	}
	if got.Notation != "graph with no edges at all" {
		t.Errorf("notation = %q, want model text preserved", got.Notation)
	}
	if !strings.Contains(got.ArtifactURL, "Could%20not%20generate%20visualization") {
		t.Errorf("artifact URL = %q, want fallback document", got.ArtifactURL)
	}
}

func TestGenerateDiagram_NoWorkflow(t *testing.T) {
	store := newStubStore()
	store.addChat("c1", storage.PhaseDiscovery)
	o := newTestOrchestrator(store, &stubLLM{}, &stubSearcher{})

	if _, err := o.GenerateDiagram(context.Background(), "c1"); !errors.Is(err, ErrMissingWorkflowData) {
		t.Errorf("error = %v, want ErrMissingWorkflowData", err)
	}
}

func TestGenerateDiagram_ChatNotFound(t *testing.T) {
	o := newTestOrchestrator(newStubStore(), &stubLLM{}, &stubSearcher{})
	if _, err := o.GenerateDiagram(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateTitle(t *testing.T) {
	store := newStubStore()
	store.addChat("c1", storage.PhaseDiscovery)
	store.AppendMessage("c1", "user", "we process invoices by hand")
	store.AppendMessage("c1", "assistant", "What triggers an invoice?")
	store.AppendMessage("c1", "user", "mail arrives from vendors")
	llm := &stubLLM{replies: []anthropic.Reply{textReply(`"Invoice Processing"`)}}
	o := newTestOrchestrator(store, llm, &stubSearcher{})

	got, err := o.GenerateTitle(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if got != "Invoice Processing" {
		t.Errorf("title = %q, want quotes stripped", got)
	}

	// Only the user turns feed generation.
	prompt := llm.calls[0].msgs[0].Content[0].Text
	if !strings.Contains(prompt, "we process invoices by hand") || !strings.Contains(prompt, "mail arrives from vendors") {
		t.Errorf("prompt = %q", prompt)
	}
	if strings.Contains(prompt, "What triggers an invoice?") {
		t.Error("assistant turn leaked into title prompt")
	}

	chat, _ := store.GetChat("c1")
	if chat.Title != "Invoice Processing" {
		t.Errorf("stored title = %q", chat.Title)
	}
}

func TestGenerateTitle_FallsBackOnBadResults(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubLLM
	}{
		{"provider failure", &stubLLM{err: errors.New("upstream down")}},
		{"too short", &stubLLM{replies: []anthropic.Reply{textReply("ok")}}},
		{"too long", &stubLLM{replies: []anthropic.Reply{textReply(strings.Repeat("very long title ", 10))}}},
		{"empty", &stubLLM{replies: []anthropic.Reply{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			store.addChat("c1", storage.PhaseDiscovery)
			store.AppendMessage("c1", "user", "we process invoices")
			o := newTestOrchestrator(store, tt.llm, &stubSearcher{})

			got, err := o.GenerateTitle(context.Background(), "c1")
			if err != nil {
				t.Fatalf("GenerateTitle: %v", err)
			}
			if got != DefaultChatTitle {
				t.Errorf("title = %q, want default", got)
			}
		})
	}
}

func TestGenerateTitle_NoUserTurns(t *testing.T) {
	store := newStubStore()
	store.addChat("c1", storage.PhaseDiscovery)
	llm := &stubLLM{}
	o := newTestOrchestrator(store, llm, &stubSearcher{})

	got, err := o.GenerateTitle(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if got != DefaultChatTitle {
		t.Errorf("title = %q, want default", got)
	}
	if llm.callCount() != 0 {
		t.Error("model consulted with nothing to summarize")
	}
}

func TestCreateImplementationPrompt(t *testing.T) {
	llm := &stubLLM{replies: []anthropic.Reply{textReply("Build an OCR pipeline that...")}}
	o := newTestOrchestrator(newStubStore(), llm, &stubSearcher{})

	got := o.CreateImplementationPrompt(context.Background(), "OCR invoice ingestion")
	if got != "Build an OCR pipeline that..." {
		t.Errorf("prompt = %q", got)
	}
	if !strings.Contains(llm.calls[0].msgs[0].Content[0].Text, "OCR invoice ingestion") {
		t.Error("description not embedded in request")
	}
}

func TestCreateImplementationPrompt_Fallback(t *testing.T) {
	o := newTestOrchestrator(newStubStore(), &stubLLM{err: errors.New("upstream down")}, &stubSearcher{})
	if got := o.CreateImplementationPrompt(context.Background(), "anything"); got != implementationPromptFallback {
		t.Errorf("prompt = %q, want fallback", got)
	}
}

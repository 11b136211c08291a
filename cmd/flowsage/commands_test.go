package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/flowsage/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestChatSend(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chats/chat-1/messages": `{"reply":"What triggers the workflow?"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/api/chats/chat-1/messages", map[string]string{
		"content": "we process invoices",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["reply"] != "What triggers the workflow?" {
		t.Errorf("reply = %q", result["reply"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Auth != "Bearer test-token" {
		t.Errorf("request = %+v", r)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["content"] != "we process invoices" {
		t.Errorf("body.content = %q", body["content"])
	}
}

func TestChatList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/chats": `[{"id":"chat-1","title":"Invoice Flow","phase":2,"completed":false}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/api/chats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var chats []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Phase int    `json:"phase"`
	}
	if err := decodeJSON(resp, &chats); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(chats) != 1 || chats[0].Title != "Invoice Flow" || chats[0].Phase != 2 {
		t.Errorf("chats = %+v", chats)
	}
}

func TestDiagramResponse(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chats/chat-1/generate-diagram": `{"mermaidSyntax":"flowchart TD\nA --> B","imageUrl":"data:image/svg+xml,%3Csvg%3E"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/api/chats/chat-1/generate-diagram", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Notation    string `json:"mermaidSyntax"`
		ArtifactURL string `json:"imageUrl"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if !strings.HasPrefix(result.Notation, "flowchart TD") {
		t.Errorf("notation = %q", result.Notation)
	}
	if !strings.HasPrefix(result.ArtifactURL, "data:image/svg+xml,") {
		t.Errorf("artifact URL = %q", result.ArtifactURL)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestAPIClientNoToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = ""

	if _, err := client.get(ctx, "/health"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ts.requests[0].Auth != "" {
		t.Errorf("auth header = %q, want empty when no token configured", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/api/chats")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Anthropic.Model = "claude-sonnet-4-20250514"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
		if k.Key == "anthropic.api_key" || k.Key == "search.api_key" || k.Key == "auth.token" {
			t.Errorf("secret key %s exposed by ShowAll", k.Key)
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

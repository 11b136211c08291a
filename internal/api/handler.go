// Package api exposes the workflow-mapping assistant over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/flowsage/internal/dedupe"
	"github.com/kalambet/flowsage/internal/orchestrator"
	"github.com/kalambet/flowsage/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ChatStore is the persistence surface the HTTP layer reads from. Writes go
// through the conductor.
type ChatStore interface {
	CreateChat(title string) (storage.Chat, error)
	GetChat(id string) (storage.Chat, error)
	ListChats() ([]storage.Chat, error)
	GetMessages(chatID string) ([]storage.Message, error)
}

// Conductor drives conversation turns and the explicit generation
// operations.
type Conductor interface {
	ProcessTurn(ctx context.Context, chatID, userText string) (string, error)
	GenerateDiagram(ctx context.Context, chatID string) (orchestrator.DiagramResult, error)
	GenerateRecommendations(ctx context.Context, chatID string) (string, error)
	GenerateTitle(ctx context.Context, chatID string) (string, error)
	CreateImplementationPrompt(ctx context.Context, description string) string
}

type AppDeps struct {
	Store     ChatStore
	Conductor Conductor
	Token     string // optional; empty disables bearer auth
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/chats", handleCreateChat(deps))
		r.Get("/chats", handleListChats(deps))
		r.Get("/chats/{chatID}", handleGetChat(deps))
		r.Post("/chats/{chatID}/messages", handlePostMessage(deps))
		r.Post("/chats/{chatID}/generate-diagram", handleGenerateDiagram(deps))
		r.Post("/chats/{chatID}/generate-suggestions", handleGenerateSuggestions(deps))
		r.Post("/chats/{chatID}/generate-title", handleGenerateTitle(deps))
		r.Post("/create-implementation-prompt", handleImplementationPrompt(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCreateChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Title string `json:"title"`
		}
		// An empty body is fine; the title defaults.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = orchestrator.DefaultChatTitle
		}

		chat, err := deps.Store.CreateChat(title)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create chat: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(chat)
	}
}

func handleListChats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := deps.Store.ListChats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list chats: %v", err)
			return
		}
		if chats == nil {
			chats = []storage.Chat{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chats)
	}
}

func handleGetChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "chatID")

		chat, err := deps.Store.GetChat(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "chat not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get chat: %v", err)
			return
		}

		messages, err := deps.Store.GetMessages(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get messages: %v", err)
			return
		}
		if messages == nil {
			messages = []storage.Message{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			storage.Chat
			Messages []storage.Message `json:"messages"`
		}{Chat: chat, Messages: messages})
	}
}

func handlePostMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		id := chi.URLParam(r, "chatID")

		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		reply, err := deps.Conductor.ProcessTurn(r.Context(), id, req.Content)
		switch {
		case errors.Is(err, dedupe.ErrDuplicateMessage):
			httpError(w, http.StatusTooManyRequests, "duplicate_message", "duplicate message, please wait before resending")
			return
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "chat not found")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to process message: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	}
}

func handleGenerateDiagram(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "chatID")

		result, err := deps.Conductor.GenerateDiagram(r.Context(), id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "chat not found")
			return
		case errors.Is(err, orchestrator.ErrMissingWorkflowData):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no workflow data found for this chat")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate diagram: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func handleGenerateSuggestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "chatID")

		markdown, err := deps.Conductor.GenerateRecommendations(r.Context(), id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "chat not found")
			return
		case errors.Is(err, orchestrator.ErrMissingWorkflowData):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no workflow data found for this chat")
			return
		case errors.Is(err, orchestrator.ErrEmptyRecommendations):
			httpError(w, http.StatusBadGateway, "api_error", "model produced no recommendations")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate suggestions: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"recommendations": markdown})
	}
}

func handleGenerateTitle(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "chatID")

		title, err := deps.Conductor.GenerateTitle(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate title: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"title": title})
	}
}

func handleImplementationPrompt(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Description) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "description is required")
			return
		}

		prompt := deps.Conductor.CreateImplementationPrompt(r.Context(), req.Description)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"prompt": prompt})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

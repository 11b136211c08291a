package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/flowsage/internal/anthropic"
)

const (
	titleSourceMessages = 6 // fetch this many turns to find the first user turns
	titleSourceUserMax  = 3
	titleMinLen         = 3
	titleMaxLen         = 60
)

// GenerateTitle derives a short chat label from the first user turns and
// persists it. Unreasonable or failed generations fall back to
// DefaultChatTitle; provider failures are absorbed, not propagated.
// Concurrent calls for the same chat coalesce into one generation.
func (o *Orchestrator) GenerateTitle(ctx context.Context, chatID string) (string, error) {
	v, err, _ := o.titles.Do(chatID, func() (any, error) {
		return o.generateTitle(ctx, chatID), nil
	})
	if err != nil {
		return DefaultChatTitle, err
	}
	return v.(string), nil
}

func (o *Orchestrator) generateTitle(ctx context.Context, chatID string) string {
	msgs, err := o.store.GetFirstMessages(chatID, titleSourceMessages)
	if err != nil {
		slog.Warn("loading messages for title generation", "chat_id", chatID, "error", err)
		return DefaultChatTitle
	}

	var userTexts []string
	for _, m := range msgs {
		if m.Role == "user" {
			userTexts = append(userTexts, m.Content)
			if len(userTexts) == titleSourceUserMax {
				break
			}
		}
	}
	if len(userTexts) == 0 {
		return DefaultChatTitle
	}

	content := strings.Join(userTexts, "\n")
	reply, err := o.llm.Complete(ctx, titleSystem, []anthropic.Message{anthropic.TextMessage("user", content)}, anthropic.Options{
		MaxTokens:   50,
		Temperature: 0.7,
	})
	if err != nil {
		slog.Warn("title completion failed", "chat_id", chatID, "error", err)
		return DefaultChatTitle
	}

	title := strings.Trim(strings.TrimSpace(reply.FirstText()), `"'`)
	if len(title) < titleMinLen || len(title) > titleMaxLen {
		slog.Debug("generated title outside acceptable length", "chat_id", chatID, "length", len(title))
		title = DefaultChatTitle
	}

	if err := o.store.SetTitle(chatID, title); err != nil {
		slog.Warn("persisting chat title", "chat_id", chatID, "error", err)
	}
	return title
}

// CreateImplementationPrompt turns an opportunity description into a
// ready-to-paste implementation guidance prompt. Stateless; failures fall
// back to a fixed apology string, matching the user-facing contract.
func (o *Orchestrator) CreateImplementationPrompt(ctx context.Context, description string) string {
	prompt := fmt.Sprintf("Create a detailed implementation prompt for this AI opportunity: %s", description)
	reply, err := o.llm.Complete(ctx, implementationPromptSystem, []anthropic.Message{anthropic.TextMessage("user", prompt)}, anthropic.Options{
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		slog.Warn("implementation prompt completion failed", "error", err)
		return implementationPromptFallback
	}
	if text := reply.FirstText(); text != "" {
		return text
	}
	return implementationPromptFallback
}

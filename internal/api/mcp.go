package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/flowsage/internal/dedupe"
	"github.com/kalambet/flowsage/internal/orchestrator"
	"github.com/kalambet/flowsage/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     ChatStore
	Conductor Conductor
}

const recentChatsLimit = 10

// NewMCPServer creates an MCP server exposing the workflow-mapping
// conversation as tools, plus a recent-chats resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"flowsage",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("flowsage: conversational workflow mapping. Interview, diagram, and AI opportunity analysis."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("start_workflow_chat",
			mcp.WithDescription("Start a new workflow-mapping conversation and return its chat id."),
			mcp.WithString("title", mcp.Description("Optional title for the chat")),
		),
		mcpStartChat(deps),
	)

	s.AddTool(
		mcp.NewTool("map_workflow",
			mcp.WithDescription("Send one message to a workflow-mapping chat and get the assistant's reply. The assistant interviews you about a business workflow until it is fully captured."),
			mcp.WithString("chat_id", mcp.Description("Chat id from start_workflow_chat"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Your message"), mcp.Required()),
		),
		mcpMapWorkflow(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_diagram",
			mcp.WithDescription("Render the captured workflow as a flowchart. Returns Mermaid notation and an inline SVG image URL."),
			mcp.WithString("chat_id", mcp.Description("Chat id of a chat with a confirmed workflow"), mcp.Required()),
		),
		mcpGenerateDiagram(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_recommendations",
			mcp.WithDescription("Analyze the captured workflow and return a markdown table of AI/automation opportunities, grounded in web research."),
			mcp.WithString("chat_id", mcp.Description("Chat id of a chat with a confirmed workflow"), mcp.Required()),
		),
		mcpGenerateRecommendations(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"flowsage://chats/recent",
			"Recent Workflow Chats",
			mcp.WithResourceDescription("Most recently updated workflow chats (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentChats(deps),
	)

	return s
}

func mcpStartChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := req.GetString("title", "")
		if title == "" {
			title = orchestrator.DefaultChatTitle
		}

		chat, err := deps.Store.CreateChat(title)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create chat: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Created chat %s", chat.ID)), nil
	}
}

func mcpMapWorkflow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chatID, err := req.RequireString("chat_id")
		if err != nil {
			return mcpError("chat_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Conductor.ProcessTurn(ctx, chatID, message)
		if err != nil {
			switch {
			case errors.Is(err, dedupe.ErrDuplicateMessage):
				return mcpError("duplicate message, please wait before resending"), nil
			case errors.Is(err, storage.ErrNotFound):
				return mcpError("chat not found"), nil
			}
			return mcpError(fmt.Sprintf("failed to process message: %v", err)), nil
		}

		return mcpText(reply), nil
	}
}

func mcpGenerateDiagram(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chatID, err := req.RequireString("chat_id")
		if err != nil {
			return mcpError("chat_id is required"), nil
		}

		result, err := deps.Conductor.GenerateDiagram(ctx, chatID)
		if err != nil {
			if errors.Is(err, orchestrator.ErrMissingWorkflowData) {
				return mcpError("no workflow data found; finish the mapping interview first"), nil
			}
			return mcpError(fmt.Sprintf("failed to generate diagram: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal diagram: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateRecommendations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chatID, err := req.RequireString("chat_id")
		if err != nil {
			return mcpError("chat_id is required"), nil
		}

		markdown, err := deps.Conductor.GenerateRecommendations(ctx, chatID)
		if err != nil {
			if errors.Is(err, orchestrator.ErrMissingWorkflowData) {
				return mcpError("no workflow data found; finish the mapping interview first"), nil
			}
			return mcpError(fmt.Sprintf("failed to generate recommendations: %v", err)), nil
		}

		return mcpText(markdown), nil
	}
}

func mcpResourceRecentChats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		chats, err := deps.Store.ListChats()
		if err != nil {
			return nil, fmt.Errorf("failed to list chats: %w", err)
		}
		if len(chats) > recentChatsLimit {
			chats = chats[:recentChatsLimit]
		}

		type chatSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Phase     string `json:"phase"`
			Completed bool   `json:"completed"`
			UpdatedAt string `json:"updated_at"`
		}

		summaries := make([]chatSummary, len(chats))
		for i, c := range chats {
			title := c.Title
			if utf8.RuneCountInString(title) > 200 {
				runes := []rune(title)
				title = string(runes[:200]) + "..."
			}
			summaries[i] = chatSummary{
				ID:        c.ID,
				Title:     title,
				Phase:     c.Phase.String(),
				Completed: c.Completed,
				UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

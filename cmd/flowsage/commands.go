package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/flowsage/internal/config"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Manage workflow-mapping chats",
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new workflow chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{}
		if title != "" {
			body["title"] = title
		}
		resp, err := client.post(cmd.Context(), "/api/chats", body)
		if err != nil {
			return err
		}

		var chat struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &chat); err != nil {
			return err
		}

		printSuccess("Created chat %s (%s)", chat.ID, chat.Title)
		return nil
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflow chats, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/chats")
		if err != nil {
			return err
		}

		var chats []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Phase     int    `json:"phase"`
			Completed bool   `json:"completed"`
		}
		if err := decodeJSON(resp, &chats); err != nil {
			return err
		}

		if len(chats) == 0 {
			fmt.Println("No chats found.")
			return nil
		}

		for _, c := range chats {
			state := fmt.Sprintf("phase %d", c.Phase)
			if c.Completed {
				state = "completed"
			}
			fmt.Printf("%s  %-12s  %s\n", colorize(colorCyan, c.ID[:8]), state, c.Title)
		}
		return nil
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <chat-id> <message>",
	Short: "Send a message to a workflow chat",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID := args[0]
		message := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chats/"+url.PathEscape(chatID)+"/messages", map[string]string{
			"content": message,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["reply"])
		return nil
	},
}

var chatDiagramCmd = &cobra.Command{
	Use:   "diagram <chat-id>",
	Short: "Generate a flowchart for the chat's captured workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chats/"+url.PathEscape(args[0])+"/generate-diagram", nil)
		if err != nil {
			return err
		}

		var result struct {
			Notation    string `json:"mermaidSyntax"`
			ArtifactURL string `json:"imageUrl"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Notation)

		if output != "" {
			svg, err := url.PathUnescape(strings.TrimPrefix(result.ArtifactURL, "data:image/svg+xml,"))
			if err != nil {
				return fmt.Errorf("decoding diagram artifact: %w", err)
			}
			if err := os.WriteFile(output, []byte(svg), 0o644); err != nil {
				return fmt.Errorf("writing diagram: %w", err)
			}
			printSuccess("Diagram written to %s", output)
		}
		return nil
	},
}

var chatSuggestCmd = &cobra.Command{
	Use:   "suggest <chat-id>",
	Short: "Research AI opportunities for the chat's captured workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one chat id")
		}

		printStep("Analyzing workflow and researching opportunities...")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chats/"+url.PathEscape(args[0])+"/generate-suggestions", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["recommendations"])
		return nil
	},
}

var chatTitleCmd = &cobra.Command{
	Use:   "title <chat-id>",
	Short: "Generate a short title for a chat from its first messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chats/"+url.PathEscape(args[0])+"/generate-title", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["title"])
		return nil
	},
}

func init() {
	chatNewCmd.Flags().String("title", "", "title for the new chat")
	chatDiagramCmd.Flags().String("output", "", "write the rendered SVG to this file")

	chatCmd.AddCommand(chatNewCmd)
	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatDiagramCmd)
	chatCmd.AddCommand(chatSuggestCmd)
	chatCmd.AddCommand(chatTitleCmd)
}

// --- prompt ---

var promptCmd = &cobra.Command{
	Use:   "prompt <opportunity description>",
	Short: "Turn an opportunity description into an implementation prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/create-implementation-prompt", map[string]string{
			"description": description,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["prompt"])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret in the platform secret store",
	Long: fmt.Sprintf("Store a secret in the platform secret store.\n\nValid keys: %s",
		strings.Join(config.SecretKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetSecret(key, value); err != nil {
			return err
		}

		printSuccess("Stored secret %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}

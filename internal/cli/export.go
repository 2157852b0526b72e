package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/archive"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <jid>",
	Short: "Export chat history",
	Long: `Export every archived message of a chat, oldest first, as JSON.

Writes to stdout unless --output is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}

// Export is the document written by the export command.
type Export struct {
	JID          string          `json:"jid"`
	Name         string          `json:"name"`
	MessageCount int             `json:"message_count"`
	Messages     []store.Message `json:"messages"`
}

func runExport(cmd *cobra.Command, args []string) error {
	jid := args[0]

	return WithArchive(func(ctx context.Context, app *App) error {
		chat, err := app.Archive.GetChat(ctx, jid, false)
		if err != nil {
			return fmt.Errorf("failed to get chat: %w", err)
		}

		data, msgs, err := exportChat(ctx, app.Archive, chat)
		if err != nil {
			return err
		}

		if exportOutput == "" {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		return OutputResult(cmd, map[string]any{
			"jid":           jid,
			"message_count": len(msgs),
			"output":        exportOutput,
		}, fmt.Sprintf("Exported %d messages to %s", len(msgs), exportOutput))
	})
}

// exportChat renders the whole history of chat as an indented Export
// document. A storage failure part way through fails the export.
func exportChat(ctx context.Context, svc *archive.Service, chat *store.Chat) ([]byte, []store.Message, error) {
	msgs, err := svc.ChatHistory(ctx, chat.JID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read history: %w", err)
	}
	doc := Export{JID: chat.JID, Name: chat.DisplayName(), MessageCount: len(msgs), Messages: msgs}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal: %w", err)
	}
	return data, msgs, nil
}

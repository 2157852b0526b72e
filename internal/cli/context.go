package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	contextChat   string
	contextBefore int
	contextAfter  int
)

var contextCmd = &cobra.Command{
	Use:   "context <msg-id>",
	Short: "Show the messages around a message",
	Long: `Show a message with the messages sent just before and after it in the
same chat.

Message IDs are only unique within a chat; pass --chat to pick one when the
same ID appears in several chats. Without it the most recent match is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVar(&contextChat, "chat", "", "Chat JID the message belongs to")
	contextCmd.Flags().IntVar(&contextBefore, "before", 5, "Messages before the target")
	contextCmd.Flags().IntVar(&contextAfter, "after", 5, "Messages after the target")
}

func runContext(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		mc, err := app.Archive.GetContext(ctx, args[0], contextChat, contextBefore, contextAfter)
		if err != nil {
			return fmt.Errorf("failed to get message context: %w", err)
		}
		return OutputText(cmd, mc, app.Formatter().Context(ctx, mc))
	})
}

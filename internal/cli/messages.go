package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/archive"
)

var (
	messagesChat          string
	messagesSender        string
	messagesQuery         string
	messagesBefore        string
	messagesAfter         string
	messagesTimeframe     string
	messagesLimit         int
	messagesPage          int
	messagesContext       bool
	messagesContextBefore int
	messagesContextAfter  int
)

var messagesCmd = &cobra.Command{
	Use:   "messages [chat-jid]",
	Short: "List messages",
	Long: `List messages newest first, optionally filtered by chat, sender,
content and time.

Use 'whatsapp-archive chats' to find a chat JID first. With --context every
match is replaced by the surrounding messages from its chat.

Timeframe presets: ` + timeframeNames(),
	Args: cobra.MaximumNArgs(1),
	RunE: runMessages,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search message content",
	Long: `Search messages for a case-insensitive substring.

Accepts the same filters as 'messages'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var lastCmd = &cobra.Command{
	Use:   "last <jid>",
	Short: "Show the last message exchanged with a contact",
	Args:  cobra.ExactArgs(1),
	RunE:  runLast,
}

func init() {
	rootCmd.AddCommand(messagesCmd, searchCmd, lastCmd)
	for _, c := range []*cobra.Command{messagesCmd, searchCmd} {
		c.Flags().StringVar(&messagesChat, "chat", "", "Limit to a chat JID")
		c.Flags().StringVar(&messagesSender, "sender", "", "Limit to a sender phone number or JID")
		c.Flags().StringVar(&messagesBefore, "before", "", "Messages before timestamp (ISO-8601)")
		c.Flags().StringVar(&messagesAfter, "after", "", "Messages after timestamp (ISO-8601)")
		c.Flags().StringVar(&messagesTimeframe, "timeframe", "", "Timeframe preset (today, yesterday, this_week, ...)")
		c.Flags().IntVar(&messagesLimit, "limit", archive.DefaultLimit, "Maximum number of messages")
		c.Flags().IntVar(&messagesPage, "page", 0, "Page number (0-based)")
		c.Flags().BoolVar(&messagesContext, "context", false, "Include surrounding messages for each match")
		c.Flags().IntVar(&messagesContextBefore, "context-before", archive.DefaultContextBefore, "Messages before each match with --context")
		c.Flags().IntVar(&messagesContextAfter, "context-after", archive.DefaultContextAfter, "Messages after each match with --context")
	}
	messagesCmd.Flags().StringVar(&messagesQuery, "query", "", "Filter by content substring")
}

func runMessages(cmd *cobra.Command, args []string) error {
	chat := messagesChat
	if len(args) == 1 {
		chat = args[0]
	}
	return listMessages(cmd, chat, messagesQuery)
}

func runSearch(cmd *cobra.Command, args []string) error {
	return listMessages(cmd, messagesChat, args[0])
}

func listMessages(cmd *cobra.Command, chat, query string) error {
	after, before := messagesAfter, messagesBefore
	if messagesTimeframe != "" {
		var err error
		after, before, err = ParseTimeframe(messagesTimeframe)
		if err != nil {
			return err
		}
	}

	return WithArchive(func(ctx context.Context, app *App) error {
		msgs, err := app.Archive.ListMessages(ctx, archive.MessageFilter{
			After:          after,
			Before:         before,
			Sender:         messagesSender,
			ChatJID:        chat,
			Query:          query,
			Limit:          messagesLimit,
			Page:           messagesPage,
			IncludeContext: messagesContext,
			ContextBefore:  messagesContextBefore,
			ContextAfter:   messagesContextAfter,
		})
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		return OutputText(cmd, msgs, app.Formatter().Messages(ctx, msgs))
	})
}

func runLast(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		m, err := app.Archive.LastInteraction(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get last interaction: %w", err)
		}
		return OutputText(cmd, m, app.Formatter().Message(ctx, *m))
	})
}

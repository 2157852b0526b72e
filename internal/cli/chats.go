package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/archive"
)

var (
	chatsQuery  string
	chatsLimit  int
	chatsPage   int
	chatsSort   string
	chatsNoLast bool
	chatsCount  bool

	chatNoLast bool
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats",
	Long: `List chats from the archive, most recently active first.

Use --query to filter by name or JID, --sort name for alphabetical order.
Returns JIDs that can be used with other commands.`,
	Args: cobra.NoArgs,
	RunE: runChats,
}

var chatCmd = &cobra.Command{
	Use:   "chat <jid>",
	Short: "Show a single chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatsCmd, chatCmd)
	chatsCmd.Flags().StringVar(&chatsQuery, "query", "", "Filter by chat name or JID")
	chatsCmd.Flags().IntVar(&chatsLimit, "limit", archive.DefaultLimit, "Maximum number of chats")
	chatsCmd.Flags().IntVar(&chatsPage, "page", 0, "Page number (0-based)")
	chatsCmd.Flags().StringVar(&chatsSort, "sort", "last_active", "Sort order: last_active, name")
	chatsCmd.Flags().BoolVar(&chatsNoLast, "no-last-message", false, "Omit the last message preview")
	chatsCmd.Flags().BoolVar(&chatsCount, "count", false, "Print the number of matching chats only")

	chatCmd.Flags().BoolVar(&chatNoLast, "no-last-message", false, "Omit the last message preview")
}

func runChats(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		if chatsCount {
			n, err := app.Archive.CountChats(ctx, chatsQuery)
			if err != nil {
				return fmt.Errorf("failed to count chats: %w", err)
			}
			return OutputResult(cmd, map[string]int{"chats": n}, fmt.Sprintf("%d chats", n))
		}

		chats, err := app.Archive.ListChats(ctx, archive.ChatFilter{
			Query:              chatsQuery,
			Limit:              chatsLimit,
			Page:               chatsPage,
			SortBy:             chatsSort,
			IncludeLastMessage: !chatsNoLast,
		})
		if err != nil {
			return fmt.Errorf("failed to list chats: %w", err)
		}
		return Output(cmd, chats)
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		chat, err := app.Archive.GetChat(ctx, args[0], !chatNoLast)
		if err != nil {
			return fmt.Errorf("failed to get chat: %w", err)
		}
		return Output(cmd, chat)
	})
}

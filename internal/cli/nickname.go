package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var nicknameCmd = &cobra.Command{
	Use:   "nickname",
	Short: "Manage local nicknames for contacts",
	Long: `Manage nicknames that override every other source of a contact's name.

Nicknames are stored in the archive's own table inside messages.db and are
never sent to WhatsApp.

Examples:
  whatsapp-archive nickname list
  whatsapp-archive nickname set 1234567890@s.whatsapp.net "John"
  whatsapp-archive nickname get 1234567890@s.whatsapp.net
  whatsapp-archive nickname remove 1234567890@s.whatsapp.net`,
}

var nicknameSetCmd = &cobra.Command{
	Use:   "set <jid> <nickname>",
	Short: "Set a nickname",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runNicknameSet,
}

var nicknameGetCmd = &cobra.Command{
	Use:   "get <jid>",
	Short: "Show a nickname",
	Args:  cobra.ExactArgs(1),
	RunE:  runNicknameGet,
}

var nicknameRemoveCmd = &cobra.Command{
	Use:     "remove <jid>",
	Aliases: []string{"rm"},
	Short:   "Remove a nickname",
	Args:    cobra.ExactArgs(1),
	RunE:    runNicknameRemove,
}

var nicknameListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List nicknames",
	Args:    cobra.NoArgs,
	RunE:    runNicknameList,
}

func init() {
	rootCmd.AddCommand(nicknameCmd)
	nicknameCmd.AddCommand(nicknameSetCmd, nicknameGetCmd, nicknameRemoveCmd, nicknameListCmd)
}

func runNicknameSet(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		res, err := app.Archive.SetNickname(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("failed to set nickname: %w", err)
		}
		return OutputResult(cmd, res, res.Message)
	})
}

func runNicknameGet(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		nick, ok, err := app.Archive.Nickname(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get nickname: %w", err)
		}
		if !ok {
			return OutputResult(cmd, map[string]any{"jid": args[0], "nickname": nil},
				fmt.Sprintf("No nickname set for %s", args[0]))
		}
		return OutputResult(cmd, map[string]any{"jid": args[0], "nickname": nick}, nick)
	})
}

func runNicknameRemove(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		res, err := app.Archive.RemoveNickname(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to remove nickname: %w", err)
		}
		return OutputResult(cmd, res, res.Message)
	})
}

func runNicknameList(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		list, err := app.Archive.ListNicknames(ctx)
		if err != nil {
			return fmt.Errorf("failed to list nicknames: %w", err)
		}
		return Output(cmd, list)
	})
}

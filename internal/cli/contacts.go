package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/archive"
	"github.com/eddmann/whatsapp-archive/internal/format"
	"github.com/eddmann/whatsapp-archive/internal/resolve"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

var (
	contactsLimit     int
	contactChatsLimit int
	contactChatsPage  int
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List and look up contacts",
	Long: `List contacts from the session store, named ones first.

Names come from, in order: your nicknames, the session store's contact
names, then chat names in the archive.`,
	Args: cobra.NoArgs,
	RunE: runContactsList,
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	Args:  cobra.NoArgs,
	RunE:  runContactsList,
}

var contactsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search contacts by name, nickname or phone number",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactsSearch,
}

var contactsShowCmd = &cobra.Command{
	Use:   "show <jid>",
	Short: "Show everything known about a contact",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactsShow,
}

var contactsPhoneCmd = &cobra.Command{
	Use:   "phone <number>",
	Short: "Find a contact by phone number",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactsPhone,
}

var contactsChatsCmd = &cobra.Command{
	Use:   "chats <jid>",
	Short: "List the chats a contact takes part in",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactsChats,
}

var contactsDirectCmd = &cobra.Command{
	Use:   "direct <phone>",
	Short: "Show the direct chat with a phone number",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactsDirect,
}

func init() {
	rootCmd.AddCommand(contactsCmd)
	contactsCmd.AddCommand(contactsListCmd, contactsSearchCmd, contactsShowCmd, contactsPhoneCmd, contactsChatsCmd, contactsDirectCmd)

	for _, c := range []*cobra.Command{contactsCmd, contactsListCmd} {
		c.Flags().IntVar(&contactsLimit, "limit", resolve.DefaultContactLimit, "Maximum number of contacts")
	}
	contactsChatsCmd.Flags().IntVar(&contactChatsLimit, "limit", archive.DefaultLimit, "Maximum number of chats")
	contactsChatsCmd.Flags().IntVar(&contactChatsPage, "page", 0, "Page number (0-based)")
}

func runContactsList(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		contacts, err := app.Archive.ListAllContacts(ctx, contactsLimit)
		if err != nil {
			return fmt.Errorf("failed to list contacts: %w", err)
		}
		return OutputText(cmd, contacts, format.Contacts(contacts))
	})
}

func runContactsSearch(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		contacts, err := app.Archive.SearchContacts(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to search contacts: %w", err)
		}
		return OutputText(cmd, contacts, format.Contacts(contacts))
	})
}

func runContactsShow(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		c, err := app.Archive.ResolveContact(ctx, args[0])
		return outputContact(cmd, c, err, args[0])
	})
}

func runContactsPhone(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		c, err := app.Archive.ResolveByPhone(ctx, args[0])
		return outputContact(cmd, c, err, args[0])
	})
}

func outputContact(cmd *cobra.Command, c *store.Contact, err error, id string) error {
	if err != nil {
		return fmt.Errorf("failed to resolve contact: %w", err)
	}
	if c == nil {
		return fmt.Errorf("contact %s: %w", id, store.ErrNotFound)
	}
	return OutputText(cmd, c, format.Contact(*c))
}

func runContactsChats(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		chats, err := app.Archive.ContactChats(ctx, args[0], contactChatsLimit, contactChatsPage)
		if err != nil {
			return fmt.Errorf("failed to list contact chats: %w", err)
		}
		return Output(cmd, chats)
	})
}

func runContactsDirect(cmd *cobra.Command, args []string) error {
	return WithArchive(func(ctx context.Context, app *App) error {
		chat, err := app.Archive.GetDirectChatByContact(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to find direct chat: %w", err)
		}
		return Output(cmd, chat)
	})
}

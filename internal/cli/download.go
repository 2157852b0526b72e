package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/bridge"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

var downloadChat string

var downloadCmd = &cobra.Command{
	Use:   "download <msg-id>",
	Short: "Download media from a message",
	Long: `Ask the bridge to download the media (image, video, audio, document)
attached to an archived message and print where it was saved.

Pass --chat when the message ID appears in more than one chat.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVar(&downloadChat, "chat", "", "Chat JID the message belongs to")
}

func runDownload(cmd *cobra.Command, args []string) error {
	var msg *store.Message
	err := WithArchive(func(ctx context.Context, app *App) error {
		var err error
		msg, err = app.Archive.MediaMessage(ctx, args[0], downloadChat)
		return err
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	return WithBridge(func(ctx context.Context, client *bridge.Client) error {
		res, err := client.DownloadMedia(ctx, msg.ID, msg.ChatJID)
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		human := res.Message
		if res.Success {
			human = fmt.Sprintf("Downloaded %s to %s", *msg.MediaType, res.Path)
		}
		if err := OutputResult(cmd, res, human); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("download failed: %s", res.Message)
		}
		return nil
	})
}

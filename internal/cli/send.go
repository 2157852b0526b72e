package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/bridge"
)

var (
	sendFile  string
	sendAudio string
)

var sendCmd = &cobra.Command{
	Use:   "send <recipient> [message]",
	Short: "Send a message through the bridge",
	Long: `Send a text message, file or voice message through the WhatsApp bridge.

The recipient is a phone number with country code and no '+', or a JID.
Audio passed with --audio is converted to Ogg Opus with ffmpeg when needed.

Examples:
  whatsapp-archive send 1234567890 "Hello!"
  whatsapp-archive send 1234567890@s.whatsapp.net --file photo.jpg
  whatsapp-archive send 123456789-123456@g.us --audio note.mp3`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return errors.New("requires at least 1 arg (recipient)")
		}
		if sendFile != "" && sendAudio != "" {
			return errors.New("--file and --audio cannot be combined")
		}
		if sendFile == "" && sendAudio == "" && len(args) < 2 {
			return errors.New("requires 2 args (recipient and message)")
		}
		return nil
	},
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendFile, "file", "", "Send a file (image, video, audio, document)")
	sendCmd.Flags().StringVar(&sendAudio, "audio", "", "Send an audio file as a voice message")
}

func runSend(cmd *cobra.Command, args []string) error {
	recipient := args[0]
	message := strings.Join(args[1:], " ")

	return WithBridge(func(ctx context.Context, client *bridge.Client) error {
		var res bridge.SendResult
		var err error
		switch {
		case sendFile != "":
			res, err = client.SendFile(ctx, recipient, sendFile)
		case sendAudio != "":
			res, err = client.SendAudio(ctx, recipient, sendAudio)
		default:
			res, err = client.SendMessage(ctx, recipient, message)
		}
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		if err := OutputResult(cmd, res, res.Message); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("send failed: %s", res.Message)
		}
		return nil
	})
}

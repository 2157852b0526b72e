// Package bridge talks to the WhatsApp bridge's REST API for the operations
// the archive cannot perform itself: sending messages and fetching media.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/eddmann/whatsapp-archive/internal/jid"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

// DefaultBaseURL is where the bridge listens by default.
const DefaultBaseURL = "http://localhost:8080/api"

// Client is a bridge API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	convert    func(ctx context.Context, path string) (string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithConverter replaces the ffmpeg audio conversion.
func WithConverter(fn func(ctx context.Context, path string) (string, error)) Option {
	return func(c *Client) { c.convert = fn }
}

// New creates a client for the bridge at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        zerolog.Nop(),
		convert:    ConvertToOpusOgg,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendResult is the bridge's reply to a send request.
type SendResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	Kind      string `json:"kind,omitempty"`
}

// DownloadResult is the bridge's reply to a download request.
type DownloadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, recipient, text string) (SendResult, error) {
	to, err := parseRecipient(recipient)
	if err != nil {
		return SendResult{Message: err.Error()}, err
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("message text is required: %w", store.ErrInvalidArgument)
		return SendResult{Message: err.Error()}, err
	}
	return c.send(ctx, to, map[string]string{"recipient": to, "message": text}, "text")
}

// SendFile sends an image, video, audio file or document.
func (c *Client) SendFile(ctx context.Context, recipient, path string) (SendResult, error) {
	to, err := parseRecipient(recipient)
	if err != nil {
		return SendResult{Message: err.Error()}, err
	}
	if err := checkFile(path); err != nil {
		return SendResult{Message: err.Error()}, err
	}
	kind, _ := Classify(path)
	return c.send(ctx, to, map[string]string{"recipient": to, "media_path": path}, kind)
}

// SendAudio sends a voice message. Files that are not Ogg/Opus are
// converted first and the converted copy is removed afterwards.
func (c *Client) SendAudio(ctx context.Context, recipient, path string) (SendResult, error) {
	to, err := parseRecipient(recipient)
	if err != nil {
		return SendResult{Message: err.Error()}, err
	}
	if err := checkFile(path); err != nil {
		return SendResult{Message: err.Error()}, err
	}

	if !IsOgg(path) {
		converted, err := c.convert(ctx, path)
		if err != nil {
			msg := fmt.Sprintf("error converting file to opus ogg, ffmpeg may be missing: %v", err)
			return SendResult{Message: msg}, fmt.Errorf("convert audio: %w", err)
		}
		defer func() { _ = os.Remove(converted) }()
		c.log.Debug().Str("from", path).Str("to", converted).Msg("converted audio")
		path = converted
	}
	return c.send(ctx, to, map[string]string{"recipient": to, "media_path": path}, KindAudio)
}

// DownloadMedia asks the bridge to fetch the media of a stored message and
// returns the local path it was saved to.
func (c *Client) DownloadMedia(ctx context.Context, messageID, chatJID string) (DownloadResult, error) {
	if messageID == "" || chatJID == "" {
		err := fmt.Errorf("message id and chat jid are required: %w", store.ErrInvalidArgument)
		return DownloadResult{Message: err.Error()}, err
	}
	body, err := c.post(ctx, "/download", map[string]string{"message_id": messageID, "chat_jid": chatJID})
	if err != nil {
		return DownloadResult{Message: err.Error()}, err
	}
	res := DownloadResult{
		Success: gjson.GetBytes(body, "success").Bool(),
		Message: gjson.GetBytes(body, "message").String(),
		Path:    gjson.GetBytes(body, "path").String(),
	}
	c.log.Debug().Bool("success", res.Success).Str("path", res.Path).Msg("download")
	return res, nil
}

// Reachable reports whether anything answers HTTP at the bridge address.
// Any status code counts; only transport failures are errors.
func (c *Client) Reachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) send(ctx context.Context, to string, payload map[string]string, kind string) (SendResult, error) {
	body, err := c.post(ctx, "/send", payload)
	if err != nil {
		return SendResult{Message: err.Error(), Recipient: to, Kind: kind}, err
	}
	msg := gjson.GetBytes(body, "message")
	res := SendResult{
		Success:   gjson.GetBytes(body, "success").Bool(),
		Message:   msg.String(),
		Recipient: to,
		Kind:      kind,
	}
	if !msg.Exists() {
		res.Message = "Unknown response"
	}
	c.log.Debug().Str("recipient", to).Str("kind", kind).Bool("success", res.Success).Msg("send")
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge error: HTTP %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("error parsing response: %s", body)
	}
	return body, nil
}

// parseRecipient accepts a phone number (optionally with a leading +) or a
// full JID and returns the form the bridge expects.
func parseRecipient(recipient string) (string, error) {
	recipient = strings.TrimPrefix(strings.TrimSpace(recipient), "+")
	if recipient == "" {
		return "", fmt.Errorf("recipient must be provided: %w", store.ErrInvalidArgument)
	}
	j, err := jid.Parse(recipient)
	if err != nil || j.User == "" {
		return "", fmt.Errorf("invalid recipient %q: %w", recipient, store.ErrInvalidArgument)
	}
	if !jid.HasServer(recipient) {
		if strings.IndexFunc(recipient, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			return "", fmt.Errorf("invalid phone number %q: %w", recipient, store.ErrInvalidArgument)
		}
		return recipient, nil
	}
	return j.String(), nil
}

func checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("media path must be provided: %w", store.ErrInvalidArgument)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("media file not found: %s: %w", path, store.ErrInvalidArgument)
	}
	return nil
}

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/config"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramClient posts chat messages through the Telegram Bot API.
type TelegramClient struct {
	apiBase    string
	botToken   string
	chatID     string
	threadID   string
	httpClient *http.Client
}

func NewTelegramClient(cfg config.TelegramConfig, timeout time.Duration) *TelegramClient {
	base := cfg.APIBase
	if base == "" {
		base = DefaultTelegramAPI
	}
	return &TelegramClient{
		apiBase:    base,
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		threadID:   cfg.ThreadID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FormatMessage renders a chat message as Telegram HTML. Node names come off
// the mesh too, so both parts are escaped.
func FormatMessage(from, message string) string {
	return fmt.Sprintf("<strong>%s</strong> says\n<blockquote>%s</blockquote>", html.EscapeString(from), html.EscapeString(message))
}

type sendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	MessageThreadID string `json:"message_thread_id,omitempty"`
	ParseMode       string `json:"parse_mode"`
}

// Send posts one message.
func (c *TelegramClient) Send(ctx context.Context, from, message string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:          c.chatID,
		Text:            FormatMessage(from, message),
		MessageThreadID: c.threadID,
		ParseMode:       "HTML",
	})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error would repeat the bot token from the URL
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telegram API error: %s", string(data))
	}
	return nil
}

// Deliver implements Deliverer for queued chat jobs.
func (c *TelegramClient) Deliver(ctx context.Context, payload []byte) error {
	var job chatJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode chat job: %w", err)
	}
	return c.Send(ctx, job.From, job.Message)
}

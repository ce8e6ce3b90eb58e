package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const DefaultTelegramAPIURL = "https://api.telegram.org"

type TelegramConfig struct {
	BotToken string
	APIURL   string // defaults to DefaultTelegramAPIURL
	Timeout  time.Duration
}

// TelegramNotifier delivers text messages through the Telegram Bot API
// sendMessage method. It makes exactly one request per Send.
type TelegramNotifier struct {
	config TelegramConfig
	client *http.Client
}

type telegramSendMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegramNotifier(config TelegramConfig) (*TelegramNotifier, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if config.APIURL == "" {
		config.APIURL = DefaultTelegramAPIURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = config.Timeout

	return &TelegramNotifier{config: config, client: client}, nil
}

func (t *TelegramNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("telegram notification requires a chat id")
	}

	text := notification.Body
	if noticeTemplate.Text != "" {
		rendered, err := renderText(noticeTemplate.Text, notification.Data)
		if err != nil {
			slog.Error("Failed to render telegram template", "err", err)
			return err
		}
		text = rendered
	}
	if text == "" {
		return fmt.Errorf("telegram notification has no text")
	}

	payload, err := json.Marshal(telegramSendMessage{ChatID: notification.To, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.config.APIURL, "/"), t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL carries the bot token, so only log the cause.
		slog.Error("Telegram request failed", "notice", noticeType, "err", redactToken(err.Error(), t.config.BotToken))
		return fmt.Errorf("telegram request failed: %s", redactToken(err.Error(), t.config.BotToken))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var result telegramResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK || !result.Ok {
		slog.Error("Telegram rejected message", "notice", noticeType, "status", resp.StatusCode, "description", result.Description)
		return fmt.Errorf("telegram sendMessage failed: status %d: %s", resp.StatusCode, result.Description)
	}

	slog.Info("Telegram message sent", "notice", noticeType, "chat_id", notification.To)
	return nil
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}

package notifier

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// DefaultAPIBase is the Telegram Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// TelegramNotifier talks to one bot and one chat.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string

	http *resty.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
// The client timeout outlasts the 30s long-poll window.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	c := resty.New().SetTimeout(40 * time.Second)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  DefaultAPIBase,
		http:     c,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	base := t.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(base, "/"), t.BotToken, method)
}

// Send posts an HTML-formatted message to the configured chat.
// Text past the Telegram limit is cut with an ellipsis.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > maxMessageRunes {
		text = string(r[:maxMessageRunes-1]) + "…"
	}
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":                  t.ChatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}).
		Post(t.endpoint("sendMessage"))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return apiError(resp)
}

// apiError reports a non-200 status or an explicit "ok": false.
func apiError(resp *resty.Response) error {
	body := resp.Body()
	ok := gjson.GetBytes(body, "ok")
	if resp.StatusCode() == http.StatusOK && (!ok.Exists() || ok.Bool()) {
		return nil
	}
	desc := gjson.GetBytes(body, "description").String()
	if desc == "" {
		desc = truncate(string(body), 200)
	}
	return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode(), desc)
}

// SendWithRetry retries Send with exponential backoff (1s, 2s, 4s, ...).
// No wait follows the last attempt.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = t.Send(ctx, text)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Second << uint(attempt)
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", attempt+1, maxRetries+1, lastErr, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

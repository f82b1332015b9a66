package notifier

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"quantdash/internal/trace"
)

// CommandHandler answers one chat command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

const (
	pollWindow  = 30 // seconds, server-side long-poll timeout
	pollBackoff = 5 * time.Second
)

// StartPolling long-polls getUpdates and hands each text message to handler.
// Messages from chats other than ChatID are ignored. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	var offset int64
	for {
		if ctx.Err() != nil {
			log.Println("[INFO] Telegram polling stopped")
			return
		}

		resp, err := t.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"offset":  strconv.FormatInt(offset, 10),
				"timeout": strconv.Itoa(pollWindow),
			}).
			Get(t.endpoint("getUpdates"))
		if err != nil {
			if ctx.Err() != nil {
				log.Println("[INFO] Telegram polling stopped")
				return
			}
			log.Printf("[WARN] polling request failed: %v", err)
			sleep(ctx, pollBackoff)
			continue
		}
		if err := apiError(resp); err != nil || !gjson.GetBytes(resp.Body(), "ok").Bool() {
			log.Printf("[WARN] bad polling response: %v", err)
			sleep(ctx, pollBackoff)
			continue
		}

		for _, update := range gjson.GetBytes(resp.Body(), "result").Array() {
			offset = update.Get("update_id").Int() + 1
			text := strings.TrimSpace(update.Get("message.text").String())
			if text == "" {
				continue
			}
			if chat := update.Get("message.chat.id").String(); chat != t.ChatID {
				log.Printf("[WARN] ignoring message from chat %s", chat)
				continue
			}
			t.dispatch(ctx, handler, text)
		}
	}
}

func (t *TelegramNotifier) dispatch(ctx context.Context, handler CommandHandler, text string) {
	ctx = trace.Ensure(ctx)
	trace.Logf(ctx, "[INFO] received command: %s", text)
	reply := handler(ctx, text)
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		trace.Logf(ctx, "[ERROR] send reply: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

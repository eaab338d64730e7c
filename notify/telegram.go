// Package notify sends fire-and-forget text alerts. Delivery failures are
// logged and never block or fail a trading decision.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier is the alert channel consumed by the gate and the monitor.
type Notifier interface {
	Send(text string)
}

// Telegram posts messages to the Telegram bot API.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	log    *zap.Logger
}

// NewTelegram builds a notifier. An empty token disables sending; the
// notifier still accepts messages and drops them silently.
func NewTelegram(log *zap.Logger, token, chatID string) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Send delivers the message best-effort.
func (t *Telegram) Send(text string) {
	if t.token == "" || t.chatID == "" {
		return
	}

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.log.Error("marshal alert payload", zap.Error(err))
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		t.log.Warn("alert delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		t.log.Warn("alert delivery rejected", zap.Int("status", resp.StatusCode))
	}
}

// Nop discards all messages. Used in tests and when alerts are not configured.
type Nop struct{}

func (Nop) Send(string) {}

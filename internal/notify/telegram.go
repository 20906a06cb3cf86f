package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Sender is the interface that each chat channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a message to the configured chat using the sendMessage API.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	// Plain text: error strings in the message are not Markdown-safe.
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    title + "\n" + message,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

// ChatSink renders events with Describe and hands them to a Sender,
// pacing sends with a rate limiter.
type ChatSink struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewChatSink creates a ChatSink. A nil limiter sends without pacing.
func NewChatSink(sender Sender, limiter *rate.Limiter, logger *slog.Logger) *ChatSink {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &ChatSink{
		sender:  sender,
		limiter: limiter,
		logger:  logger.With("component", "chat", "sender", sender.Name()),
	}
}

// Report sends ev; failures are logged.
func (s *ChatSink) Report(ctx context.Context, ev Event) {
	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.WarnContext(ctx, "notification not sent", "kind", string(ev.Kind), "error", err)
		return
	}
	title, message := Describe(ev)
	if err := s.sender.Send(ctx, title, message); err != nil {
		s.logger.WarnContext(ctx, "sender failed", "error", err)
	}
}

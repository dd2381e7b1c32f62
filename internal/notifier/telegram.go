package notifier

import (
	"context"
	"fmt"

	"github.com/pfrederiksen/umami-report/internal/telegram"
)

// MessageSender is the part of the Telegram client the notifier needs.
type MessageSender interface {
	SendMessage(text string) error
}

// TelegramNotifier posts digests to a Telegram chat
type TelegramNotifier struct {
	sender MessageSender
	limit  int
}

// NewTelegramNotifier creates a notifier sending through sender
func NewTelegramNotifier(sender MessageSender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, limit: telegram.MaxMessageLength}
}

// Notify sends message, split into as many Telegram messages as needed, in
// order. It stops at the first failure.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	chunks := telegram.Split(message, n.limit)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.sender.SendMessage(chunk); err != nil {
			if len(chunks) > 1 {
				return fmt.Errorf("sending message %d/%d: %w", i+1, len(chunks), err)
			}
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

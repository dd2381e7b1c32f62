package notifier

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/pfrederiksen/umami-report/internal/telegram"
)

// DryRunNotifier prints what would be sent without contacting Telegram
type DryRunNotifier struct {
	out   io.Writer
	limit int
}

// NewDryRunNotifier creates a dry-run notifier writing to out
func NewDryRunNotifier(out io.Writer) *DryRunNotifier {
	return &DryRunNotifier{out: out, limit: telegram.MaxMessageLength}
}

// Notify prints the message as plain text, one section per Telegram message
func (n *DryRunNotifier) Notify(_ context.Context, message string) error {
	chunks := telegram.Split(message, n.limit)
	for i, chunk := range chunks {
		fmt.Fprintf(n.out, "--- Message %d/%d ---\n", i+1, len(chunks))
		fmt.Fprintln(n.out, telegram.PlainText(chunk))
		fmt.Fprintf(n.out, "\n(Length: %d characters)\n\n", utf8.RuneCountInString(chunk))
	}
	return nil
}

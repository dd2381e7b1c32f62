package notifier

import "context"

// Notifier defines the interface for delivering a digest
type Notifier interface {
	// Notify delivers an HTML-formatted message
	Notify(ctx context.Context, message string) error
}

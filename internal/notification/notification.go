// Package notification delivers outbound chat messages. Sends are best
// effort from the engine's perspective: callers log failures and move on,
// never rolling back the operation that triggered the notice.
package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Receipt identifies one accepted outbound message.
type Receipt struct {
	ID string
}

// Notifier delivers a text message to a normalized identity.
type Notifier interface {
	Send(ctx context.Context, identity, text string) (Receipt, error)
}

// LoggerNotifier writes notifications to the structured logger. It stands in
// for a chat channel in local development and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger.With("component", "notification")}
}

// Send writes the message to the logger and fabricates a receipt.
func (n *LoggerNotifier) Send(_ context.Context, identity, text string) (Receipt, error) {
	receipt := Receipt{ID: uuid.New().String()}
	n.logger.Info("notification", "to", identity, "receipt", receipt.ID, "body", text)
	return receipt, nil
}

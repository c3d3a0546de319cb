package notification

import (
    "context"
    "log/slog"
)

const (
    // KindTransferReceived tells an account owner that funds arrived.
    KindTransferReceived = "transfer_received"
)

// Message describes a notification payload.
type Message struct {
    Kind      string
    UserID    int64
    AccountID int64
    Amount    int64
    Body      string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.InfoContext(ctx, "notification",
        "kind", message.Kind,
        "user_id", message.UserID,
        "account_id", message.AccountID,
        "amount", message.Amount,
        "body", message.Body,
    )
    return nil
}

package notify

import (
	"context"
	"log/slog"

	"github.com/trialpulse/trialpulse/domain/notify"
)

// LogSender writes notifications to the structured log instead of an
// external channel. The default sender in development and when no
// shoutrrr URL is configured.
type LogSender struct {
	name   string
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(name string, logger *slog.Logger) *LogSender {
	return &LogSender{name: name, logger: logger}
}

// Name returns the sender name.
func (s *LogSender) Name() string { return s.name }

// Send logs the message.
func (s *LogSender) Send(_ context.Context, msg notify.Message) error {
	s.logger.Info("notification",
		slog.String("sender", s.name),
		slog.String("recipient", msg.Recipient()),
		slog.String("significance", msg.Significance().String()),
		slog.String("title", msg.Title()),
		slog.String("body", msg.Body()),
	)
	return nil
}

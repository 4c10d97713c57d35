package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer records outbound messages in the log instead of delivering them.
// It backs local development where SMTP is not configured.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a Mailer that writes each message to log at info level.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("email not delivered (smtp disabled)",
		zap.Strings("to", msg.Recipients()),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

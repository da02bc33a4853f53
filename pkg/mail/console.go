package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ConsoleSender logs messages instead of delivering them. Used in development
// and as a recorder in tests.
type ConsoleSender struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsoleSender constructs a ConsoleSender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send renders the message and logs it.
func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	if err := prepare(&msg); err != nil {
		return err
	}
	s.logger.Info("email",
		zap.Strings("to", msg.To),
		zap.Strings("bcc", msg.Bcc),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.TemplateName),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of the messages seen so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

package memory

import (
	"context"
	"log/slog"
	"sync"

	"budget/internal/mail"
)

// LogSender writes mail to the log instead of delivering it. Used when no
// Gmail credentials are configured.
type LogSender struct{}

var _ mail.Sender = (*LogSender)(nil)

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, subject, body string) error {
	slog.InfoContext(ctx, "Mail delivery (log backend)",
		"subject", subject,
		"body", body)
	return nil
}

// Message is a captured mail.
type Message struct {
	Subject string
	Body    string
}

// RecordingSender captures sent mail for tests.
type RecordingSender struct {
	mu       sync.Mutex
	Messages []Message
	Err      error
}

var _ mail.Sender = (*RecordingSender)(nil)

func (s *RecordingSender) Send(_ context.Context, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, Message{Subject: subject, Body: body})
	return nil
}

func (s *RecordingSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

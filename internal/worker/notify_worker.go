package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/mail"
)

// MailSubject is the subject line of every budget notification mail.
const MailSubject = "Оповещение о бюджете"

// NotifyWorker turns queued notification messages into mail.
type NotifyWorker struct {
	sender mail.Sender
}

func NewNotifyWorker(sender mail.Sender) *NotifyWorker {
	return &NotifyWorker{sender: sender}
}

// HandleNotification delivers a single notification message. Returning an
// error requeues the message on the broker.
func (w *NotifyWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	if msg.Content == "" {
		slog.WarnContext(ctx, "Skipping empty notification", "timestamp", msg.FormattedDate())
		return nil
	}

	body := fmt.Sprintf("%s\n\nОтправлено: %s", msg.Content, msg.FormattedDate())

	if err := w.sender.Send(ctx, MailSubject, body); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}

	slog.InfoContext(ctx, "Notification mail delivered", "timestamp", msg.FormattedDate())
	return nil
}

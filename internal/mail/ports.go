package mail

import "context"

// Sender delivers a notification mail to the configured recipient.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

package amqp

import (
	"encoding/json"
	"time"
)

// NotificationMessage carries a formatted notification text from the budget
// service to the mail worker.
type NotificationMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationMessage(content string) *NotificationMessage {
	return &NotificationMessage{
		Content:   content,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON creates a message from JSON bytes
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FormattedDate renders the message timestamp for the mail body.
func (m *NotificationMessage) FormattedDate() string {
	return m.Timestamp.Format("02.01.2006 15:04")
}

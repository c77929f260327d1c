package messages

import "time"

const (
	EventStatus = "smartSprinkler_status"
	EventError  = "smartSprinkler_error"
)

// Notification is what notification sinks deliver. Data carries at most three values.
type Notification struct {
	Event     string    `json:"event"`
	Data      []string  `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotification(event string, data ...string) Notification {
	if len(data) > 3 {
		data = data[:3]
	}
	return Notification{Event: event, Data: data, Timestamp: time.Now().UTC()}
}

package notify

import (
	"context"
	"encoding/json"

	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
	"github.com/apogeecmb/smartSprinkler/pkg/rabbitmq"
)

// MQTTSink publishes notifications as JSON on a fixed topic at QoS 1.
type MQTTSink struct {
	pub   rabbitmq.IPublisher
	topic string
}

func NewMQTTSink(pub rabbitmq.IPublisher, topic string) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic}
}

func (m *MQTTSink) Send(_ context.Context, n messages.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return m.pub.PublishToQos(m.topic, 1, false, string(b))
}

package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes payloads to MQTT topics.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishToQos(topic string, qos byte, retained bool, payload interface{}) error
	Close()
}

// mqttClient is the part of mqtt.Client the publisher needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher sends to a default topic with a fixed QoS.
type Publisher struct {
	client  mqttClient
	topic   string
	qos     byte
	timeout time.Duration
}

func NewPublisher(client mqttClient, topic string, qos byte) *Publisher {
	return &Publisher{client: client, topic: topic, qos: qos, timeout: 5 * time.Second}
}

// PublishMessage publishes to the default topic. Strings and byte slices are sent as-is,
// anything else is JSON encoded.
func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishToQos(p.topic, p.qos, false, message)
}

func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, payload interface{}) error {
	switch payload.(type) {
	case string, []byte:
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		payload = b
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

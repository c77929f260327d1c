package rabbitmq

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type sent struct {
	topic   string
	qos     byte
	payload interface{}
}

type fakeClient struct {
	sent         []sent
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, sent{topic, qos, payload})
	return &fakeToken{err: c.err}
}
func (c *fakeClient) IsConnected() bool { return !c.disconnected }
func (c *fakeClient) Disconnect(uint)   { c.disconnected = true }

func TestPublishEncodesStructs(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, "sprinkler/events", 1)
	if err := p.PublishMessage(struct {
		Zone int `json:"zone"`
	}{3}); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishToQos("other", 0, false, "raw"); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 2 {
		t.Fatalf("sent = %d", len(c.sent))
	}
	if b, ok := c.sent[0].payload.([]byte); !ok || string(b) != `{"zone":3}` || c.sent[0].qos != 1 || c.sent[0].topic != "sprinkler/events" {
		t.Fatalf("first publish = %+v", c.sent[0])
	}
	if c.sent[1].payload != "raw" {
		t.Fatalf("string payload altered: %+v", c.sent[1])
	}

	p.Close()
	if !c.disconnected {
		t.Fatal("Close did not disconnect")
	}
}

func TestPublishError(t *testing.T) {
	c := &fakeClient{err: errors.New("not connected")}
	if err := NewPublisher(c, "t", 0).PublishMessage("x"); err == nil {
		t.Fatal("expected error")
	}
}

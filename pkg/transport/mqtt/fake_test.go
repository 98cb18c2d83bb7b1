package mqtt

import (
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

// fakeBroker routes publishes between in-process clients.
type fakeBroker struct {
	lock     sync.Mutex
	clients  []*Client
	retained map[string][]byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{retained: make(map[string][]byte)}
}

func (b *fakeBroker) newClient(prefix string) *Client {
	c := &Client{TopicPrefix: prefix, subs: make(map[string]Handler)}
	c.Client = &fakeClient{broker: b, owner: c}
	b.lock.Lock()
	b.clients = append(b.clients, c)
	b.lock.Unlock()
	return c
}

func (b *fakeBroker) publish(topic string, payload []byte, retained bool) {
	b.lock.Lock()
	if retained {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = payload
		}
	}
	clients := append([]*Client(nil), b.clients...)
	b.lock.Unlock()
	for _, c := range clients {
		c.deliver(topic, payload)
	}
}

func (b *fakeBroker) replay(c *Client, filter string) {
	b.lock.Lock()
	var topics []string
	var payloads [][]byte
	for topic, payload := range b.retained {
		if strings.HasPrefix(topic, c.TopicPrefix) && MatchTopic(topic, filter) {
			topics = append(topics, topic)
			payloads = append(payloads, payload)
		}
	}
	b.lock.Unlock()
	for i, topic := range topics {
		c.deliver(topic, payloads[i])
	}
}

type fakeClient struct {
	paho.Client
	broker *fakeBroker
	owner  *Client
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	data, _ := payload.([]byte)
	c.broker.publish(topic, data, retained)
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	go c.broker.replay(c.owner, topic)
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {}

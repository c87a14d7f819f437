// Package mqtttest provides an in-memory broker whose clients implement
// mqtt.Client, for testing publishers and subscribers without a network.
package mqtttest

import (
	"context"
	"sync"

	"github.com/autopeer-io/skycourier/pkg/mqtt"
)

// Message is a publish seen by the broker.
type Message struct {
	Topic   string
	QoS     int
	Retain  bool
	Payload []byte
}

// Broker routes publishes from any of its clients to every matching
// subscription. Handlers run on their own goroutine, like the paho client.
type Broker struct {
	mu       sync.Mutex
	clients  []*Client
	messages []Message
}

// NewBroker returns an empty broker.
func NewBroker() *Broker { return &Broker{} }

// NewClient returns a connected client of b.
func (b *Broker) NewClient() *Client {
	c := &Client{broker: b, subs: map[string]mqtt.MessageHandler{}}
	b.mu.Lock()
	b.clients = append(b.clients, c)
	b.mu.Unlock()
	return c
}

// Messages returns the publishes on topic, oldest first.
func (b *Broker) Messages(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (b *Broker) publish(ctx context.Context, m Message) {
	b.mu.Lock()
	b.messages = append(b.messages, m)
	clients := append([]*Client(nil), b.clients...)
	b.mu.Unlock()

	for _, c := range clients {
		for _, h := range c.handlersFor(m.Topic) {
			go h(ctx, m.Topic, m.Payload)
		}
	}
}

// Client is an mqtt.Client attached to a Broker.
type Client struct {
	broker *Broker

	mu           sync.Mutex
	subs         map[string]mqtt.MessageHandler
	disconnected bool
	publishErr   error
}

var _ mqtt.Client = (*Client)(nil)

func (c *Client) Start(context.Context) error { return nil }

func (c *Client) Disconnect(context.Context) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *Client) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	c.mu.Lock()
	err := c.publishErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.broker.publish(context.WithoutCancel(ctx), Message{
		Topic:   topic,
		QoS:     qos,
		Retain:  retain,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

func (c *Client) Subscribe(ctx context.Context, topic string, qos int, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = handler
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, topic)
	return nil
}

func (c *Client) AwaitConnection(ctx context.Context) error { return ctx.Err() }

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disconnected
}

// SetPublishErr makes every later Publish fail with err.
func (c *Client) SetPublishErr(err error) {
	c.mu.Lock()
	c.publishErr = err
	c.mu.Unlock()
}

func (c *Client) handlersFor(topic string) []mqtt.MessageHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil
	}
	var hs []mqtt.MessageHandler
	for filter, h := range c.subs {
		if mqtt.TopicMatches(filter, topic) {
			hs = append(hs, h)
		}
	}
	return hs
}

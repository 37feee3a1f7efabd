// Package kafka publishes bus messages to Kafka with a sarama sync producer:
// responses for the bridge, requests and events for the bus client.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/IBM/sarama"

	"esbridge/internal/bus"
	"esbridge/sink"
)

// Config selects the brokers and the client settings to produce with.
type Config struct {
	Brokers []string
	Sarama  *sarama.Config
}

// Publisher sends bus messages. It is safe for concurrent use.
type Publisher struct {
	mu       sync.Mutex
	producer sarama.SyncProducer
}

// NewPublisher connects a sync producer. sc must have
// Producer.Return.Successes set; NewPublisher sets it if not.
func NewPublisher(brokers []string, sc *sarama.Config) (*Publisher, error) {
	if sc == nil {
		sc = sarama.NewConfig()
	}
	sc.Producer.Return.Successes = true
	p, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka-sink: %w", err)
	}
	return &Publisher{producer: p}, nil
}

// NewPublisherFromProducer wraps an existing producer.
func NewPublisherFromProducer(p sarama.SyncProducer) *Publisher {
	return &Publisher{producer: p}
}

func (p *Publisher) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	np, err := NewPublisher(cfg.Brokers, cfg.Sarama)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.producer = np.producer
	p.mu.Unlock()
	return nil
}

// SendResponse publishes resp on its reply topic.
func (p *Publisher) SendResponse(ctx context.Context, resp *bus.Response) error {
	if resp.Topic == "" {
		return errors.New("kafka-sink: response has no reply topic")
	}
	return p.send(ctx, resp.Topic, []byte(resp.RequestID), resp.Payload, resp.Headers())
}

// SendRequest publishes req on its method topic, keyed by message id.
func (p *Publisher) SendRequest(ctx context.Context, req *bus.Request) error {
	return p.send(ctx, req.Topic, []byte(req.MessageID), req.Payload, req.WireHeaders())
}

// SendEvent publishes ev unkeyed.
func (p *Publisher) SendEvent(ctx context.Context, ev *bus.Event) error {
	h := make(map[string]string, len(ev.Headers)+1)
	for k, v := range ev.Headers {
		h[k] = v
	}
	h[bus.HeaderMessageType] = bus.TypeEvent
	return p.send(ctx, ev.Topic, nil, ev.Payload, h)
}

func (p *Publisher) send(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(value),
		Headers: toRecordHeaders(headers),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	p.mu.Lock()
	producer := p.producer
	p.mu.Unlock()
	if producer == nil {
		return errors.New("kafka-sink: not configured")
	}
	if _, _, err := producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka-sink: publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.producer == nil {
		return nil
	}
	err := p.producer.Close()
	p.producer = nil
	return err
}

func toRecordHeaders(h map[string]string) []sarama.RecordHeader {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(h[k])})
	}
	return out
}

func init() { sink.Register("kafka", func() sink.Adapter { return &Publisher{} }) }

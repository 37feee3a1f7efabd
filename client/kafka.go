package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"esbridge/internal/bus"
	"esbridge/internal/logging"
	sinkkafka "esbridge/sink/kafka"
	"esbridge/source/kafka"
)

// KafkaClient is a Client wired to Kafka: requests go out through a sync
// producer and replies are read from every partition of the reply topic.
type KafkaClient struct {
	*Client
	publisher *sinkkafka.Publisher
	consumer  sarama.Consumer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Dial connects to the brokers in cfg and starts listening on the reply
// topic before returning, so no reply sent after Dial is missed.
func Dial(cfg kafka.Config, opts Options) (*KafkaClient, error) {
	sc, err := kafka.SaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	pub, err := sinkkafka.NewPublisher(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	cons, err := sarama.NewConsumer(cfg.Brokers, sc)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	return newKafkaClient(pub, cons, opts)
}

func newKafkaClient(pub *sinkkafka.Publisher, cons sarama.Consumer, opts Options) (*KafkaClient, error) {
	kc := &KafkaClient{Client: New(pub, opts), publisher: pub, consumer: cons}
	if err := kc.listen(); err != nil {
		_ = kc.Close()
		return nil, err
	}
	return kc, nil
}

// SendEvent publishes an event payload to topic.
func (kc *KafkaClient) SendEvent(ctx context.Context, topic string, payload []byte) error {
	return kc.publisher.SendEvent(ctx, &bus.Event{Topic: topic, Payload: payload})
}

func (kc *KafkaClient) listen() error {
	topic := kc.opts.ReplyTopic
	parts, err := kc.consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("client: reply topic %s: %w", topic, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	kc.cancel = cancel
	for _, p := range parts {
		pc, err := kc.consumer.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("client: consume %s/%d: %w", topic, p, err)
		}
		kc.wg.Add(1)
		go func() {
			defer kc.wg.Done()
			defer func() { _ = pc.Close() }()
			errs := pc.Errors()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					_ = kc.Deliver(ctx, bus.Message{Topic: msg.Topic, Payload: msg.Value, Headers: kafka.HeaderMap(msg.Headers)})
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logging.L().Warn("reply consumer error", "topic", topic, "err", err)
				}
			}
		}()
	}
	return nil
}

func (kc *KafkaClient) Close() error {
	if kc.cancel != nil {
		kc.cancel()
	}
	kc.wg.Wait()
	return errors.Join(kc.consumer.Close(), kc.publisher.Close())
}

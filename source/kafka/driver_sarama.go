package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"

	"esbridge/internal/bus"
	"esbridge/internal/logging"
	"esbridge/internal/telemetry"
)

type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
	limit *Limiter
	clock *commitClock
}

func (d *SaramaDriver) Configure(config Config) error {
	d.cfg = config
	d.limit = NewLimiter(config.BackPressure.Capacity)
	d.clock = newCommitClock(config.Checkpoint.CommitInt)

	sc, err := SaramaConfig(config)
	if err != nil {
		return err
	}
	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

// Run consumes topics until ctx is cancelled, rejoining the group after each
// rebalance.
func (d *SaramaDriver) Run(ctx context.Context, topics []string, deliver DeliverFunc) error {
	if len(topics) == 0 {
		logging.L().Warn("sarama-driver: no topics to consume")
		<-ctx.Done()
		return nil
	}
	go func() {
		for err := range d.group.Errors() {
			logging.L().Error("sarama-driver: consumer group error", "err", err)
		}
	}()

	handler := d.handler(ctx, deliver)
	logging.L().Info("sarama-driver: consuming", "topics", topics, "group_id", d.cfg.GroupID)
	for {
		if err := d.group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (d *SaramaDriver) Close() error {
	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	return errors.Join(errs...)
}

func (d *SaramaDriver) handler(ctx context.Context, deliver DeliverFunc) *groupHandler {
	if d.limit == nil {
		d.limit = NewLimiter(d.cfg.BackPressure.Capacity)
	}
	if d.clock == nil {
		d.clock = newCommitClock(d.cfg.Checkpoint.CommitInt)
	}
	return &groupHandler{ctx: ctx, deliver: deliver, limit: d.limit, clock: d.clock}
}

// groupHandler runs every claimed message on its own goroutine. Handlers use
// the driver's context rather than the session's so a rebalance does not
// abort backend calls already under way.
type groupHandler struct {
	ctx     context.Context
	deliver DeliverFunc
	limit   *Limiter
	clock   *commitClock
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

func (*groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	sess.Commit()
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	tracker := NewTracker()
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.limit.Acquire(sess.Context()); err != nil {
				return nil
			}
			finish := tracker.Track(msg.Offset)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer h.limit.Release()
				h.handle(msg)
				if off, advanced := finish(); advanced {
					sess.MarkOffset(msg.Topic, msg.Partition, off+1, "")
					if h.clock.due() {
						sess.Commit()
					}
				}
			}()
		}
	}
}

func (h *groupHandler) handle(msg *sarama.ConsumerMessage) {
	err := h.deliver(h.ctx, bus.Message{
		Topic:   msg.Topic,
		Payload: msg.Value,
		Headers: HeaderMap(msg.Headers),
	})
	if err != nil {
		telemetry.DeliveryFailures.WithLabelValues(msg.Topic).Inc()
		logging.L().Error("sarama-driver: message handling failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
	}
}

// HeaderMap flattens record headers; a repeated key keeps its last value.
func HeaderMap(src []*sarama.RecordHeader) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for _, h := range src {
		if h == nil {
			continue
		}
		out[string(h.Key)] = string(h.Value)
	}
	return out
}

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }

// Package stdout writes responses as JSON lines instead of publishing them,
// for running the bridge without a reply path.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"esbridge/internal/bus"
	"esbridge/sink"
)

type Config struct {
	Output       io.Writer // default os.Stdout
	PrintCounter bool      `koanf:"print_counter"` // include a sequence number
}

type line struct {
	Seq       uint64          `json:"seq,omitempty"`
	Topic     string          `json:"topic"`
	RequestID string          `json:"request_id"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type driver struct {
	cfg Config
	seq uint64

	mu sync.Mutex // serialises writes
}

func New(c Config) sink.Adapter {
	d := &driver{}
	_ = d.Configure(c)
	return d
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) SendResponse(_ context.Context, resp *bus.Response) error {
	l := line{Topic: resp.Topic, RequestID: resp.RequestID, Error: resp.ErrorMessage}
	if json.Valid(resp.Payload) {
		l.Payload = resp.Payload
	} else if len(resp.Payload) > 0 {
		l.Payload, _ = json.Marshal(string(resp.Payload))
	}
	if d.cfg.PrintCounter {
		l.Seq = atomic.AddUint64(&d.seq, 1)
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.cfg.Output
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, string(raw))
	return err
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}

package engine

import (
	"context"
	"fmt"
	"net/http"

	"esbridge/internal/backend"
	"esbridge/internal/config"
	"esbridge/internal/logging"
	"esbridge/internal/service"
	"esbridge/internal/telemetry"
	"esbridge/internal/transport"
	"esbridge/sink"
	sinkkafka "esbridge/sink/kafka"
	"esbridge/sink/stdout"
	"esbridge/source/kafka"
)

type options struct {
	source    kafka.Adapter
	responder sink.Adapter
	esRT      http.RoundTripper
}

type Option func(*options)

// WithSource replaces the configured Kafka driver.
func WithSource(a kafka.Adapter) Option { return func(o *options) { o.source = a } }

// WithResponder replaces the configured response sink.
func WithResponder(a sink.Adapter) Option { return func(o *options) { o.responder = a } }

// WithBackendTransport sends backend traffic through rt.
func WithBackendTransport(rt http.RoundTripper) Option { return func(o *options) { o.esRT = rt } }

// Build wires the backend client and the service without touching the bus.
// It is what `esbridge validate` runs: every cached transform is loaded once.
func Build(cfg config.Config, opts ...Option) (*backend.Client, *service.Service, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	var beOpts []backend.Option
	if o.esRT != nil {
		beOpts = append(beOpts, backend.WithTransport(o.esRT))
	}
	es, err := backend.New(cfg.Servers, beOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("backend: %w", err)
	}
	svc, err := service.Build(cfg, es)
	if err != nil {
		return nil, nil, fmt.Errorf("service: %w", err)
	}
	return es, svc, nil
}

func Bootstrap(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	// 1. backend + callbacks
	_, svc, err := Build(cfg, opts...)
	if err != nil {
		return nil, err
	}

	// 2. bus source
	src := o.source
	if src == nil {
		if src, err = kafka.NewAdapter(cfg.Kafka.Driver); err != nil {
			return nil, err
		}
		if err := src.Configure(cfg.Kafka); err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
	}

	// 3. response sink
	resp := o.responder
	if resp == nil {
		if resp, err = newResponder(cfg); err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("responses: %w", err)
		}
	}

	// 4. transport server
	var srv *transport.Server
	if cfg.Transport.GRPCPort != 0 {
		if srv, err = transport.StartServer(cfg.Transport.GRPCPort); err != nil {
			_ = src.Close()
			_ = resp.Close()
			return nil, fmt.Errorf("transport: %w", err)
		}
	}

	// 5. metrics
	metrics := telemetry.Expose(cfg.Telemetry.MetricsPort)

	logging.L().Info("bridge ready",
		"groups", len(svc.Groups()), "request_topics", len(svc.RequestTopics()),
		"topics", svc.Topics())
	return &Engine{
		service:   svc,
		source:    src,
		responder: resp,
		transport: srv,
		metrics:   metrics,
	}, nil
}

func newResponder(cfg config.Config) (sink.Adapter, error) {
	a, err := sink.NewAdapter(cfg.Responses.Driver)
	if err != nil {
		return nil, err
	}
	switch cfg.Responses.Driver {
	case "kafka":
		sc, err := kafka.SaramaConfig(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		err = a.Configure(sinkkafka.Config{Brokers: cfg.Kafka.Brokers, Sarama: sc})
		return a, err
	case "stdout":
		return a, a.Configure(stdout.Config{PrintCounter: true})
	default:
		return nil, fmt.Errorf("no config block for sink %q", cfg.Responses.Driver)
	}
}

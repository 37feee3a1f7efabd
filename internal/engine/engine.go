// Package engine starts and stops a configured bridge.
package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"esbridge/internal/logging"
	"esbridge/internal/service"
	"esbridge/internal/telemetry"
	"esbridge/internal/transport"
	"esbridge/sink"
	"esbridge/source/kafka"
)

const shutdownTimeout = 10 * time.Second

type Engine struct {
	service   *service.Service
	source    kafka.Adapter
	responder sink.Adapter
	transport *transport.Server // nil when disabled
	metrics   *telemetry.Server
}

// Run consumes until ctx is cancelled or the source fails, then releases
// every resource.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return e.service.Run(gctx, e.source, e.responder)
	})
	if e.transport != nil {
		e.transport.SetServing(true)
		g.Go(e.transport.Serve)
	}
	g.Go(func() error {
		<-gctx.Done()
		if e.transport != nil {
			e.transport.Stop()
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := e.Close(); cerr != nil {
		logging.L().Warn("shutdown", "err", cerr)
	}
	return err
}

func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(
		e.source.Close(),
		e.responder.Close(),
		e.metrics.Shutdown(ctx),
	)
}

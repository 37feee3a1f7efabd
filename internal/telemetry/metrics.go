package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"esbridge/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "esbridge"

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_received_total",
		Help:      "Bus events received, by event group.",
	}, []string{"group"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events that produced no index operation, by group and reason.",
	}, []string{"group", "reason"})

	OperationsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_operations_total",
		Help:      "Index operations submitted to the backend, by group and result.",
	}, []string{"group", "result"})

	TransformLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transform_loads_total",
		Help:      "Transform script loads, by namespace and result.",
	}, []string{"namespace", "result"})

	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Service requests handled, by API method and result.",
	}, []string{"method", "result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Backend API call latency for service requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Bus messages whose handler returned an error, by topic.",
	}, []string{"topic"})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "messages_in_flight",
		Help:      "Bus messages currently being handled.",
	})
)

// Server serves /metrics until Shutdown.
type Server struct {
	srv *http.Server
}

// Expose starts the metrics endpoint in the background. A zero port disables it.
func Expose(port int) *Server {
	if port == 0 {
		return &Server{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server stopped", "err", err)
		}
	}()
	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

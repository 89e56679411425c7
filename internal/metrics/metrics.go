// Package metrics exposes Prometheus counters for the PTY I/O bridge.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rafabd1/therminal/internal/buffer"
	"github.com/rafabd1/therminal/internal/logging"
)

const namespace = "therminal"

// Collector holds the session metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter
	InputEvicted prometheus.Counter
	WorkerExits  *prometheus.CounterVec
}

// New creates a collector with Go runtime and process collectors
// registered alongside the session metrics.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		factory:  f,
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pty_bytes_read_total",
			Help:      "Bytes read from the PTY master",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pty_bytes_written_total",
			Help:      "Bytes written to the PTY master",
		}),
		InputEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_evicted_bytes_total",
			Help:      "Queued input bytes dropped because the input ring was full",
		}),
		WorkerExits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_exits_total",
			Help:      "I/O worker exits by reason",
		}, []string{"reason"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observer adapts the collector to the worker's callback names.
func (c *Collector) Observer() *Observer { return &Observer{c: c} }

// Observer forwards worker callbacks into a Collector.
type Observer struct{ c *Collector }

func (o *Observer) BytesRead(n int)    { o.c.BytesRead.Add(float64(n)) }
func (o *Observer) BytesWritten(n int) { o.c.BytesWritten.Add(float64(n)) }
func (o *Observer) InputEvicted(n int) { o.c.InputEvicted.Add(float64(n)) }
func (o *Observer) WorkerExited(reason string) {
	o.c.WorkerExits.WithLabelValues(reason).Inc()
}

// WatchBuffers registers gauges sampling the session buffers at scrape
// time.
func (c *Collector) WatchBuffers(input *buffer.InputRing, output *buffer.OutputChannel) {
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "input_queued_bytes",
		Help:      "Bytes waiting in the input ring",
	}, func() float64 { return float64(input.Len()) })
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "input_capacity_bytes",
		Help:      "Capacity of the input ring",
	}, func() float64 { return float64(input.Cap()) })
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "output_available_bytes",
		Help:      "Free space in the output channel's write side",
	}, func() float64 { return float64(output.Available()) })
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	log = logging.OrNop(log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics endpoint listening", zap.String("address", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

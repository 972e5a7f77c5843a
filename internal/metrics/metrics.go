// Package metrics exposes the sender/receiver's protocol state as
// Prometheus metrics: a diagnostic surface that never touches stdin,
// stdout, or the wire protocol itself.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider is implemented by the sender and receiver control loops so
// a single collector type can report either one's state.
type StatsProvider interface {
	Stats() map[string]float64
}

// Collector adapts a StatsProvider's snapshot into Prometheus gauges. Each
// key in the snapshot map becomes a gauge named "arq_<namespace>_<key>".
type Collector struct {
	provider  StatsProvider
	namespace string
}

// NewCollector builds a Collector reporting provider's stats under the
// given metric namespace (e.g. "sender" or "receiver").
func NewCollector(namespace string, provider StatsProvider) *Collector {
	return &Collector{provider: provider, namespace: namespace}
}

// Describe implements prometheus.Collector. Descriptors are generated
// dynamically in Collect since the stat set is fixed but not known
// statically to this package.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Intentionally left empty: this collector is "unchecked" — Collect
	// builds each descriptor inline with NewDesc and emits it as a const
	// gauge via MustNewConstMetric on every scrape, matching the
	// pattern used for dynamically-keyed stats maps elsewhere in this
	// codebase's metrics layer.
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, value := range c.provider.Stats() {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName("arq", c.namespace, name),
			"ARQ protocol state: "+name,
			nil, nil,
		)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value)
	}
}

// Server is a minimal health + /metrics HTTP endpoint, used only for
// diagnostics; its listener address is independent of the UDP transport.
type Server struct {
	httpServer *http.Server
	registry   *prometheus.Registry
}

// NewServer creates a metrics server bound to listen (e.g. "127.0.0.1:0"
// for an ephemeral diagnostic port), registering collector.
func NewServer(listen string, collector prometheus.Collector) (*Server, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &Server{
		registry: registry,
		httpServer: &http.Server{
			Addr:         listen,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts serving and blocks until ctx is canceled, at which point it
// shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

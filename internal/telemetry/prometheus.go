package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromCollector exposes emitted scalars as Prometheus gauges on an HTTP
// /metrics endpoint. Metric keys like "valid mrr" become
// convkg_valid_mrr{run="..."}; an epoch gauge tracks the step.
type PromCollector struct {
	addr     string
	run      string
	registry *prometheus.Registry
	gauges   map[string]prometheus.Gauge
	epoch    prometheus.Gauge
	server   *http.Server
}

// NewPromCollector creates a collector serving on addr (e.g. ":9108").
func NewPromCollector(addr string) *PromCollector {
	return &PromCollector{
		addr:     addr,
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
	}
}

// Open starts the metrics HTTP server.
func (p *PromCollector) Open(run string) error {
	p.run = run
	p.epoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "convkg",
		Name:        "epoch",
		Help:        "Last completed training epoch.",
		ConstLabels: prometheus.Labels{"run": run},
	})
	if err := p.registry.Register(p.epoch); err != nil {
		return fmt.Errorf("telemetry: register epoch gauge: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	p.server = &http.Server{
		Addr:              p.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		// ErrServerClosed is the normal shutdown path.
		_ = p.server.ListenAndServe()
	}()
	return nil
}

// Emit sets the gauge for key and advances the epoch gauge.
func (p *PromCollector) Emit(key string, value float64, step int) {
	gauge, ok := p.gauges[key]
	if !ok {
		gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "convkg",
			Name:        sanitizeMetricName(key),
			Help:        fmt.Sprintf("Training scalar %q.", key),
			ConstLabels: prometheus.Labels{"run": p.run},
		})
		if err := p.registry.Register(gauge); err != nil {
			return
		}
		p.gauges[key] = gauge
	}
	gauge.Set(value)
	p.epoch.Set(float64(step))
}

// Close shuts the metrics server down.
func (p *PromCollector) Close() error {
	if p.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.server.Shutdown(ctx)
}

func sanitizeMetricName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}

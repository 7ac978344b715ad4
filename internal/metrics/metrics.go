// Package metrics exposes Prometheus counters for storage area traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leonardcser/persisted-map/internal/storage"
)

// Collector holds the area metrics. Create one per registry.
type Collector struct {
	registry prometheus.Registerer

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	itemBytes  *prometheus.GaugeVec
}

// NewCollector registers the area metrics with registry. If registry is nil,
// a fresh prometheus.Registry is used.
func NewCollector(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)
	return &Collector{
		registry: registry,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "persisted_map_area_operations_total",
				Help: "Total number of storage area operations",
			},
			[]string{"backend", "op", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "persisted_map_area_operation_duration_seconds",
				Help:    "Duration of storage area operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"backend", "op"},
		),
		itemBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "persisted_map_area_last_item_bytes",
				Help: "Size of the last value written to the area",
			},
			[]string{"backend"},
		),
	}
}

// Instrument wraps area so every call is counted and timed under backend.
func (c *Collector) Instrument(backend string, area storage.Area) storage.Area {
	return &instrumented{backend: backend, area: area, c: c}
}

func (c *Collector) record(backend, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.operations.WithLabelValues(backend, op, result).Inc()
	c.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

type instrumented struct {
	backend string
	area    storage.Area
	c       *Collector
}

func (i *instrumented) GetItem(key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := i.area.GetItem(key)
	i.c.record(i.backend, "get", start, err)
	return v, ok, err
}

func (i *instrumented) SetItem(key, value string) error {
	start := time.Now()
	err := i.area.SetItem(key, value)
	i.c.record(i.backend, "set", start, err)
	if err == nil {
		i.c.itemBytes.WithLabelValues(i.backend).Set(float64(len(value)))
	}
	return err
}

func (i *instrumented) RemoveItem(key string) error {
	start := time.Now()
	err := i.area.RemoveItem(key)
	i.c.record(i.backend, "remove", start, err)
	return err
}

// Available forwards to the wrapped area when it can be probed.
func (i *instrumented) Available() bool {
	if p, ok := i.area.(storage.Prober); ok {
		return p.Available()
	}
	return true
}

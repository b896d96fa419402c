// Package prometheus exports flashfs metrics through a Prometheus registry.
package prometheus

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/flashfs"
)

// Collector implements flashfs.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency     *prometheus.HistogramVec
	opBytes       *prometheus.CounterVec
	deviceLatency *prometheus.HistogramVec
	deviceBytes   *prometheus.CounterVec
}

var _ flashfs.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. Metric names
// are prefixed with namespace (default "flashfs").
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = "flashfs"
	}

	var (
		c   Collector
		err error
	)
	c.opLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_latency_seconds",
		Help:      "Latency of filesystem operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "status"}))
	if err != nil {
		return nil, err
	}
	c.opBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_total",
		Help:      "Bytes moved by file reads and writes",
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	c.deviceLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "device_latency_seconds",
		Help:      "Latency of device callbacks",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	}, []string{"op", "status"}))
	if err != nil {
		return nil, err
	}
	c.deviceBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "device_bytes_total",
		Help:      "Bytes read, written or erased on the device",
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// register registers m, or returns the identical collector already
// registered under the same name.
func register[T prometheus.Collector](reg prometheus.Registerer, m T) (T, error) {
	if err := reg.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return m, nil
}

// MustNewCollector is like NewCollector but panics on error.
func MustNewCollector(reg prometheus.Registerer, namespace string) *Collector {
	c, err := NewCollector(reg, namespace)
	if err != nil {
		panic(err)
	}
	return c
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

// RecordMount implements flashfs.MetricsCollector.
func (c *Collector) RecordMount(d time.Duration, err error) { c.observe("mount", d, err) }

// RecordOpen implements flashfs.MetricsCollector.
func (c *Collector) RecordOpen(d time.Duration, err error) { c.observe("open", d, err) }

// RecordRemove implements flashfs.MetricsCollector.
func (c *Collector) RecordRemove(d time.Duration, err error) { c.observe("remove", d, err) }

// RecordRead implements flashfs.MetricsCollector.
func (c *Collector) RecordRead(bytes int, d time.Duration, err error) {
	c.observe("read", d, err)
	if bytes > 0 {
		c.opBytes.WithLabelValues("read").Add(float64(bytes))
	}
}

// RecordWrite implements flashfs.MetricsCollector.
func (c *Collector) RecordWrite(bytes int, d time.Duration, err error) {
	c.observe("write", d, err)
	if bytes > 0 {
		c.opBytes.WithLabelValues("write").Add(float64(bytes))
	}
}

// RecordDevice implements flashfs.MetricsCollector.
func (c *Collector) RecordDevice(op string, bytes int, d time.Duration, err error) {
	c.deviceLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
	if err == nil && bytes > 0 {
		c.deviceBytes.WithLabelValues(op).Add(float64(bytes))
	}
}

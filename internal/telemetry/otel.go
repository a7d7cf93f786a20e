package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics forwards updates to OpenTelemetry instruments created lazily
// from meter. Counters become Int64Counter, stored values Int64Gauge.
type OTelMetrics struct {
	meter  metric.Meter
	logger Logger

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Int64Gauge
}

// NewOTelMetrics wraps meter. Instrument creation failures are logged once
// per key and the update is dropped.
func NewOTelMetrics(meter metric.Meter, logger Logger) *OTelMetrics {
	return &OTelMetrics{
		meter:    meter,
		logger:   logger,
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Int64Gauge),
	}
}

// Add implements Metrics.
func (m *OTelMetrics) Add(key string, delta uint64) {
	if m == nil || m.meter == nil {
		return
	}
	if c := m.counter(key); c != nil {
		c.Add(context.Background(), int64(delta))
	}
}

// Store implements Metrics.
func (m *OTelMetrics) Store(key string, value uint64) {
	if m == nil || m.meter == nil {
		return
	}
	if g := m.gauge(key); g != nil {
		g.Record(context.Background(), int64(value))
	}
}

func (m *OTelMetrics) counter(key string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[key]; ok {
		return c
	}
	c, err := m.meter.Int64Counter(key)
	if err != nil {
		m.logf("otel counter %s: %v", key, err)
		c = nil
	}
	m.counters[key] = c
	return c
}

func (m *OTelMetrics) gauge(key string) metric.Int64Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[key]; ok {
		return g
	}
	g, err := m.meter.Int64Gauge(key)
	if err != nil {
		m.logf("otel gauge %s: %v", key, err)
		g = nil
	}
	m.gauges[key] = g
	return g
}

func (m *OTelMetrics) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

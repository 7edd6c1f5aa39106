package observability

import (
	"context"
	"errors"
	"net/http"
)

// Manager owns the tracer and metrics built from Config.
type Manager struct {
	tracer   *Tracer
	metrics  *Metrics
	endpoint string
}

// NewManager initializes tracing and metrics. Disabled parts are no-ops.
func NewManager(ctx context.Context, cfg Config, opts ...TracerOption) (*Manager, error) {
	tracer, err := NewTracer(ctx, cfg.Tracing, opts...)
	if err != nil {
		return nil, err
	}

	m := &Manager{tracer: tracer, endpoint: cfg.Metrics.Endpoint}
	if m.endpoint == "" {
		m.endpoint = DefaultMetricsPath
	}
	if cfg.Metrics.Enabled {
		metrics, err := NewMetrics(cfg.Metrics)
		if err != nil {
			_ = tracer.Shutdown(ctx)
			return nil, err
		}
		m.metrics = metrics
	}
	return m, nil
}

// NoopManager returns a Manager with tracing and metrics disabled.
func NoopManager() *Manager {
	return &Manager{tracer: NoopTracer(), endpoint: DefaultMetricsPath}
}

// Tracer returns the tracer.
func (m *Manager) Tracer() *Tracer {
	return m.tracer
}

// Metrics returns the metrics recorder; NoopMetrics when disabled.
func (m *Manager) Metrics() Recorder {
	if m.metrics == nil {
		return NoopMetrics{}
	}
	return m.metrics
}

// MetricsEnabled reports whether metrics are collected.
func (m *Manager) MetricsEnabled() bool {
	return m.metrics != nil
}

// MetricsEndpoint returns the path the metrics handler is mounted on.
func (m *Manager) MetricsEndpoint() string {
	return m.endpoint
}

// MetricsHandler serves the metrics endpoint.
func (m *Manager) MetricsHandler() http.Handler {
	if m.metrics == nil {
		return NoopMetrics{}.Handler()
	}
	return m.metrics.Handler()
}

// Shutdown flushes and stops tracing and metrics.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if err := m.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if m.metrics != nil {
		if err := m.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

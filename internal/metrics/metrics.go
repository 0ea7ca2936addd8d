// Package metrics exposes Prometheus collectors for tool calls and upstream
// RPC traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "serpstat"

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls   *prometheus.CounterVec
	rpcAttempts *prometheus.CounterVec
	rpcRetries  *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	credits     *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations handled, by outcome code.",
		}, []string{"server", "tool", "outcome"}),
		rpcAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_attempts_total",
			Help:      "Upstream HTTP attempts, by result.",
		}, []string{"method", "result"}),
		rpcRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_retries_total",
			Help:      "Upstream attempts that were retried after a retryable failure.",
		}, []string{"method"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Wall time of a full Invoke including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"method"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_credits_total",
			Help:      "Estimated API credits spent by successful calls.",
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.toolCalls,
		m.rpcAttempts,
		m.rpcRetries,
		m.rpcDuration,
		m.credits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ToolCall(server, tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(server, tool, outcome).Inc()
}

func (m *Metrics) RPCAttempt(method, result string) {
	if m == nil {
		return
	}
	m.rpcAttempts.WithLabelValues(method, result).Inc()
}

func (m *Metrics) RPCRetry(method string) {
	if m == nil {
		return
	}
	m.rpcRetries.WithLabelValues(method).Inc()
}

func (m *Metrics) RPCDuration(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) Credits(method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.credits.WithLabelValues(method).Add(float64(n))
}

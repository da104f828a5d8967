// Package observability wires the ambient metrics/tracing stack named in
// §5 "Concurrency & Resource Model" onto the core: Prometheus counters for
// provider retries, tool-sequence repairs and denied approvals, and
// OpenTelemetry spans wrapping provider calls and tool executions. Neither
// is part of the spec's functional surface — both are non-functional
// observability additions carried regardless of the base spec's silence
// on an observability layer.
//
// Grounded on the teacher's pkg/observability/metrics.go (CounterVec-per-
// concern layout, nil-receiver no-ops so an unconfigured Metrics is always
// safe to call) and pkg/observability/tracer.go (GetTracer's use of the
// global otel.Tracer registry rather than a hand-rolled provider), trimmed
// to the three counters and two span points SPEC_FULL.md §5 names —
// the teacher's agent/memory/session/HTTP/RAG metric families have no
// SPEC_FULL.md component to attach to and were not ported.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/amplifier-run/amplifier/events"
	"github.com/amplifier-run/amplifier/hooks"
	"github.com/amplifier-run/amplifier/llm"
)

// Metrics holds the Prometheus counters §5 names explicitly: provider
// retries, tool-sequence repairs, and denied approvals. A nil *Metrics is
// always safe to call — every method is a no-op — so components can take
// one optionally without a separate enabled flag.
type Metrics struct {
	registry *prometheus.Registry

	retries *prometheus.CounterVec
	repairs *prometheus.CounterVec
	denied  *prometheus.CounterVec
}

// NewMetrics creates a fresh, independently-registered Metrics under the
// given namespace (e.g. "amplifier").
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "retries_total",
		Help:      "Total number of provider request retries.",
	}, []string{"provider"})

	m.repairs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "tool_sequence_repairs_total",
		Help:      "Total number of malformed tool-call sequences repaired before replay.",
	}, []string{"provider"})

	m.denied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "approval",
		Name:      "denied_total",
		Help:      "Total number of tool calls denied by a hook handler.",
	}, []string{"tool"})

	m.registry.MustRegister(m.retries, m.repairs, m.denied)
	return m
}

// Registry returns the Prometheus registry the counters are registered
// against, for a caller that wants to expose /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) incRetry(provider string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider).Inc()
}

func (m *Metrics) incRepair(provider string) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(provider).Inc()
}

func (m *Metrics) incDenied(tool string) {
	if m == nil {
		return
	}
	m.denied.WithLabelValues(tool).Inc()
}

// EmitterAdapter wraps an llm.EventEmitter, feeding provider:retry and
// provider:tool_sequence_repaired events into Metrics before forwarding
// every event to Inner unchanged. Pass it as a Provider Adapter's emitter
// to get retry/repair counters without touching the adapter itself.
type EmitterAdapter struct {
	Metrics *Metrics
	Inner   llm.EventEmitter
}

var _ llm.EventEmitter = (*EmitterAdapter)(nil)

func (a *EmitterAdapter) Emit(event string, payload map[string]any) {
	switch event {
	case events.ProviderRetry:
		a.Metrics.incRetry(stringOr(payload, "provider"))
	case events.ProviderToolSequenceRepaired:
		a.Metrics.incRepair(stringOr(payload, "provider"))
	}
	if a.Inner != nil {
		a.Inner.Emit(event, payload)
	}
}

func stringOr(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	if s == "" {
		return "unknown"
	}
	return s
}

// DeniedHookHandler returns a hooks.Handler that counts every
// approval:denied emission by the tool it named, passing the fold through
// unchanged (ActionContinue, so it never overrides another handler's
// decision). Register it on a session's hook registry to get denial
// counters for free.
func (m *Metrics) DeniedHookHandler() hooks.Handler {
	return func(ctx context.Context, event string, data map[string]any) hooks.Result {
		m.incDenied(stringOr(data, "tool"))
		return hooks.Result{Action: hooks.ActionContinue}
	}
}

// Tracer returns the global OTel tracer under name, the same
// otel.Tracer(name) lookup the teacher's GetTracer used — callers
// configure the actual TracerProvider (or leave it the default no-op) via
// otel.SetTracerProvider elsewhere; this package has no opinion on
// exporters.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

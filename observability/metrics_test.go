package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amplifier-run/amplifier/events"
	"github.com/amplifier-run/amplifier/hooks"
)

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) Emit(event string, payload map[string]any) {
	r.events = append(r.events, event)
}

func TestEmitterAdapterCountsRetriesAndForwards(t *testing.T) {
	m := NewMetrics("test")
	inner := &recordingEmitter{}
	adapter := &EmitterAdapter{Metrics: m, Inner: inner}

	adapter.Emit(events.ProviderRetry, map[string]any{"provider": "anthropic"})
	adapter.Emit(events.ProviderRetry, map[string]any{"provider": "anthropic"})

	require.Equal(t, float64(2), testCounterValue(t, m.retries, "anthropic"))
	require.Equal(t, []string{events.ProviderRetry, events.ProviderRetry}, inner.events)
}

func TestEmitterAdapterCountsRepairs(t *testing.T) {
	m := NewMetrics("test")
	adapter := &EmitterAdapter{Metrics: m}

	adapter.Emit(events.ProviderToolSequenceRepaired, map[string]any{"provider": "anthropic"})

	require.Equal(t, float64(1), testCounterValue(t, m.repairs, "anthropic"))
}

func TestEmitterAdapterIgnoresUnrelatedEvents(t *testing.T) {
	m := NewMetrics("test")
	adapter := &EmitterAdapter{Metrics: m}

	adapter.Emit(events.PromptSubmit, map[string]any{"prompt": "hi"})

	require.Equal(t, float64(0), testCounterValue(t, m.retries, "unknown"))
}

func TestNilMetricsEmitterAdapterNeverPanics(t *testing.T) {
	var m *Metrics
	adapter := &EmitterAdapter{Metrics: m}
	require.NotPanics(t, func() {
		adapter.Emit(events.ProviderRetry, map[string]any{"provider": "anthropic"})
	})
}

func TestDeniedHookHandlerCountsDeniedToolCalls(t *testing.T) {
	m := NewMetrics("test")
	handler := m.DeniedHookHandler()

	result := handler(context.Background(), events.ApprovalDenied, map[string]any{"tool": "danger"})

	require.Equal(t, hooks.ActionContinue, result.Action)
	require.Equal(t, float64(1), testCounterValue(t, m.denied, "danger"))
}

package llm

// EventEmitter is the minimal surface a Provider Adapter needs from the
// runtime's Hook Registry: emit a named event with a payload. Providers
// accept one so retry and tool-sequence-repair notifications (§4.8) reach
// the core without this package depending on the hooks package.
type EventEmitter interface {
	Emit(event string, payload map[string]any)
}

// NoopEmitter discards every event. Used when a provider is constructed
// outside a session (tests, standalone CLI smoke test).
type NoopEmitter struct{}

func (NoopEmitter) Emit(string, map[string]any) {}

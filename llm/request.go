package llm

// ReasoningEffort controls how much of a thinking budget the Provider
// Adapter requests from models that support it. See §4.8's reasoning_effort
// → thinking block mapping, implemented per-provider in llm/anthropic.
type ReasoningEffort string

const (
	ReasoningNone   ReasoningEffort = ""
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// ToolDefinition describes a tool the model may call, in provider-neutral
// form (JSON Schema parameters, matching the teacher's
// pkg/llms.ToolDefinition and invopop/jsonschema output).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ChatRequest is the provider-neutral input to Provider.Complete.
type ChatRequest struct {
	Model           string
	Messages        []Message
	Tools           []ToolDefinition
	MaxTokens       int
	Temperature     float64
	ReasoningEffort ReasoningEffort
	Stream          bool

	// ExtendedThinking, when non-nil, overrides the reasoning_effort-derived
	// thinking decision: true forces thinking on (default budget unless
	// ThinkingBudgetTokens is set), false forces it off.
	ExtendedThinking     *bool
	ThinkingBudgetTokens *int

	StructuredOutput *StructuredOutputConfig
}

// StructuredOutputConfig asks the provider to constrain its response to a
// JSON Schema, injected into the system prompt for adapters (like the
// Anthropic reference) that have no native structured-output mode.
type StructuredOutputConfig struct {
	Schema map[string]any
}

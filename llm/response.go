package llm

// Usage records token accounting for one completion. Extras carries
// provider-native counters (e.g. Anthropic's cache_creation_input_tokens)
// that have no shared field, kept opaque for observability per §4.8's
// "retain provider-native counters as opaque extras" rule.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	Extras           map[string]any
}

// Total is the sum of input and output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// StopReason is why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// ChatResponse is the provider-neutral output of Provider.Complete: a single
// terminal assistant message, whether it was produced by folding a stream or
// returned directly by a non-streaming call.
type ChatResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
	Model      string
}

// ToolCalls returns the tool calls requested by the response, if any.
func (r ChatResponse) ToolCalls() []ToolCallBlock {
	return r.Message.ToolCalls()
}

// StreamEventType discriminates StreamEvent.
type StreamEventType string

const (
	StreamContentBlockStart StreamEventType = "content_block_start"
	StreamContentBlockDelta StreamEventType = "content_block_delta"
	StreamContentBlockStop  StreamEventType = "content_block_stop"
	StreamMessageDone       StreamEventType = "message_done"
	StreamError             StreamEventType = "error"
)

// StreamEvent is one incremental update from a streaming completion. An
// adapter folds a sequence of these into a terminal ChatResponse; callers
// that want incremental text may also consume the channel directly.
type StreamEvent struct {
	Type        StreamEventType
	TextDelta   string
	ToolCall    *ToolCallBlock
	Response    *ChatResponse // set on StreamMessageDone
	Err         error         // set on StreamError
}

// ProviderInfo describes a provider's identity and configuration surface,
// per §4.8's get_info() contract.
type ProviderInfo struct {
	ID            string
	DisplayName   string
	ConfigFields  map[string]any // JSON Schema describing accepted config
}

// ToolResult is a tool's completed execution, per the Tool contract
// (§4 component table: "Execute(args) → ToolResult{Success, Output}").
type ToolResult struct {
	Success bool
	Output  string
}

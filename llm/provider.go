package llm

import "context"

// Provider is the public contract every Provider Adapter implements, per
// §4.8: "get_info() → ProviderInfo", "list_models() → [string]",
// "complete(request, …) → ChatResponse", "parse_tool_calls(response) →
// [ToolCallBlock]", plus a stable name.
//
// Streaming is exposed separately (CompleteStream) rather than folded into
// Complete's signature, matching the teacher's split between
// AnthropicProvider.Generate and GenerateStreaming in pkg/llms/anthropic.go.
type Provider interface {
	Name() string
	GetInfo() ProviderInfo
	ListModels(ctx context.Context) ([]string, error)
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	CompleteStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
}

// ParseToolCalls extracts the tool calls from a response, per §4.8's
// parse_tool_calls contract. Providers share this implementation since
// ChatResponse's Message already carries typed ToolCallBlocks.
func ParseToolCalls(resp *ChatResponse) []ToolCallBlock {
	if resp == nil {
		return nil
	}
	return resp.ToolCalls()
}

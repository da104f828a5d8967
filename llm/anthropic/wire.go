package anthropic

// Wire types for the Anthropic Messages API, ported field-for-field from
// the teacher's pkg/llms/anthropic.go (AnthropicRequest, AnthropicMessage,
// AnthropicContent, AnthropicResponse, AnthropicStreamResponse,
// AnthropicUsage, AnthropicError) with a thinking field added per §4.8's
// reasoning/thinking table, which the teacher's adapter never implemented.

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type wireThinking struct {
	Type         string `json:"type"` // "enabled" or "adaptive"
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
	System      string        `json:"system,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Thinking    *wireThinking `json:"thinking,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []wireContent  `json:"content"`
}

// wireContent mirrors the teacher's AnthropicContent union: one struct
// carrying every content variant's fields, discriminated by Type. Input is
// a pointer so a present-but-empty tool_use input serializes as {} rather
// than being omitted, matching the teacher's documented reason for the
// pointer.
type wireContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Source    *wireImageSource `json:"source,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     *map[string]any `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Role       string        `json:"role"`
	Content    []wireContent `json:"content"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason"`
	Usage      wireUsage     `json:"usage"`
	Error      *wireError    `json:"error,omitempty"`
}

type wireDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type wireStreamEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index,omitempty"`
	Delta        *wireDelta    `json:"delta,omitempty"`
	ContentBlock *wireContent  `json:"content_block,omitempty"`
	Message      *wireResponse `json:"message,omitempty"`
	Usage        *wireUsage    `json:"usage,omitempty"`
	Error        *wireError    `json:"error,omitempty"`
}

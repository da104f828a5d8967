package orchestrate

import "github.com/amplifier-run/amplifier/llm"

// toLLMMessages converts the generic dict-shaped history a ContextManager
// hands back into the typed llm.Message the Provider Adapter expects.
// Supported shapes per map entry: {"role", "content"} for plain text turns;
// {"role": "assistant", "content", "tool_calls": [...]} for an assistant
// turn that requested tools; {"role": "tool", "tool_call_id", "content",
// "is_error"} for a tool result.
func toLLMMessages(history []map[string]any) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		out = append(out, toLLMMessage(msg))
	}
	return out
}

func toLLMMessage(msg map[string]any) llm.Message {
	role := llm.Role(stringField(msg, "role"))

	if role == llm.RoleTool {
		return llm.Message{
			Role: llm.RoleTool,
			Content: []llm.Block{llm.ToolResultBlock{
				ToolCallID: stringField(msg, "tool_call_id"),
				Output:     stringField(msg, "content"),
				IsError:    boolField(msg, "is_error"),
			}},
		}
	}

	var blocks []llm.Block
	if text := stringField(msg, "content"); text != "" {
		blocks = append(blocks, llm.TextBlock{Text: text})
	}
	for _, call := range toolCallField(msg, "tool_calls") {
		blocks = append(blocks, call)
	}

	return llm.Message{Role: role, Content: blocks}
}

// assistantMessage renders a completed assistant turn back into the dict
// shape toLLMMessage expects, so the next iteration's history round-trips.
func assistantMessage(msg llm.Message, calls []llm.ToolCallBlock) map[string]any {
	out := map[string]any{
		"role":    string(llm.RoleAssistant),
		"content": msg.Text(),
	}
	if len(calls) > 0 {
		toolCalls := make([]map[string]any, 0, len(calls))
		for _, c := range calls {
			toolCalls = append(toolCalls, map[string]any{
				"id":    c.ID,
				"name":  c.Name,
				"input": c.Input,
			})
		}
		out["tool_calls"] = toolCalls
	}
	return out
}

func toolResultMessage(toolCallID, output string, isError bool) map[string]any {
	return map[string]any{
		"role":         string(llm.RoleTool),
		"tool_call_id": toolCallID,
		"content":      output,
		"is_error":     isError,
	}
}

func stringField(msg map[string]any, key string) string {
	s, _ := msg[key].(string)
	return s
}

func boolField(msg map[string]any, key string) bool {
	b, _ := msg[key].(bool)
	return b
}

func toolCallField(msg map[string]any, key string) []llm.ToolCallBlock {
	raw, ok := msg[key].([]map[string]any)
	if !ok {
		return nil
	}
	calls := make([]llm.ToolCallBlock, 0, len(raw))
	for _, m := range raw {
		input, _ := m["input"].(map[string]any)
		calls = append(calls, llm.ToolCallBlock{
			ID:    stringField(m, "id"),
			Name:  stringField(m, "name"),
			Input: input,
		})
	}
	return calls
}

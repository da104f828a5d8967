package anthropic

import (
	"strings"

	"github.com/amplifier-run/amplifier/llm"
)

// toWireMessages converts internal messages to Anthropic wire format per
// §4.8's "Message conversion" rules, ported from pkg/llms/anthropic.go's
// buildRequest: system/developer messages collapse into a single system
// string, tool-result messages merge into a tool_result content block, and
// assistant tool calls carry a non-nil Input pointer.
func toWireMessages(messages []llm.Message) (system string, out []wireMessage) {
	var systemParts []string

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			if text := msg.Text(); text != "" {
				systemParts = append(systemParts, text)
			}
			continue

		case llm.RoleTool:
			for _, b := range msg.Content {
				tr, ok := b.(llm.ToolResultBlock)
				if !ok {
					continue
				}
				out = append(out, wireMessage{
					Role: "user",
					Content: []wireContent{{
						Type:      "tool_result",
						ToolUseID: tr.ToolCallID,
						Content:   tr.Output,
						IsError:   tr.IsError,
					}},
				})
			}
			continue

		case llm.RoleUser:
			out = append(out, wireMessage{Role: "user", Content: toWireContent(msg.Content)})

		case llm.RoleAssistant:
			out = append(out, wireMessage{Role: "assistant", Content: toWireContent(msg.Content)})
		}
	}

	return strings.Join(systemParts, "\n\n"), out
}

// toWireContent converts one message's content blocks, preserving order.
func toWireContent(blocks []llm.Block) []wireContent {
	content := make([]wireContent, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case llm.TextBlock:
			content = append(content, wireContent{Type: "text", Text: v.Text})

		case llm.ImageBlock:
			content = append(content, wireContent{
				Type: "image",
				Source: &wireImageSource{
					Type:      "base64",
					MediaType: v.MediaType,
					Data:      v.Data,
				},
			})

		case llm.ThinkingBlock:
			// Only echoed back, never authored by the caller, per §4.8.
			content = append(content, wireContent{Type: "thinking", Text: v.Text})

		case llm.ToolCallBlock:
			input := v.Input
			if input == nil {
				input = make(map[string]any)
			}
			content = append(content, wireContent{
				Type:  "tool_use",
				ID:    v.ID,
				Name:  v.Name,
				Input: &input,
			})
		}
	}
	return content
}

// fromWireResponse folds a complete Anthropic response into the shared
// ChatResponse shape, ported from pkg/llms/anthropic.go's content-extraction
// loop in Generate.
func fromWireResponse(resp *wireResponse) *llm.ChatResponse {
	var blocks []llm.Block
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, llm.TextBlock{Text: c.Text})
		case "thinking":
			blocks = append(blocks, llm.ThinkingBlock{Text: c.Text})
		case "tool_use":
			var input map[string]any
			if c.Input != nil {
				input = *c.Input
			}
			blocks = append(blocks, llm.ToolCallBlock{ID: c.ID, Name: c.Name, Input: input})
		}
	}

	return &llm.ChatResponse{
		Message:    llm.Message{Role: llm.RoleAssistant, Content: blocks},
		StopReason: toStopReason(resp.StopReason),
		Model:      resp.Model,
		Usage: llm.Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		},
	}
}

func toStopReason(raw string) llm.StopReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return llm.StopEndTurn
	case "tool_use":
		return llm.StopToolUse
	case "max_tokens":
		return llm.StopMaxTokens
	default:
		return llm.StopOther
	}
}

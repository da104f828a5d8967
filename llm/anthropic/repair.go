package anthropic

import "github.com/amplifier-run/amplifier/llm"

// repairRecord describes one synthesized tool result, reported in the
// provider:tool_sequence_repaired event payload.
type repairRecord struct {
	ToolCallID string
	ToolName   string
}

// repairDanglingToolCalls implements §4.8's "Tool-sequence repair": scans
// messages for ToolCallBlocks whose id never appears as a tool_call_id in a
// later ToolResultBlock, and splices a synthetic error result immediately
// after the originating assistant message.
//
// The splice happens on every call — the request sent to the wire must
// always pair every tool_use with a tool_result, and an upstream message
// store that drops the synthetic result would otherwise produce an invalid
// request on the very next turn. newlyRepaired holds only the ids not
// already present in seen, so the caller can emit the event exactly once
// per id even though the splice itself repeats.
func repairDanglingToolCalls(messages []llm.Message, seen map[string]bool) (repaired []llm.Message, newlyRepaired []repairRecord) {
	resultIDs := make(map[string]bool)
	for _, msg := range messages {
		if msg.Role != llm.RoleTool {
			continue
		}
		for _, b := range msg.Content {
			if tr, ok := b.(llm.ToolResultBlock); ok {
				resultIDs[tr.ToolCallID] = true
			}
		}
	}

	repaired = make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		repaired = append(repaired, msg)

		if msg.Role != llm.RoleAssistant {
			continue
		}
		for _, tc := range msg.ToolCalls() {
			if resultIDs[tc.ID] {
				continue
			}
			repaired = append(repaired, llm.Message{
				Role: llm.RoleTool,
				Content: []llm.Block{llm.ToolResultBlock{
					ToolCallID: tc.ID,
					Output:     "<no result recorded>",
					IsError:    true,
				}},
			})
			if !seen[tc.ID] {
				seen[tc.ID] = true
				newlyRepaired = append(newlyRepaired, repairRecord{ToolCallID: tc.ID, ToolName: tc.Name})
			}
		}
	}

	return repaired, newlyRepaired
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageTextConcatenatesTextBlocksInOrder(t *testing.T) {
	m := Message{
		Role: RoleAssistant,
		Content: []Block{
			TextBlock{Text: "hello "},
			ToolCallBlock{ID: "t1", Name: "search"},
			TextBlock{Text: "world"},
		},
	}
	require.Equal(t, "hello world", m.Text())
}

func TestMessageToolCallsPreservesOrder(t *testing.T) {
	m := Message{
		Role: RoleAssistant,
		Content: []Block{
			ToolCallBlock{ID: "a"},
			TextBlock{Text: "x"},
			ToolCallBlock{ID: "b"},
		},
	}
	calls := m.ToolCalls()
	require.Len(t, calls, 2)
	require.Equal(t, "a", calls[0].ID)
	require.Equal(t, "b", calls[1].ID)
}

func TestBlockKindDiscriminators(t *testing.T) {
	require.Equal(t, BlockText, TextBlock{}.Kind())
	require.Equal(t, BlockImage, ImageBlock{}.Kind())
	require.Equal(t, BlockThinking, ThinkingBlock{}.Kind())
	require.Equal(t, BlockToolCall, ToolCallBlock{}.Kind())
	require.Equal(t, BlockToolResult, ToolResultBlock{}.Kind())
}

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amplifier-run/amplifier/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	p, err := New(Config{APIKey: "test-key", Model: "claude-opus-4-1-20250805", BaseURL: srv.URL})
	require.NoError(t, err)
	return p, srv
}

func TestCompleteReturnsTextResponse(t *testing.T) {
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireResponse{
			StopReason: "end_turn",
			Content:    []wireContent{{Type: "text", Text: "hello there"}},
			Usage:      wireUsage{InputTokens: 3, OutputTokens: 2},
		})
	})
	defer srv.Close()

	resp, err := p.Complete(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: []llm.Block{llm.TextBlock{Text: "hi"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Message.Text())
	require.Equal(t, llm.StopEndTurn, resp.StopReason)
}

func TestCompleteRetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{}`)
			return
		}
		_ = json.NewEncoder(w).Encode(wireResponse{
			StopReason: "end_turn",
			Content:    []wireContent{{Type: "text", Text: "ok now"}},
		})
	})
	defer srv.Close()
	p.retry = retryConfig{MaxRetries: 2, MinRetryDelay: 0, MaxRetryDelay: 0}

	resp, err := p.Complete(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: []llm.Block{llm.TextBlock{Text: "hi"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, "ok now", resp.Message.Text())
	require.Equal(t, 2, attempts)
}

func TestCompleteDoesNotRetryOnAuthError(t *testing.T) {
	attempts := 0
	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid x-api-key"}}`)
	})
	defer srv.Close()

	_, err := p.Complete(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: []llm.Block{llm.TextBlock{Text: "hi"}}}},
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	var authErr *llm.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestCompleteStreamFoldsTextAndToolCallDeltas(t *testing.T) {
	sse := "" +
		"data: {\"type\":\"message_start\",\"message\":{\"model\":\"claude-opus-4-1-20250805\",\"usage\":{\"input_tokens\":42,\"cache_read_input_tokens\":7,\"cache_creation_input_tokens\":3}}}\n\n" +
		"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\"}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Berlin is \"}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"nice\"}}\n\n" +
		"data: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
		"data: {\"type\":\"content_block_start\",\"index\":1,\"content_block\":{\"type\":\"tool_use\",\"id\":\"call_1\",\"name\":\"weather\"}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"lo\"}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"cation\\\": \\\"Berlin\\\"}\"}}\n\n" +
		"data: {\"type\":\"content_block_stop\",\"index\":1}\n\n" +
		"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"tool_use\"},\"usage\":{\"output_tokens\":12}}\n\n" +
		"data: {\"type\":\"message_stop\"}\n\n"

	p, srv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sse)
	})
	defer srv.Close()

	ch, err := p.CompleteStream(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: []llm.Block{llm.TextBlock{Text: "weather in berlin?"}}}},
	})
	require.NoError(t, err)

	var textDeltas string
	var final *llm.ChatResponse
	for ev := range ch {
		switch ev.Type {
		case llm.StreamContentBlockDelta:
			textDeltas += ev.TextDelta
		case llm.StreamMessageDone:
			final = ev.Response
		case llm.StreamError:
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
	}

	require.Equal(t, "Berlin is nice", textDeltas)
	require.NotNil(t, final)
	require.Equal(t, llm.StopToolUse, final.StopReason)
	calls := final.ToolCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "weather", calls[0].Name)
	require.Equal(t, "Berlin", calls[0].Input["location"])
	require.Equal(t, 12, final.Usage.OutputTokens)
	require.Equal(t, 42, final.Usage.InputTokens)
	require.Equal(t, 7, final.Usage.CacheReadTokens)
	require.Equal(t, 3, final.Usage.CacheWriteTokens)
}

func TestResolveThinkingLowEffortUsesFixedBudget(t *testing.T) {
	thinking, forceTemp := resolveThinking("claude-opus-4-1-20250805", llm.ChatRequest{ReasoningEffort: llm.ReasoningLow})
	require.True(t, forceTemp)
	require.Equal(t, "enabled", thinking.Type)
	require.Equal(t, 4096, thinking.BudgetTokens)
}

func TestResolveThinkingAbsentSendsNoThinkingParam(t *testing.T) {
	thinking, forceTemp := resolveThinking("claude-opus-4-1-20250805", llm.ChatRequest{})
	require.Nil(t, thinking)
	require.False(t, forceTemp)
}

func TestResolveThinkingUnsupportedModelNeverSendsThinking(t *testing.T) {
	thinking, forceTemp := resolveThinking("claude-3-5-sonnet-20241022", llm.ChatRequest{ReasoningEffort: llm.ReasoningHigh})
	require.Nil(t, thinking)
	require.False(t, forceTemp)
}

func TestResolveThinkingExplicitBudgetOverridesEffort(t *testing.T) {
	budget := 9000
	thinking, forceTemp := resolveThinking("claude-opus-4-1-20250805", llm.ChatRequest{
		ReasoningEffort:      llm.ReasoningLow,
		ThinkingBudgetTokens: &budget,
	})
	require.True(t, forceTemp)
	require.Equal(t, "enabled", thinking.Type)
	require.Equal(t, 9000, thinking.BudgetTokens)
}

func TestBuildWireRequestEmitsToolSequenceRepairedOnce(t *testing.T) {
	var emitted []string
	emitter := emitterFunc(func(event string, payload map[string]any) {
		emitted = append(emitted, event)
	})
	p, err := New(Config{APIKey: "k", Model: "claude-opus-4-1-20250805", Emitter: emitter})
	require.NoError(t, err)

	messages := []llm.Message{
		{Role: llm.RoleUser, Content: []llm.Block{llm.TextBlock{Text: "go"}}},
		assistantWithCall("call_1", "search"),
	}
	p.buildWireRequest(llm.ChatRequest{Messages: messages})
	p.buildWireRequest(llm.ChatRequest{Messages: messages})

	count := 0
	for _, e := range emitted {
		if e == "provider:tool_sequence_repaired" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

type emitterFunc func(event string, payload map[string]any)

func (f emitterFunc) Emit(event string, payload map[string]any) { f(event, payload) }

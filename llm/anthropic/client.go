// Package anthropic is the reference Provider Adapter, speaking the
// Anthropic Messages API. It is the spec's baseline for message conversion,
// reasoning/thinking handling, retry/error translation, and tool-sequence
// repair (§4.8), grounded file-for-file on the teacher's
// pkg/llms/anthropic.go and pkg/httpclient/client.go.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amplifier-run/amplifier/events"
	"github.com/amplifier-run/amplifier/llm"
)

const defaultBaseURL = "https://api.anthropic.com"

// Config configures a Provider.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // defaults to defaultBaseURL
	Timeout    time.Duration
	MaxRetries int
	Emitter    llm.EventEmitter // defaults to llm.NoopEmitter
}

// Provider implements llm.Provider against the Anthropic Messages API.
//
// repaired tracks tool_call ids already reported by a prior
// provider:tool_sequence_repaired emission, per §4.8: "Track the repaired
// ids in a set on the provider instance". It is single-threaded by the
// session constraint spec §5 documents ("the provider's _repaired_tool_ids
// set is single-threaded by session constraint").
type Provider struct {
	name       string
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      retryConfig
	emitter    llm.EventEmitter

	mu       sync.Mutex
	repaired map[string]bool
}

// New constructs a Provider. Model may be overridden per request via
// ChatRequest.Model.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = llm.NoopEmitter{}
	}

	retry := defaultRetryConfig
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &Provider{
		name:       "anthropic",
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		emitter:    emitter,
		repaired:   make(map[string]bool),
	}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) GetInfo() llm.ProviderInfo {
	return llm.ProviderInfo{
		ID:          p.name,
		DisplayName: "Anthropic",
		ConfigFields: map[string]any{
			"type":     "object",
			"required": []string{"api_key", "model"},
			"properties": map[string]any{
				"api_key": map[string]any{"type": "string"},
				"model":   map[string]any{"type": "string"},
			},
		},
	}
}

// ListModels returns the model ids this provider instance is willing to
// report as available for sub-session provider-preference resolution
// (§4.9). Anthropic has no public list-models endpoint in wide use at the
// time of writing, so this returns the table of ids the capability table
// recognizes, matching the teacher's practice of hardcoding known models
// in pkg/llms (see e.g. pkg/llms/gemini.go's static model list).
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	return []string{
		"claude-opus-4-1-20250805",
		"claude-sonnet-4-5-20250929",
		"claude-haiku-4-5-20251001",
		"claude-3-7-sonnet-20250219",
		"claude-3-5-sonnet-20241022",
	}, nil
}

func (p *Provider) buildWireRequest(req llm.ChatRequest) wireRequest {
	p.mu.Lock()
	messages, newlyRepaired := repairDanglingToolCalls(req.Messages, p.repaired)
	p.mu.Unlock()

	if len(newlyRepaired) > 0 {
		repairs := make([]map[string]any, len(newlyRepaired))
		for i, r := range newlyRepaired {
			repairs[i] = map[string]any{"tool_call_id": r.ToolCallID, "tool_name": r.ToolName}
		}
		p.emitter.Emit(events.ProviderToolSequenceRepaired, map[string]any{
			"provider":     p.name,
			"repair_count": len(newlyRepaired),
			"repairs":      repairs,
		})
	}

	system, wireMessages := toWireMessages(messages)

	model := req.Model
	if model == "" {
		model = p.model
	}

	wr := wireRequest{
		Model:     model,
		Messages:  wireMessages,
		MaxTokens: req.MaxTokens,
		Stream:    req.Stream,
		System:    system,
	}

	temp := req.Temperature
	thinking, forceTemp := resolveThinking(model, req)
	wr.Thinking = thinking
	if forceTemp {
		one := 1.0
		wr.Temperature = &one
	} else if temp != 0 {
		wr.Temperature = &temp
	}

	if len(req.Tools) > 0 {
		tools := make([]wireTool, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
		}
		wr.Tools = tools
	}

	if req.StructuredOutput != nil {
		schema := buildStructuredOutputPrompt(req.StructuredOutput)
		if wr.System != "" {
			wr.System += "\n\n" + schema
		} else {
			wr.System = schema
		}
	}

	return wr
}

// resolveThinking implements §4.8's reasoning_effort → thinking table and
// the kwargs overrides (ExtendedThinking, ThinkingBudgetTokens). Returns the
// thinking param to send (nil if none) and whether temperature must be
// forced to 1.0.
func resolveThinking(model string, req llm.ChatRequest) (*wireThinking, bool) {
	capability := GetCapability(model)
	if !capability.SupportsThinking {
		return nil, false
	}

	if req.ExtendedThinking != nil && !*req.ExtendedThinking {
		return nil, false
	}

	budget := capability.DefaultThinkingBudget
	wantThinking := req.ExtendedThinking != nil && *req.ExtendedThinking

	switch req.ReasoningEffort {
	case llm.ReasoningLow:
		budget = 4096
		wantThinking = true
	case llm.ReasoningMedium, llm.ReasoningHigh:
		wantThinking = true
	}

	if req.ThinkingBudgetTokens != nil {
		budget = *req.ThinkingBudgetTokens
		wantThinking = true
	}

	if !wantThinking {
		return nil, false
	}

	if capability.SupportsAdaptiveThinking && (req.ReasoningEffort == llm.ReasoningMedium || req.ReasoningEffort == llm.ReasoningHigh) && req.ThinkingBudgetTokens == nil {
		return &wireThinking{Type: "adaptive"}, true
	}
	return &wireThinking{Type: "enabled", BudgetTokens: budget}, true
}

func buildStructuredOutputPrompt(cfg *llm.StructuredOutputConfig) string {
	schemaJSON, err := json.MarshalIndent(cfg.Schema, "", "  ")
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`You must respond with valid JSON matching this exact schema:

%s

Important:
- Output ONLY valid JSON, no other text
- All required fields must be present
- Follow the exact structure specified
- Use correct data types for each field`, string(schemaJSON))
}

func (p *Provider) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return req, nil
}

// Complete implements llm.Provider's non-streaming call.
func (p *Provider) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	req.Stream = false
	wr := p.buildWireRequest(req)

	body, err := json.Marshal(wr)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		return p.newHTTPRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	var wireResp wireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if wireResp.Error != nil {
		return nil, llm.NewError(p.name, wireResp.Error.Message, nil)
	}

	return fromWireResponse(&wireResp), nil
}

// CompleteStream implements llm.Provider's streaming call, folding SSE
// events into llm.StreamEvent values and a terminal StreamMessageDone
// carrying the same ChatResponse Complete would have returned.
//
// Ported from pkg/llms/anthropic.go's makeStreamingRequest: tool call
// arguments arrive as fragmented JSON strings accumulated per content-block
// index until content_block_stop.
func (p *Provider) CompleteStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	req.Stream = true
	wr := p.buildWireRequest(req)

	body, err := json.Marshal(wr)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		return p.newHTTPRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamEvent, 64)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		if err := p.foldStream(ctx, resp.Body, out); err != nil {
			out <- llm.StreamEvent{Type: llm.StreamError, Err: err}
		}
	}()
	return out, nil
}

func (p *Provider) foldStream(ctx context.Context, body io.Reader, out chan<- llm.StreamEvent) error {
	var blocks []llm.Block
	blockIndex := make(map[int]int) // stream index -> position in blocks
	toolJSONBuffers := make(map[int]string)
	var usage wireUsage
	var stopReason string
	var model string

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var ev wireStreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return fmt.Errorf("anthropic: decode stream event: %w", err)
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				model = ev.Message.Model
				usage.InputTokens = ev.Message.Usage.InputTokens
				usage.CacheReadInputTokens = ev.Message.Usage.CacheReadInputTokens
				usage.CacheCreationInputTokens = ev.Message.Usage.CacheCreationInputTokens
			}

		case "content_block_start":
			if ev.ContentBlock == nil {
				continue
			}
			switch ev.ContentBlock.Type {
			case "text":
				blocks = append(blocks, llm.TextBlock{})
				blockIndex[ev.Index] = len(blocks) - 1
			case "thinking":
				blocks = append(blocks, llm.ThinkingBlock{})
				blockIndex[ev.Index] = len(blocks) - 1
			case "tool_use":
				blocks = append(blocks, llm.ToolCallBlock{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name})
				blockIndex[ev.Index] = len(blocks) - 1
				toolJSONBuffers[ev.Index] = ""
			}
			out <- llm.StreamEvent{Type: llm.StreamContentBlockStart}

		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			if ev.Delta.Text != "" {
				pos, ok := blockIndex[ev.Index]
				if ok {
					if tb, ok := blocks[pos].(llm.TextBlock); ok {
						tb.Text += ev.Delta.Text
						blocks[pos] = tb
					} else if th, ok := blocks[pos].(llm.ThinkingBlock); ok {
						th.Text += ev.Delta.Text
						blocks[pos] = th
					}
				}
				out <- llm.StreamEvent{Type: llm.StreamContentBlockDelta, TextDelta: ev.Delta.Text}
			}
			if ev.Delta.Type == "input_json_delta" && ev.Delta.PartialJSON != "" {
				toolJSONBuffers[ev.Index] += ev.Delta.PartialJSON
			}

		case "content_block_stop":
			pos, ok := blockIndex[ev.Index]
			if ok {
				if tc, ok := blocks[pos].(llm.ToolCallBlock); ok {
					if jsonStr := toolJSONBuffers[ev.Index]; jsonStr != "" {
						var input map[string]any
						if err := json.Unmarshal([]byte(jsonStr), &input); err == nil {
							tc.Input = input
							blocks[pos] = tc
						}
					}
					tcCopy := blocks[pos].(llm.ToolCallBlock)
					out <- llm.StreamEvent{Type: llm.StreamContentBlockStop, ToolCall: &tcCopy}
					continue
				}
			}
			out <- llm.StreamEvent{Type: llm.StreamContentBlockStop}

		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				stopReason = ev.Delta.StopReason
			}
			if ev.Usage != nil {
				usage.OutputTokens = ev.Usage.OutputTokens
			}

		case "message_stop":
			resp := &llm.ChatResponse{
				Message:    llm.Message{Role: llm.RoleAssistant, Content: blocks},
				StopReason: toStopReason(stopReason),
				Model:      model,
				Usage: llm.Usage{
					InputTokens:      usage.InputTokens,
					OutputTokens:     usage.OutputTokens,
					CacheReadTokens:  usage.CacheReadInputTokens,
					CacheWriteTokens: usage.CacheCreationInputTokens,
				},
			}
			out <- llm.StreamEvent{Type: llm.StreamMessageDone, Response: resp}
			return nil
		}
	}

	return scanner.Err()
}

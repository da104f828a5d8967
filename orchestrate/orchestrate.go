// Package orchestrate implements the Orchestrator Contract (§4.7): the loop
// driver a Session delegates Execute to. Basic runs the exact 5-step
// sequence the contract specifies — submit, add user message, select
// provider, loop provider/tool/hook until a non-tool response, complete —
// emitting the reserved prompt:*/tool:*/approval:* hook events at each step.
//
// Grounded on the teacher's pkg/agent/llmagent.Flow.runOneStep/
// handleToolCalls (preprocess → call model → handle tool calls → postprocess
// loop shape) and its approval-decision handling in flow.go
// (findApprovalRequiredToolIDs, checkApprovalDecision,
// preparePendingDenialMessages) — generalized from llmagent's ADK-style
// event stream into the hook-fold-driven deny/ask_user/modify contract this
// runtime uses instead.
package orchestrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amplifier-run/amplifier/hooks"
	"github.com/amplifier-run/amplifier/llm"
	"github.com/amplifier-run/amplifier/observability"
	"github.com/amplifier-run/amplifier/runtime"
)

var tracer = observability.Tracer("amplifier/orchestrate")

// Tool is the shape orchestrate needs from a tool instance mounted into a
// session's "tools" collection — defined consumer-side, the same pattern
// runtime.ContextManager/runtime.Orchestrator use for contextmgr/
// orchestrate themselves.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, args map[string]any) (llm.ToolResult, error)
}

// maxToolIterations bounds the provider/tool loop so a misbehaving model
// that never stops requesting tools cannot hang a session forever.
const maxToolIterations = 50

// Basic is the reference Orchestrator: first-available-provider selection
// (by configured priority, ties broken by id order) and a straight
// provider/tool/hook loop with no planning or sub-agent delegation layered
// on top.
type Basic struct {
	// ProviderPriority orders provider ids; providers not named here are
	// tried afterward in ascending id order.
	ProviderPriority []string
}

// NewBasic returns a Basic orchestrator preferring providers in the given
// order.
func NewBasic(providerPriority ...string) *Basic {
	return &Basic{ProviderPriority: providerPriority}
}

var _ runtime.Orchestrator = (*Basic)(nil)

// Execute runs the 5-step loop described in the package doc.
func (b *Basic) Execute(
	ctx context.Context,
	prompt string,
	cm runtime.ContextManager,
	providers map[string]any,
	tools map[string]any,
	hookRegistry *hooks.Registry,
	coordinator *runtime.Coordinator,
) (string, error) {
	start := time.Now()
	emit(ctx, hookRegistry, "prompt:submit", map[string]any{"prompt": prompt})

	if err := cm.AddMessage(ctx, map[string]any{"role": "user", "content": prompt}); err != nil {
		return "", fmt.Errorf("orchestrate: adding user message: %w", err)
	}

	providerName, provider, err := selectProvider(providers, b.ProviderPriority)
	if err != nil {
		return "", err
	}

	toolSet := resolveTools(tools)
	toolDefs := toolDefinitions(toolSet)

	var finalText string
	for iteration := 0; ; iteration++ {
		if iteration >= maxToolIterations {
			return "", fmt.Errorf("orchestrate: exceeded %d provider/tool iterations without a final response", maxToolIterations)
		}

		history, err := cm.GetMessagesForRequest(ctx, providerName)
		if err != nil {
			return "", fmt.Errorf("orchestrate: fetching context: %w", err)
		}

		// Model selection is out of scope for the loop driver itself — a
		// blank Model defers to the provider's own default, the same way a
		// model only gets pinned explicitly via subsession spawning (§4.9).
		resp, err := completeWithSpan(ctx, providerName, provider, llm.ChatRequest{
			Messages: toLLMMessages(history),
			Tools:    toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("orchestrate: provider %s: %w", providerName, err)
		}

		calls := llm.ParseToolCalls(resp)
		if err := cm.AddMessage(ctx, assistantMessage(resp.Message, calls)); err != nil {
			return "", fmt.Errorf("orchestrate: recording assistant turn: %w", err)
		}

		if len(calls) == 0 {
			finalText = resp.Message.Text()
			break
		}

		for _, call := range calls {
			result := b.runToolCall(ctx, hookRegistry, toolSet, call)
			if err := cm.AddMessage(ctx, result); err != nil {
				return "", fmt.Errorf("orchestrate: recording tool result: %w", err)
			}
		}
	}

	emit(ctx, hookRegistry, "prompt:complete", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return finalText, nil
}

// runToolCall carries one tool call through tool:pre, the hook fold's
// deny/ask_user/modify handling, execution, and tool:post, returning the
// ToolResultBlock-shaped message to append to context.
func (b *Basic) runToolCall(ctx context.Context, hookRegistry *hooks.Registry, toolSet map[string]Tool, call llm.ToolCallBlock) map[string]any {
	preResult := emitResult(ctx, hookRegistry, "tool:pre", map[string]any{
		"tool": call.Name,
		"args": call.Input,
	})

	args := call.Input
	switch preResult.Action {
	case hooks.ActionDeny:
		emit(ctx, hookRegistry, "approval:denied", map[string]any{"tool": call.Name, "reason": preResult.Reason})
		return toolResultMessage(call.ID, fmt.Sprintf("denied: %s", preResult.Reason), true)
	case hooks.ActionAskUser:
		if !approved(preResult) {
			emit(ctx, hookRegistry, "approval:denied", map[string]any{"tool": call.Name})
			return toolResultMessage(call.ID, "denied: approval was not granted", true)
		}
		emit(ctx, hookRegistry, "approval:granted", map[string]any{"tool": call.Name})
		if modified, ok := preResult.Data["args"].(map[string]any); ok {
			args = modified
		}
	case hooks.ActionModify:
		if modified, ok := preResult.Data["args"].(map[string]any); ok {
			args = modified
		}
	}

	tool, ok := toolSet[call.Name]
	if !ok {
		emit(ctx, hookRegistry, "tool:error", map[string]any{"tool": call.Name, "error": "unknown tool"})
		return toolResultMessage(call.ID, fmt.Sprintf("unknown tool %q", call.Name), true)
	}

	result, err := executeWithSpan(ctx, call.Name, tool, args)
	if err != nil {
		emit(ctx, hookRegistry, "tool:error", map[string]any{"tool": call.Name, "error": err.Error()})
		return toolResultMessage(call.ID, err.Error(), true)
	}

	emit(ctx, hookRegistry, "tool:post", map[string]any{"tool": call.Name, "result": result.Output, "success": result.Success})
	return toolResultMessage(call.ID, result.Output, !result.Success)
}

// completeWithSpan wraps a provider call in an OTel span named after the
// provider, per §5's "spans wrap provider calls and tool executions".
func completeWithSpan(ctx context.Context, providerName string, provider llm.Provider, req llm.ChatRequest) (*llm.ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "provider.complete", trace.WithAttributes(attribute.String("provider", providerName)))
	defer span.End()

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

// executeWithSpan wraps a tool execution in an OTel span named after the
// tool.
func executeWithSpan(ctx context.Context, toolName string, tool Tool, args map[string]any) (llm.ToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.execute", trace.WithAttributes(attribute.String("tool", toolName)))
	defer span.End()

	result, err := tool.Execute(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// approved reads the ask_user decision out of a hook Result's
// ApprovalFields, defaulting to not-approved when the field is absent —
// a handler that blocks on a human's decision must set this explicitly.
func approved(r hooks.Result) bool {
	if r.ApprovalFields == nil {
		return false
	}
	v, _ := r.ApprovalFields["approved"].(bool)
	return v
}

func emit(ctx context.Context, hookRegistry *hooks.Registry, event string, data map[string]any) {
	if hookRegistry == nil {
		return
	}
	_, _ = hookRegistry.Emit(ctx, event, data)
}

func emitResult(ctx context.Context, hookRegistry *hooks.Registry, event string, data map[string]any) hooks.Result {
	if hookRegistry == nil {
		return hooks.Result{Action: hooks.ActionContinue}
	}
	result, _ := hookRegistry.Emit(ctx, event, data)
	return result
}

func selectProvider(providers map[string]any, priority []string) (string, llm.Provider, error) {
	tried := make(map[string]bool, len(priority))
	for _, name := range priority {
		tried[name] = true
		if p, ok := asProvider(providers[name]); ok {
			return name, p, nil
		}
	}

	var rest []string
	for name := range providers {
		if !tried[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		if p, ok := asProvider(providers[name]); ok {
			return name, p, nil
		}
	}

	return "", nil, fmt.Errorf("orchestrate: no usable provider mounted")
}

func asProvider(v any) (llm.Provider, bool) {
	p, ok := v.(llm.Provider)
	return p, ok
}

func resolveTools(tools map[string]any) map[string]Tool {
	out := make(map[string]Tool, len(tools))
	for name, v := range tools {
		if t, ok := v.(Tool); ok {
			out[name] = t
		}
	}
	return out
}

func toolDefinitions(toolSet map[string]Tool) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(toolSet))
	for _, t := range toolSet {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Package events names the closed set of canonical events the core and its
// Provider Adapter reference implementation emit, per spec §6 "Event names
// (canonical)". Modules may emit additional events; these are reserved.
package events

const (
	SessionStart = "session:start"
	SessionEnd   = "session:end"

	PromptSubmit   = "prompt:submit"
	PromptComplete = "prompt:complete"

	PlanStart = "plan:start"
	PlanEnd   = "plan:end"

	ProviderRequest              = "provider:request"
	ProviderResponse             = "provider:response"
	ProviderError                = "provider:error"
	ProviderRetry                = "provider:retry"
	ProviderToolSequenceRepaired = "provider:tool_sequence_repaired"

	ContentBlockStart = "content_block:start"
	ContentBlockDelta = "content_block:delta"
	ContentBlockEnd   = "content_block:end"

	ToolPre   = "tool:pre"
	ToolPost  = "tool:post"
	ToolError = "tool:error"

	ContextPreCompact  = "context:pre_compact"
	ContextPostCompact = "context:post_compact"

	ArtifactWrite = "artifact:write"
	ArtifactRead  = "artifact:read"

	PolicyViolation = "policy:violation"

	ApprovalRequired = "approval:required"
	ApprovalGranted  = "approval:granted"
	ApprovalDenied   = "approval:denied"

	OrchestratorTurnComplete = "orchestrator:turn_complete"
)

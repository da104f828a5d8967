// Package contextmgr implements the Context Manager Contract (§4.6): the
// interface an orchestrator uses to append, read back, and compact the
// message history a provider sees on each turn.
//
// Grounded on the teacher's pkg/agent.ContextManager (token-aware
// PrepareContext/GetContextStats/CompressContext) and
// pkg/memory.SummaryBufferStrategy (budget/threshold/target token-window
// compaction, minimum-recent-messages guarantee), collapsed into a single
// in-memory reference implementation since this package owns no LLM-backed
// summarizer of its own — compaction here is truncation-to-budget only, the
// same fallback path the teacher's CompressContext takes when no
// summarizer is configured.
package contextmgr

import "context"

// Manager is the contract an Orchestrator needs from a context manager.
// Its method set matches runtime.ContextManager exactly so a *Simple (or
// any other implementation) satisfies that consumer-side interface without
// either package importing the other.
type Manager interface {
	AddMessage(ctx context.Context, msg map[string]any) error
	GetMessages() []map[string]any
	GetMessagesForRequest(ctx context.Context, provider string) ([]map[string]any, error)
	Clear()
}

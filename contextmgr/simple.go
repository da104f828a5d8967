package contextmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/amplifier-run/amplifier/hooks"
)

const (
	defaultModel             = "gpt-4o"
	defaultBudget            = 8000
	defaultThreshold         = 0.85
	defaultTarget            = 0.7
	defaultMinRecent         = 10
	minMessagesBeforeCompact = 20
)

// Config configures a Simple context manager's token budget and the
// truncation-to-target behavior that fires once that budget is exceeded.
type Config struct {
	// Model selects the token encoding used to estimate message cost.
	// Defaults to "gpt-4o" (cl100k_base via tiktoken's model fallback).
	Model string

	// Budget is the token budget. ShouldCompact reports true once the
	// estimated token count exceeds Budget*Threshold and at least
	// minMessagesBeforeCompact messages are held.
	Budget int

	// Threshold is the fraction of Budget that triggers compaction.
	Threshold float64

	// Target is the fraction of Budget messages are trimmed back down to.
	Target float64

	// MinRecentMessages is always kept regardless of token budget.
	MinRecentMessages int

	// Hooks, if set, receives context:pre_compact/context:post_compact
	// around every compaction pass.
	Hooks *hooks.Registry
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Budget <= 0 {
		c.Budget = defaultBudget
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = defaultThreshold
	}
	if c.Target <= 0 || c.Target > 1 {
		c.Target = defaultTarget
	}
	if c.MinRecentMessages <= 0 {
		c.MinRecentMessages = defaultMinRecent
	}
	return c
}

// Simple is an in-memory Manager: add_message/get_messages/
// get_messages_for_request/clear plus the contract's optional
// _should_compact/_compact_internal pair, exposed as exported methods.
// Compaction truncates from the oldest message forward once the token
// budget's threshold is crossed; it never summarizes, matching the
// teacher's own fallback path when no summarizer is configured.
type Simple struct {
	mu       sync.Mutex
	messages []map[string]any

	tokenCounter *tokenCounter
	cfg          Config
}

// NewSimple builds a Simple context manager. cfg's zero values fall back to
// the defaults documented on Config.
func NewSimple(cfg Config) (*Simple, error) {
	cfg = cfg.withDefaults()

	tc, err := newTokenCounter(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("contextmgr: %w", err)
	}

	return &Simple{
		tokenCounter: tc,
		cfg:          cfg,
	}, nil
}

// AddMessage appends msg, preserving history order. No message is ever
// silently dropped here; compaction is applied only by ShouldCompact/
// CompactInternal, invoked from GetMessagesForRequest.
func (s *Simple) AddMessage(ctx context.Context, msg map[string]any) error {
	if msg == nil {
		return fmt.Errorf("contextmgr: cannot add a nil message")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// GetMessages returns every message currently held, in order.
func (s *Simple) GetMessages() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.messages...)
}

// GetMessagesForRequest returns the messages to send to provider. Simple
// applies no provider-specific shaping; it compacts in place first if the
// token budget's threshold has been crossed.
func (s *Simple) GetMessagesForRequest(ctx context.Context, provider string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldCompactLocked() {
		s.compactInternalLocked(ctx)
	}
	return append([]map[string]any(nil), s.messages...), nil
}

// Clear removes all messages, for session forks.
func (s *Simple) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// ShouldCompact reports whether the held messages exceed the configured
// budget's threshold.
func (s *Simple) ShouldCompact() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldCompactLocked()
}

func (s *Simple) shouldCompactLocked() bool {
	if len(s.messages) < minMessagesBeforeCompact {
		return false
	}
	tokens := s.tokenCounter.countAll(s.messages)
	return float64(tokens) > float64(s.cfg.Budget)*s.cfg.Threshold
}

// CompactInternal trims the held messages back down to the target budget,
// always keeping at least MinRecentMessages of the most recent entries.
func (s *Simple) CompactInternal(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compactInternalLocked(ctx)
}

func (s *Simple) compactInternalLocked(ctx context.Context) {
	before := len(s.messages)
	s.emitHook(ctx, "context:pre_compact", map[string]any{"message_count": before})

	s.messages = s.selectWithinBudget(s.messages, int(float64(s.cfg.Budget)*s.cfg.Target))

	s.emitHook(ctx, "context:post_compact", map[string]any{
		"message_count_before": before,
		"message_count_after":  len(s.messages),
	})
}

func (s *Simple) emitHook(ctx context.Context, event string, data map[string]any) {
	if s.cfg.Hooks == nil {
		return
	}
	_, _ = s.cfg.Hooks.Emit(ctx, event, data)
}

// selectWithinBudget keeps the most recent messages that fit budget,
// working backwards from the end, with a floor of MinRecentMessages.
func (s *Simple) selectWithinBudget(messages []map[string]any, budget int) []map[string]any {
	if len(messages) <= s.cfg.MinRecentMessages {
		return messages
	}

	var selected []map[string]any
	tokens := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := s.tokenCounter.count(stringField(messages[i], "role"), stringField(messages[i], "content"))
		if tokens+cost > budget && len(selected) >= s.cfg.MinRecentMessages {
			break
		}
		selected = append([]map[string]any{messages[i]}, selected...)
		tokens += cost
	}
	return selected
}

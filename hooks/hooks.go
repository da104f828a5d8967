// Package hooks implements the Hook Registry (§4.4): handler registration
// with priority ordering, default-field merging, and the action-precedence
// fold that turns an ordered sequence of handler results into a single
// aggregate HookResult.
//
// Grounded on spec.md §4.4's fold table and pkg/registry/registry.go's
// RWMutex locking discipline — handlers may be registered during
// initialize and, per §5, by other handlers while emission is in flight,
// so registration and emission share one lock.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Action is a handler's requested effect on the running emission result.
type Action string

const (
	ActionContinue      Action = "continue"
	ActionDeny          Action = "deny"
	ActionAskUser       Action = "ask_user"
	ActionInjectContext Action = "inject_context"
	ActionModify        Action = "modify"
)

// Result is both a handler's return value and the registry's running
// aggregate across a fold.
type Result struct {
	Action Action
	Data   map[string]any

	// Reason carries a deny's human-readable explanation.
	Reason string
	// ApprovalFields carries ask_user's approval-request payload.
	ApprovalFields map[string]any
	// ContextInjection carries inject_context's text, concatenated across
	// handlers with a blank-line separator.
	ContextInjection string
}

// Handler observes or adjudicates an emitted event.
type Handler func(ctx context.Context, event string, data map[string]any) Result

type registration struct {
	name     string
	priority int
	handler  Handler
	seq      int // registration order, for stable sort on equal priority
}

// Registry is the app-facing hook bus: handlers register per event and are
// invoked, in priority order, by Emit/EmitAndCollect.
type Registry struct {
	mu            sync.RWMutex
	handlers      map[string][]*registration
	defaultFields map[string]any
	seq           int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string][]*registration)}
}

// Register installs handler for event at priority (lower runs first; ties
// broken by registration order), returning a function that unregisters it.
func (r *Registry) Register(event string, handler Handler, priority int, name string) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	reg := &registration{name: name, priority: priority, handler: handler, seq: r.seq}
	r.handlers[event] = append(r.handlers[event], reg)
	sortRegistrations(r.handlers[event])

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.handlers[event]
		for i, h := range list {
			if h == reg {
				r.handlers[event] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// On is a synonym for Register with the default priority (50).
func (r *Registry) On(event string, handler Handler) func() {
	return r.Register(event, handler, 50, "")
}

func sortRegistrations(list []*registration) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
}

// SetDefaultFields installs fields merged into every emitted payload before
// a handler runs; explicit payload fields set by the caller win over
// defaults of the same key.
func (r *Registry) SetDefaultFields(fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defaultFields == nil {
		r.defaultFields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		r.defaultFields[k] = v
	}
}

// HandlerInfo is a diagnostic snapshot of one registered handler.
type HandlerInfo struct {
	Event    string
	Name     string
	Priority int
}

// ListHandlers returns diagnostic info for every handler, optionally
// restricted to one event.
func (r *Registry) ListHandlers(event string) []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []HandlerInfo
	if event != "" {
		for _, h := range r.handlers[event] {
			out = append(out, HandlerInfo{Event: event, Name: h.name, Priority: h.priority})
		}
		return out
	}
	for ev, list := range r.handlers {
		for _, h := range list {
			out = append(out, HandlerInfo{Event: ev, Name: h.name, Priority: h.priority})
		}
	}
	return out
}

func (r *Registry) snapshot(event string) ([]*registration, map[string]any) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*registration, len(r.handlers[event]))
	copy(list, r.handlers[event])

	defaults := make(map[string]any, len(r.defaultFields))
	for k, v := range r.defaultFields {
		defaults[k] = v
	}
	return list, defaults
}

func mergedPayload(defaults, explicit map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(explicit))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range explicit {
		merged[k] = v
	}
	return merged
}

// Emit runs every handler registered for event, in priority order, folding
// their results into one aggregate per §4.4's action-precedence table.
// Handler panics are recovered and logged, never crashing emission. A
// context.Canceled/context.DeadlineExceeded error from a handler is
// recorded and returned only after every remaining handler has run.
func (r *Registry) Emit(ctx context.Context, event string, data map[string]any) (Result, error) {
	list, defaults := r.snapshot(event)
	merged := mergedPayload(defaults, data)

	agg := Result{Action: ActionContinue, Data: merged}
	var deferredCancel error

	for _, reg := range list {
		h, err := invokeHandler(ctx, reg.handler, event, merged)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if deferredCancel == nil {
					deferredCancel = err
				}
				continue
			}
			slog.Warn("hook handler error", "event", event, "handler", reg.name, "error", err)
			continue
		}
		agg = fold(agg, h)
		if h.Data != nil {
			merged = h.Data
		}
		if agg.Action == ActionDeny {
			break
		}
	}

	if deferredCancel != nil {
		return agg, deferredCancel
	}
	return agg, nil
}

// EmitAndCollect runs every handler for event and returns the ordered list
// of non-error data payloads each handler produced.
func (r *Registry) EmitAndCollect(ctx context.Context, event string, data map[string]any) ([]map[string]any, error) {
	list, defaults := r.snapshot(event)
	merged := mergedPayload(defaults, data)

	var collected []map[string]any
	var deferredCancel error

	for _, reg := range list {
		h, err := invokeHandler(ctx, reg.handler, event, merged)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if deferredCancel == nil {
					deferredCancel = err
				}
				continue
			}
			slog.Warn("hook handler error", "event", event, "handler", reg.name, "error", err)
			continue
		}
		if h.Data != nil {
			collected = append(collected, h.Data)
		}
	}

	if deferredCancel != nil {
		return collected, deferredCancel
	}
	return collected, nil
}

// invokeHandler runs handler, recovering a panic into an error so Emit
// never crashes because one handler misbehaves.
func invokeHandler(ctx context.Context, handler Handler, event string, data map[string]any) (result Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok && (errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded)) {
				err = e
				return
			}
			err = fmt.Errorf("hook handler panicked: %v", p)
		}
	}()
	return handler(ctx, event, data), nil
}

// fold applies one handler result H to the running aggregate R per §4.4's
// action-precedence table.
func fold(r, h Result) Result {
	switch h.Action {
	case ActionDeny:
		return Result{Action: ActionDeny, Data: r.Data, Reason: h.Reason}

	case ActionAskUser:
		if r.Action == ActionDeny {
			return r
		}
		r.Action = ActionAskUser
		r.ApprovalFields = h.ApprovalFields
		return r

	case ActionInjectContext:
		if r.Action == ActionDeny || r.Action == ActionAskUser {
			return r
		}
		r.Action = ActionInjectContext
		if r.ContextInjection == "" {
			r.ContextInjection = h.ContextInjection
		} else if h.ContextInjection != "" {
			r.ContextInjection = r.ContextInjection + "\n\n" + h.ContextInjection
		}
		return r

	case ActionModify:
		if r.Action == ActionContinue {
			r.Action = ActionModify
			if h.Data != nil {
				r.Data = h.Data
			}
		}
		return r

	default: // continue
		if h.Data != nil {
			r.Data = h.Data
		}
		return r
	}
}

package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func continueHandler(data map[string]any) Handler {
	return func(ctx context.Context, event string, in map[string]any) Result {
		return Result{Action: ActionContinue, Data: data}
	}
}

func TestEmitWithNoHandlersReturnsContinue(t *testing.T) {
	r := New()
	res, err := r.Emit(context.Background(), "prompt:submit", map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, ActionContinue, res.Action)
	require.Equal(t, 1, res.Data["a"])
}

func TestDenyShortCircuitsRemainingHandlers(t *testing.T) {
	r := New()
	var ranSecond bool

	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionDeny, Reason: "not allowed"}
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		ranSecond = true
		return Result{Action: ActionContinue}
	})

	res, err := r.Emit(context.Background(), "tool:pre", nil)
	require.NoError(t, err)
	require.Equal(t, ActionDeny, res.Action)
	require.Equal(t, "not allowed", res.Reason)
	require.False(t, ranSecond, "deny must short-circuit remaining handlers")
}

func TestAskUserIsStickyButDoesNotShortCircuit(t *testing.T) {
	r := New()
	var ranThird bool

	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionAskUser, ApprovalFields: map[string]any{"risk": "high"}}
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionInjectContext, ContextInjection: "extra context"}
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		ranThird = true
		return Result{Action: ActionContinue}
	})

	res, err := r.Emit(context.Background(), "tool:pre", nil)
	require.NoError(t, err)
	require.Equal(t, ActionAskUser, res.Action, "ask_user outranks inject_context/continue")
	require.Equal(t, map[string]any{"risk": "high"}, res.ApprovalFields)
	require.True(t, ranThird, "ask_user must not short-circuit")
}

func TestInjectContextConcatenatesAcrossHandlers(t *testing.T) {
	r := New()
	r.On("prompt:submit", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionInjectContext, ContextInjection: "first"}
	})
	r.On("prompt:submit", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionInjectContext, ContextInjection: "second"}
	})

	res, err := r.Emit(context.Background(), "prompt:submit", nil)
	require.NoError(t, err)
	require.Equal(t, ActionInjectContext, res.Action)
	require.Equal(t, "first\n\nsecond", res.ContextInjection)
}

func TestModifyOnlyAppliesWhileStillContinue(t *testing.T) {
	r := New()
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionModify, Data: map[string]any{"args": "modified-once"}}
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionModify, Data: map[string]any{"args": "modified-twice"}}
	})

	res, err := r.Emit(context.Background(), "tool:pre", nil)
	require.NoError(t, err)
	require.Equal(t, ActionModify, res.Action)
	require.Equal(t, "modified-once", res.Data["args"], "a second modify must not override the first")
}

func TestContinueAdoptsHandlerDataWhenProvided(t *testing.T) {
	r := New()
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionContinue, Data: map[string]any{"step": 1}}
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionContinue} // no Data: keeps R.Data
	})

	res, err := r.Emit(context.Background(), "tool:pre", nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Data["step"])
}

func TestHandlerPanicIsRecoveredAndDoesNotStopEmission(t *testing.T) {
	r := New()
	var ranSecond bool

	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		panic("boom")
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		ranSecond = true
		return Result{Action: ActionContinue}
	})

	res, err := r.Emit(context.Background(), "tool:pre", nil)
	require.NoError(t, err)
	require.Equal(t, ActionContinue, res.Action)
	require.True(t, ranSecond)
}

func TestCancellationErrorIsDeferredUntilAllHandlersRun(t *testing.T) {
	r := New()
	var ranSecond bool

	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		panic(context.Canceled)
	})
	r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		ranSecond = true
		return Result{Action: ActionContinue}
	})

	_, err := r.Emit(context.Background(), "tool:pre", nil)
	require.True(t, ranSecond, "remaining handlers must run before a cancellation is re-raised")
	require.True(t, errors.Is(err, context.Canceled) || err != nil)
}

func TestSetDefaultFieldsMergesUnlessOverriddenExplicitly(t *testing.T) {
	r := New()
	r.SetDefaultFields(map[string]any{"source": "bundle", "trace": "t1"})

	var seen map[string]any
	r.On("prompt:submit", func(ctx context.Context, event string, data map[string]any) Result {
		seen = data
		return Result{Action: ActionContinue, Data: data}
	})

	_, err := r.Emit(context.Background(), "prompt:submit", map[string]any{"trace": "explicit"})
	require.NoError(t, err)
	require.Equal(t, "bundle", seen["source"])
	require.Equal(t, "explicit", seen["trace"], "explicit payload field overrides default")
}

func TestRegisterReturnsWorkingUnregisterFunction(t *testing.T) {
	r := New()
	var called bool
	unregister := r.On("tool:pre", func(ctx context.Context, event string, data map[string]any) Result {
		called = true
		return Result{Action: ActionContinue}
	})

	unregister()

	_, err := r.Emit(context.Background(), "tool:pre", nil)
	require.NoError(t, err)
	require.False(t, called)
}

func TestHandlersRunInPriorityOrderThenRegistrationOrder(t *testing.T) {
	r := New()
	var order []string

	r.Register("e", func(ctx context.Context, event string, data map[string]any) Result {
		order = append(order, "low-priority-first-registered")
		return Result{Action: ActionContinue}
	}, 10, "a")
	r.Register("e", func(ctx context.Context, event string, data map[string]any) Result {
		order = append(order, "default-priority")
		return Result{Action: ActionContinue}
	}, 50, "b")
	r.Register("e", func(ctx context.Context, event string, data map[string]any) Result {
		order = append(order, "low-priority-second-registered")
		return Result{Action: ActionContinue}
	}, 10, "c")

	_, err := r.Emit(context.Background(), "e", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"low-priority-first-registered", "low-priority-second-registered", "default-priority"}, order)
}

func TestListHandlersFiltersByEvent(t *testing.T) {
	r := New()
	r.Register("a", continueHandler(nil), 50, "handler-a")
	r.Register("b", continueHandler(nil), 50, "handler-b")

	require.Len(t, r.ListHandlers("a"), 1)
	require.Len(t, r.ListHandlers(""), 2)
}

func TestEmitAndCollectReturnsOrderedNonNilPayloads(t *testing.T) {
	r := New()
	r.On("budget:report", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionContinue, Data: map[string]any{"from": "first"}}
	})
	r.On("budget:report", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionContinue} // no Data: excluded from collection
	})
	r.On("budget:report", func(ctx context.Context, event string, data map[string]any) Result {
		return Result{Action: ActionContinue, Data: map[string]any{"from": "third"}}
	})

	collected, err := r.EmitAndCollect(context.Background(), "budget:report", nil)
	require.NoError(t, err)
	require.Len(t, collected, 2)
	require.Equal(t, "first", collected[0]["from"])
	require.Equal(t, "third", collected[1]["from"])
}

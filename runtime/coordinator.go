// Package runtime implements the Module Coordinator & Session (§4.5): a
// mount-point registry for the five kinds of module a Session wires
// together (orchestrator, context, providers, tools, hooks), reverse-order
// cleanup, and the Session state machine that drives a single
// prompt/response lifecycle through them.
//
// Grounded on pkg/plugins/registry.go's PluginRegistry: mount/register/
// cleanup-in-reverse-order lifecycle and health-check-shaped readiness,
// widened from one plugin kind to the five mount-point kinds named above.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Coordinator is the mount-point registry a Session uses to assemble and
// tear down its providers, tools, hooks, orchestrator and context manager.
type Coordinator struct {
	mu sync.Mutex

	singletons  map[string]any
	collections map[string]map[string]any

	cleanups []func(context.Context) error

	contributors map[string][]namedContributor
}

type namedContributor struct {
	name     string
	callback func(context.Context) (any, error)
}

// NewCoordinator returns an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		singletons:   make(map[string]any),
		collections:  make(map[string]map[string]any),
		contributors: make(map[string][]namedContributor),
	}
}

// Mount records instance as the singleton for mountPoint (e.g.
// "orchestrator", "context"), replacing any previous occupant.
func (c *Coordinator) Mount(mountPoint string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[mountPoint] = instance
}

// Get returns the singleton mounted at mountPoint, if any.
func (c *Coordinator) Get(mountPoint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.singletons[mountPoint]
	return v, ok
}

// MountInto adds instance under id within collection (e.g. "providers",
// "tools", "hooks"), replacing any previous entry with the same id.
func (c *Coordinator) MountInto(collection, id string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collections[collection] == nil {
		c.collections[collection] = make(map[string]any)
	}
	c.collections[collection][id] = instance
}

// Collection returns a snapshot copy of every instance mounted into
// collection, keyed by id.
func (c *Coordinator) Collection(collection string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.collections[collection]
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// RegisterCleanup pushes fn onto the cleanup stack; Cleanup runs these in
// reverse registration order.
func (c *Coordinator) RegisterCleanup(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, fn)
}

// RegisterContributor joins channel under name; CollectContributions calls
// every joined callback, in registration order, each time the channel is
// collected.
func (c *Coordinator) RegisterContributor(channel, name string, callback func(context.Context) (any, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contributors[channel] = append(c.contributors[channel], namedContributor{name: name, callback: callback})
}

// CollectContributions calls every contributor joined to channel and
// returns the non-nil results in registration order. A contributor that
// returns a non-cancellation error is skipped (and logged); a cancellation
// error (context.Canceled/DeadlineExceeded) is remembered and returned only
// after every remaining contributor has run, alongside whatever was
// collected up to that point.
func (c *Coordinator) CollectContributions(ctx context.Context, channel string) ([]any, error) {
	c.mu.Lock()
	list := append([]namedContributor(nil), c.contributors[channel]...)
	c.mu.Unlock()

	var collected []any
	var deferredErr error

	for _, nc := range list {
		val, err := callContributor(ctx, nc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if deferredErr == nil {
					deferredErr = err
				}
				continue
			}
			slog.Warn("contributor error", "channel", channel, "name", nc.name, "error", err)
			continue
		}
		if val != nil {
			collected = append(collected, val)
		}
	}

	if deferredErr != nil {
		return collected, deferredErr
	}
	return collected, nil
}

func callContributor(ctx context.Context, nc namedContributor) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("contributor %s panicked: %v", nc.name, p)
		}
	}()
	return nc.callback(ctx)
}

// Cleanup runs every registered cleanup in reverse order. A regular error
// is logged and swallowed. A fatal interrupt (context.Canceled or
// context.DeadlineExceeded) is remembered and re-raised only after every
// registered cleanup has been attempted, so teardown is never cut short.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	fns := append([]func(context.Context) error(nil), c.cleanups...)
	c.mu.Unlock()

	var deferredErr error
	for i := len(fns) - 1; i >= 0; i-- {
		err := callCleanup(ctx, fns[i])
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if deferredErr == nil {
				deferredErr = err
			}
			continue
		}
		slog.Warn("cleanup error", "error", err)
	}
	return deferredErr
}

func callCleanup(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cleanup panicked: %v", p)
		}
	}()
	return fn(ctx)
}

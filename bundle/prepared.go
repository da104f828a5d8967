package bundle

import (
	"context"
	"fmt"

	"github.com/amplifier-run/amplifier/mentions"
	"github.com/amplifier-run/amplifier/modactivate"
)

// ActivatedModule pairs a mount-plan entry with its activated local path.
type ActivatedModule struct {
	ModuleEntry
	Local modactivate.LocalModule
}

// PreparedBundle is the result of bundle.Prepare(): every module entry
// resolved to a local path via the Activator, plus a mentions.Resolver
// that resolves @mentions against the bundle's own base path and its
// composed (already-flattened) namespaced context entries.
type PreparedBundle struct {
	Bundle *Bundle
	Plan   MountPlan

	Providers []ActivatedModule
	Tools     []ActivatedModule
	Hooks     []ActivatedModule

	Mentions *mentions.Resolver
}

// Prepare walks every provider/tool/hook module entry of b through
// activator, producing a MountPlan of locally-activated modules and a
// mentions.Resolver scoped to b's base path and composed context entries.
func Prepare(ctx context.Context, b *Bundle, activator *modactivate.Activator) (*PreparedBundle, error) {
	plan := b.ToMountPlan()

	providers, err := activateEntries(ctx, activator, plan.Providers)
	if err != nil {
		return nil, fmt.Errorf("prepare bundle %s: providers: %w", b.Name, err)
	}
	tools, err := activateEntries(ctx, activator, plan.Tools)
	if err != nil {
		return nil, fmt.Errorf("prepare bundle %s: tools: %w", b.Name, err)
	}
	hooks, err := activateEntries(ctx, activator, plan.Hooks)
	if err != nil {
		return nil, fmt.Errorf("prepare bundle %s: hooks: %w", b.Name, err)
	}

	return &PreparedBundle{
		Bundle:    b,
		Plan:      plan,
		Providers: providers,
		Tools:     tools,
		Hooks:     hooks,
		Mentions:  mentions.NewResolver(b, b.BasePath),
	}, nil
}

func activateEntries(ctx context.Context, activator *modactivate.Activator, entries []ModuleEntry) ([]ActivatedModule, error) {
	out := make([]ActivatedModule, 0, len(entries))
	for _, e := range entries {
		if e.Source == "" {
			out = append(out, ActivatedModule{ModuleEntry: e})
			continue
		}
		local, err := activator.Activate(ctx, e.Module, e.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, ActivatedModule{ModuleEntry: e, Local: local})
	}
	return out, nil
}

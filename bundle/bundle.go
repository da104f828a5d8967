// Package bundle implements the Bundle Loader, Composer, Registry, and
// PreparedBundle (§4.3): parsing bundle.md/bundle.yaml manifests, merging
// overlays by module id, caching composed bundles, and walking a bundle's
// module entries through the Module Activator to produce a mount plan.
//
// Grounded on original_source's amplifier_foundation/bundle.py (inferred
// from tests/test_bundle.py, since the original module itself wasn't
// retrieved) and dicts/merge.py (ported exactly into internal/dicts).
package bundle

import (
	"fmt"
	"path/filepath"
)

// ModuleEntry is one provider/tool/hook entry in a bundle: a module id
// plus its source URI and free-form config.
type ModuleEntry struct {
	Module string
	Source string
	Config map[string]any
}

func (e ModuleEntry) toMap() map[string]any {
	m := map[string]any{"module": e.Module}
	if e.Source != "" {
		m["source"] = e.Source
	}
	if e.Config != nil {
		m["config"] = e.Config
	}
	return m
}

func moduleEntryFromMap(m map[string]any) ModuleEntry {
	e := ModuleEntry{}
	if v, ok := m["module"].(string); ok {
		e.Module = v
	}
	if v, ok := m["source"].(string); ok {
		e.Source = v
	}
	if v, ok := m["config"].(map[string]any); ok {
		e.Config = v
	}
	return e
}

// Bundle is a composed agent configuration: session orchestrator/context
// choice, provider/tool/hook module lists, named sub-agents, and resolved
// context material.
type Bundle struct {
	Name        string
	Version     string
	Description string

	Session map[string]any

	Providers []ModuleEntry
	Tools     []ModuleEntry
	Hooks     []ModuleEntry
	Agents    map[string]any

	Includes []string

	// Context maps a resolved reference (a literal path, or an "ns:path"
	// key) to its resolved local filesystem path.
	Context map[string]string
	// PendingContext holds "ns:path" references not yet resolvable
	// because their namespace's base path isn't known until compose time.
	PendingContext map[string]string
	// SourceBasePaths maps a namespace name to the base path modules
	// under that namespace resolve relative-context references against.
	SourceBasePaths map[string]string

	Instruction string
	BasePath    string
}

// New creates a minimal bundle with defaults matching Bundle(name=...) in
// the original: version "1.0.0", empty module lists.
func New(name string) *Bundle {
	return &Bundle{
		Name:            name,
		Version:         "1.0.0",
		Context:         map[string]string{},
		PendingContext:  map[string]string{},
		SourceBasePaths: map[string]string{},
	}
}

// ValidationError reports a malformed bundle manifest field, including the
// bundle identity (name, falling back to its base path) for diagnosis.
type ValidationError struct {
	Bundle string
	Field  string
	Value  any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"bundle %q: %s: expected dict, got %T (%#v). Correct format: {module: \"...\", source: \"...\"}",
		e.Bundle, e.Field, e.Value, e.Value,
	)
}

// FromMap builds a Bundle from a parsed manifest (the merge of the
// "bundle:" block with top-level session/providers/tools/hooks/includes
// keys), validating that providers/tools/hooks entries are maps rather
// than bare strings.
func FromMap(data map[string]any, basePath string) (*Bundle, error) {
	meta, _ := data["bundle"].(map[string]any)

	name, _ := meta["name"].(string)
	identity := name
	if identity == "" {
		identity = basePath
	}

	b := New(name)
	b.BasePath = basePath
	if v, ok := meta["version"].(string); ok && v != "" {
		b.Version = v
	}
	if v, ok := meta["description"].(string); ok {
		b.Description = v
	}
	if v, ok := data["session"].(map[string]any); ok {
		b.Session = v
	}
	if v, ok := data["agents"].(map[string]any); ok {
		b.Agents = v
	}

	var err error
	if b.Providers, err = parseModuleList(data, "providers", identity); err != nil {
		return nil, err
	}
	if b.Tools, err = parseModuleList(data, "tools", identity); err != nil {
		return nil, err
	}
	if b.Hooks, err = parseModuleList(data, "hooks", identity); err != nil {
		return nil, err
	}

	if v, ok := data["includes"].([]any); ok {
		for _, item := range v {
			if s, ok := item.(string); ok {
				b.Includes = append(b.Includes, s)
			}
		}
	}

	if contextCfg, ok := data["context"].(map[string]any); ok {
		if include, ok := contextCfg["include"].([]any); ok {
			for _, item := range include {
				ref, ok := item.(string)
				if !ok {
					continue
				}
				parseContextRef(b, ref, basePath)
			}
		}
	}

	return b, nil
}

func parseModuleList(data map[string]any, key, identity string) ([]ModuleEntry, error) {
	raw, ok := data[key].([]any)
	if !ok {
		return nil, nil
	}
	entries := make([]ModuleEntry, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Bundle: identity, Field: fmt.Sprintf("%s[%d]", key, i), Value: item}
		}
		entries = append(entries, moduleEntryFromMap(m))
	}
	return entries, nil
}

// parseContextRef resolves a literal local path immediately, deferring
// "ns:path" references into PendingContext, per §4.3's Loader rule.
func parseContextRef(b *Bundle, ref, basePath string) {
	ns, path, isNamespaced := splitNamespaceRef(ref)
	if !isNamespaced {
		if basePath != "" {
			b.Context[ref] = filepath.Join(basePath, ref)
		}
		return
	}
	_ = ns
	_ = path
	b.PendingContext[ref] = ref
}

func splitNamespaceRef(ref string) (ns, path string, ok bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:], true
		}
		if ref[i] == '/' {
			break
		}
	}
	return "", "", false
}

// ResolveContextPath returns the resolved local path for a registered
// context reference, or "" if unknown.
func (b *Bundle) ResolveContextPath(ref string) (string, bool) {
	if p, ok := b.Context[ref]; ok {
		return p, true
	}
	return "", false
}

// ResolvePendingContext walks PendingContext and resolves each "ns:path"
// entry against SourceBasePaths[ns] (a self-reference where ns equals the
// bundle's own name resolves against BasePath instead).
func (b *Bundle) ResolvePendingContext() {
	for ref := range b.PendingContext {
		ns, path, ok := splitNamespaceRef(ref)
		if !ok {
			continue
		}
		base := b.SourceBasePaths[ns]
		if ns == b.Name && base == "" {
			base = b.BasePath
		}
		if base == "" {
			continue
		}
		b.Context[ref] = filepath.Join(base, path)
		delete(b.PendingContext, ref)
	}
}

// MountPlan is the flattened set of mount-point instructions a Bundle
// produces for the Coordinator: which orchestrator/context to use, which
// provider/tool/hook/agent entries to activate and mount, the resolved
// context-reference paths, and the instruction text to surface to the
// orchestrator as a system instruction (spec §3's
// "{session, providers, tools, hooks, agents, context_paths, instruction}").
type MountPlan struct {
	Session      map[string]any
	Providers    []ModuleEntry
	Tools        []ModuleEntry
	Hooks        []ModuleEntry
	Agents       map[string]any
	ContextPaths map[string]string
	Instruction  string
}

// ToMountPlan renders the bundle into the plan the Coordinator consumes.
// An entirely empty bundle produces a zero-value (empty) plan.
func (b *Bundle) ToMountPlan() MountPlan {
	return MountPlan{
		Session:      b.Session,
		Providers:    b.Providers,
		Tools:        b.Tools,
		Hooks:        b.Hooks,
		Agents:       b.Agents,
		ContextPaths: b.Context,
		Instruction:  b.Instruction,
	}
}

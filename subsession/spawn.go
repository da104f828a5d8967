package subsession

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/amplifier-run/amplifier/bundle"
	"github.com/amplifier-run/amplifier/llm"
)

// ProviderPreference orders provider/model selection when spawning a child
// session: the system tries each preference in order until one names a
// provider present in the mount plan. Model may be an exact model name or
// a glob pattern (e.g. "claude-haiku-*") resolved against the provider's
// available models.
type ProviderPreference struct {
	Provider string
	Model    string
}

// ModelResolutionResult is the outcome of resolving a (possibly glob)
// model hint against a provider's available models.
type ModelResolutionResult struct {
	ResolvedModel   string
	Pattern         string
	AvailableModels []string
	MatchedModels   []string
}

// isGlobPattern reports whether modelHint contains glob wildcard chars.
func isGlobPattern(modelHint string) bool {
	return strings.ContainsAny(modelHint, "*?[")
}

// ResolveModelPattern resolves a model hint to a concrete model name.
//
// If modelHint isn't a glob pattern it is returned as-is. Otherwise the
// named provider is queried for its available models, filtered with
// path.Match (fnmatch-equivalent), and the matches sorted descending
// lexically so the latest date- or semver-stamped model id wins; the
// first match is returned. If provider is unresolvable, reports no
// available models, or nothing matches, the pattern is returned
// unchanged.
func ResolveModelPattern(ctx context.Context, modelHint string, providerName string, providers map[string]llm.Provider) ModelResolutionResult {
	if !isGlobPattern(modelHint) {
		return ModelResolutionResult{ResolvedModel: modelHint}
	}

	if providerName == "" {
		return ModelResolutionResult{ResolvedModel: modelHint, Pattern: modelHint}
	}

	provider := findProviderInstance(providers, providerName)
	if provider == nil {
		return ModelResolutionResult{ResolvedModel: modelHint, Pattern: modelHint}
	}

	available, err := provider.ListModels(ctx)
	if err != nil || len(available) == 0 {
		return ModelResolutionResult{ResolvedModel: modelHint, Pattern: modelHint, AvailableModels: []string{}, MatchedModels: []string{}}
	}

	var matched []string
	for _, m := range available {
		if ok, _ := path.Match(modelHint, m); ok {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return ModelResolutionResult{ResolvedModel: modelHint, Pattern: modelHint, AvailableModels: available, MatchedModels: []string{}}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(matched)))
	return ModelResolutionResult{
		ResolvedModel:   matched[0],
		Pattern:         modelHint,
		AvailableModels: available,
		MatchedModels:   matched,
	}
}

// findProviderInstance looks up providerName in providers with flexible
// aliasing: "anthropic" matches both "anthropic" and "provider-anthropic".
func findProviderInstance(providers map[string]llm.Provider, providerName string) llm.Provider {
	for name, p := range providers {
		if providerName == name ||
			providerName == strings.TrimPrefix(name, "provider-") ||
			name == "provider-"+providerName {
			return p
		}
	}
	return nil
}

// buildProviderLookup maps every alias form of each entry's module id to
// its index, so repeated preference lookups don't re-scan the list.
func buildProviderLookup(entries []bundle.ModuleEntry) map[string]int {
	lookup := make(map[string]int, len(entries)*2)
	for i, e := range entries {
		lookup[e.Module] = i
		short := strings.TrimPrefix(e.Module, "provider-")
		if short != e.Module {
			lookup[short] = i
		}
		lookup["provider-"+short] = i
	}
	return lookup
}

// ApplyProviderPreferences scans plan.Providers for the first preference
// whose provider matches a mounted entry (by flexible aliasing), promotes
// that entry to config.priority=0 and sets config.model to the
// preference's (unresolved) model, and returns a new plan leaving the
// input untouched. A plan with no providers, or preferences matching
// nothing, is returned unchanged.
func ApplyProviderPreferences(plan bundle.MountPlan, preferences []ProviderPreference) bundle.MountPlan {
	if len(preferences) == 0 || len(plan.Providers) == 0 {
		return plan
	}

	lookup := buildProviderLookup(plan.Providers)
	for _, pref := range preferences {
		if idx, ok := lookup[pref.Provider]; ok {
			return applySingleOverride(plan, idx, pref.Model)
		}
	}
	return plan
}

// ApplyProviderPreferencesWithResolution behaves like
// ApplyProviderPreferences but additionally resolves a glob model pattern
// against the matched provider's live instance before applying the
// override.
func ApplyProviderPreferencesWithResolution(ctx context.Context, plan bundle.MountPlan, preferences []ProviderPreference, liveProviders map[string]llm.Provider) bundle.MountPlan {
	if len(preferences) == 0 || len(plan.Providers) == 0 {
		return plan
	}

	lookup := buildProviderLookup(plan.Providers)
	for _, pref := range preferences {
		idx, ok := lookup[pref.Provider]
		if !ok {
			continue
		}
		model := pref.Model
		if isGlobPattern(model) {
			model = ResolveModelPattern(ctx, model, pref.Provider, liveProviders).ResolvedModel
		}
		return applySingleOverride(plan, idx, model)
	}
	return plan
}

// InheritPackagePaths copies the parent bundle's base path and namespaced
// source base paths onto child, so relative @mention and context
// references in a spawned sub-session's bundle keep resolving against the
// parent's package layout instead of the child's own (possibly
// nonexistent) base path.
func InheritPackagePaths(parent, child *bundle.Bundle) {
	if child.BasePath == "" {
		child.BasePath = parent.BasePath
	}
	if child.SourceBasePaths == nil {
		child.SourceBasePaths = make(map[string]string, len(parent.SourceBasePaths))
	}
	for ns, base := range parent.SourceBasePaths {
		if _, exists := child.SourceBasePaths[ns]; !exists {
			child.SourceBasePaths[ns] = base
		}
	}
}

func applySingleOverride(plan bundle.MountPlan, targetIdx int, model string) bundle.MountPlan {
	newProviders := make([]bundle.ModuleEntry, len(plan.Providers))
	for i, e := range plan.Providers {
		cfg := make(map[string]any, len(e.Config)+2)
		for k, v := range e.Config {
			cfg[k] = v
		}
		if i == targetIdx {
			cfg["priority"] = 0
			cfg["model"] = model
		}
		newProviders[i] = bundle.ModuleEntry{Module: e.Module, Source: e.Source, Config: cfg}
	}

	newPlan := plan
	newPlan.Providers = newProviders
	return newPlan
}

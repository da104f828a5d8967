package bundle

import "github.com/amplifier-run/amplifier/internal/dicts"

// Compose merges base with each overlay in order, applying §4.3's merge
// rules table, then resolves pending context once every overlay's
// source_base_paths have been merged in.
func Compose(base *Bundle, overlays ...*Bundle) *Bundle {
	result := base
	for _, overlay := range overlays {
		result = composeOne(result, overlay)
	}
	result.ResolvePendingContext()
	return result
}

func composeOne(base, overlay *Bundle) *Bundle {
	out := New(overlay.Name)
	out.Version = pickNonEmpty(overlay.Version, base.Version)
	out.Description = pickNonEmpty(overlay.Description, base.Description)
	out.BasePath = pickNonEmpty(overlay.BasePath, base.BasePath)

	out.Session = dicts.DeepMerge(base.Session, overlay.Session)

	out.Providers = mergeEntries(base.Providers, overlay.Providers)
	out.Tools = mergeEntries(base.Tools, overlay.Tools)
	out.Hooks = mergeEntries(base.Hooks, overlay.Hooks)

	out.Agents = dicts.DeepMerge(base.Agents, overlay.Agents)

	// instruction: replace unless overlay is empty
	out.Instruction = base.Instruction
	if overlay.Instruction != "" {
		out.Instruction = overlay.Instruction
	}

	// includes are not merged — consumed during loading
	out.Includes = nil

	// context: union of resolved entries
	out.Context = unionStringMaps(base.Context, overlay.Context)
	out.PendingContext = unionStringMaps(base.PendingContext, overlay.PendingContext)
	// source_base_paths: union; later (overlay) wins on collision
	out.SourceBasePaths = unionStringMaps(base.SourceBasePaths, overlay.SourceBasePaths)

	return out
}

func mergeEntries(base, overlay []ModuleEntry) []ModuleEntry {
	baseMaps := make([]map[string]any, len(base))
	for i, e := range base {
		baseMaps[i] = e.toMap()
	}
	overlayMaps := make([]map[string]any, len(overlay))
	for i, e := range overlay {
		overlayMaps[i] = e.toMap()
	}

	merged := dicts.MergeModuleLists(baseMaps, overlayMaps)
	out := make([]ModuleEntry, 0, len(merged))
	for _, m := range merged {
		out = append(out, moduleEntryFromMap(m))
	}
	return out
}

func unionStringMaps(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func pickNonEmpty(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

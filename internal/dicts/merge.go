// Package dicts implements the deep-merge rules the Bundle Composer applies
// to session config and module lists.
//
// Grounded on original_source's amplifier_foundation/dicts/merge.py
// (deep_merge, merge_module_lists), ported exactly.
package dicts

// DeepMerge merges child over parent: for keys present in both where both
// values are maps, merges recursively; otherwise the child value wins.
// Neither input is mutated.
func DeepMerge(parent, child map[string]any) map[string]any {
	result := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		result[k] = v
	}
	for key, childValue := range child {
		if parentValue, ok := result[key]; ok {
			parentMap, parentIsMap := parentValue.(map[string]any)
			childMap, childIsMap := childValue.(map[string]any)
			if parentIsMap && childIsMap {
				result[key] = DeepMerge(parentMap, childMap)
				continue
			}
		}
		result[key] = childValue
	}
	return result
}

// MergeModuleLists merges two ordered lists of module entries
// (maps carrying a "module" id key) by that id: same id deep-merges
// (child wins), new ids are appended. Parent order is preserved, followed
// by newly introduced child entries in child order.
func MergeModuleLists(parent, child []map[string]any) []map[string]any {
	order := make([]string, 0, len(parent)+len(child))
	byID := make(map[string]map[string]any, len(parent)+len(child))

	for _, entry := range parent {
		id, _ := entry["module"].(string)
		if id == "" {
			continue
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = copyMap(entry)
	}

	for _, entry := range child {
		id, _ := entry["module"].(string)
		if id == "" {
			continue
		}
		if existing, ok := byID[id]; ok {
			byID[id] = DeepMerge(existing, entry)
		} else {
			order = append(order, id)
			byID[id] = copyMap(entry)
		}
	}

	out := make([]map[string]any, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

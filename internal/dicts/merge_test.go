package dicts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeepMergeRecursesIntoNestedMaps(t *testing.T) {
	parent := map[string]any{
		"context": map[string]any{"max_tokens": 100000},
	}
	child := map[string]any{
		"context": map[string]any{"max_tokens": 200000, "auto_compact": true},
	}

	got := DeepMerge(parent, child)
	require.Equal(t, map[string]any{
		"context": map[string]any{"max_tokens": 200000, "auto_compact": true},
	}, got)
}

func TestDeepMergeScalarAndListChildWins(t *testing.T) {
	parent := map[string]any{"a": []any{1, 2}, "b": "x"}
	child := map[string]any{"a": []any{3}, "b": "y"}

	got := DeepMerge(parent, child)
	require.Equal(t, []any{3}, got["a"])
	require.Equal(t, "y", got["b"])
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	parent := map[string]any{"a": map[string]any{"x": 1}}
	child := map[string]any{"a": map[string]any{"y": 2}}

	_ = DeepMerge(parent, child)
	require.Equal(t, map[string]any{"x": 1}, parent["a"])
	require.Equal(t, map[string]any{"y": 2}, child["a"])
}

func TestMergeModuleListsDeepMergesSameID(t *testing.T) {
	parent := []map[string]any{
		{"module": "loop-basic", "config": map[string]any{"priority": 1}},
	}
	child := []map[string]any{
		{"module": "loop-basic", "config": map[string]any{"model": "claude-3"}},
	}

	got := MergeModuleLists(parent, child)
	require.Len(t, got, 1)
	require.Equal(t, map[string]any{"priority": 1, "model": "claude-3"}, got[0]["config"])
}

func TestMergeModuleListsAppendsNewID(t *testing.T) {
	parent := []map[string]any{{"module": "a"}}
	child := []map[string]any{{"module": "b"}}

	got := MergeModuleLists(parent, child)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0]["module"])
	require.Equal(t, "b", got[1]["module"])
}

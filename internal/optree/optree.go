// Package optree merges and copies loosely typed option trees. Only
// map[string]any nodes are treated as branches; every other value is a leaf
// and is shared, not copied.
package optree

import (
	"strings"

	"github.com/knadh/koanf/maps"
)

// Clone copies every branch of the tree so later merges into the copy never
// reach the source. Leaves keep their identity.
func Clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		if branch, ok := value.(map[string]any); ok {
			out[key] = Clone(branch)
			continue
		}
		out[key] = value
	}
	return out
}

// Merge overlays the sources onto a fresh tree, left to right. When both sides
// hold a branch they merge recursively; otherwise the later value wins,
// slices included. Sources are not mutated.
func Merge(sources ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, src := range sources {
		if len(src) == 0 {
			continue
		}
		maps.Merge(Clone(src), out)
	}
	return out
}

// Set writes value at a dotted path, creating intermediate branches.
func Set(tree map[string]any, path string, value any) {
	if tree == nil || strings.TrimSpace(path) == "" {
		return
	}
	if branch, ok := value.(map[string]any); ok {
		value = Clone(branch)
	}
	maps.Merge(maps.Unflatten(map[string]any{path: value}, "."), tree)
}

// Get reads the value at a dotted path, or nil when any segment is missing.
func Get(tree map[string]any, path string) any {
	if tree == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	return maps.Search(tree, strings.Split(path, "."))
}

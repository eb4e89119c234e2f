// internal/engine/schema/paths.go
package schema

import (
	"sort"
	"strings"
)

// GetPath resolves a dotted path in an answer tree.
func GetPath(tree map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = tree
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetPath writes value at a dotted path, creating intermediate objects.
// An existing non-object value blocking the path is replaced.
func SetPath(tree map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Flatten turns a nested answer tree into a sorted list of (dotted leaf
// path, value) pairs. Arrays are treated as leaves: a write replaces the
// whole array. The ordering makes downstream merging deterministic.
func Flatten(tree map[string]interface{}) []PathValue {
	var out []PathValue
	flattenInto(tree, "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PathValue is one flattened leaf.
type PathValue struct {
	Path  string
	Value interface{}
}

func flattenInto(tree map[string]interface{}, prefix string, out *[]PathValue) {
	for key, value := range tree {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if obj, ok := value.(map[string]interface{}); ok && len(obj) > 0 {
			flattenInto(obj, path, out)
			continue
		}
		*out = append(*out, PathValue{Path: path, Value: value})
	}
}

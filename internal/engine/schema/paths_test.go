// internal/engine/schema/paths_test.go
package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPath(t *testing.T) {
	tree := map[string]interface{}{
		"applicant": map[string]interface{}{
			"contact": map[string]interface{}{"email": "jon@example.com"},
		},
		"tags": []interface{}{"a", "b"},
	}

	tests := []struct {
		name     string
		path     string
		want     interface{}
		wantOK   bool
	}{
		{name: "nested leaf", path: "applicant.contact.email", want: "jon@example.com", wantOK: true},
		{name: "intermediate object", path: "applicant.contact", want: map[string]interface{}{"email": "jon@example.com"}, wantOK: true},
		{name: "array leaf", path: "tags", want: []interface{}{"a", "b"}, wantOK: true},
		{name: "missing leaf", path: "applicant.contact.phone", wantOK: false},
		{name: "path through non-object", path: "tags.first", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetPath(tree, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSetPath(t *testing.T) {
	tree := map[string]interface{}{}
	SetPath(tree, "applicant.contact.email", "jon@example.com")
	SetPath(tree, "applicant.name", "Jon")

	value, ok := GetPath(tree, "applicant.contact.email")
	assert.True(t, ok)
	assert.Equal(t, "jon@example.com", value)

	value, ok = GetPath(tree, "applicant.name")
	assert.True(t, ok)
	assert.Equal(t, "Jon", value)
}

func TestFlatten_DeterministicOrder(t *testing.T) {
	tree := map[string]interface{}{
		"b": map[string]interface{}{"y": 2.0, "x": 1.0},
		"a": "first",
		"c": []interface{}{"kept", "whole"},
	}

	flat := Flatten(tree)

	paths := make([]string, 0, len(flat))
	for _, pv := range flat {
		paths = append(paths, pv.Path)
	}
	assert.Equal(t, []string{"a", "b.x", "b.y", "c"}, paths)
	assert.Equal(t, []interface{}{"kept", "whole"}, flat[3].Value)
}

// internal/template/validate.go
package template

import (
	"fmt"
	"sort"
	"strings"

	apperrors "application-engine/internal/common/errors"
	"application-engine/internal/engine/schema"
)

// Validate checks the template for completeness and determinism before
// it is admitted to the registry: every transition target must exist,
// every permitted event must be defined, lifecycle durations must be
// coherent and scope paths must resolve into the schema tree.
func (t *Template) Validate() error {
	var problems []string

	if t.TypeID == "" {
		problems = append(problems, "typeId is empty")
	}
	if t.Resolve == nil {
		problems = append(problems, "role resolver is not configured")
	}
	if _, ok := t.States[t.Initial]; !ok {
		problems = append(problems, fmt.Sprintf("initial state %q is not in the graph", t.Initial))
	}

	names := make([]string, 0, len(t.States))
	for name := range t.States {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		state := t.States[name]
		if state.Name != "" && state.Name != name {
			problems = append(problems, fmt.Sprintf("state %q declares mismatched name %q", name, state.Name))
		}

		switch state.Lifecycle.Kind {
		case PolicyEphemeral, PolicyDurable:
			if state.Lifecycle.TTL != 0 {
				problems = append(problems, fmt.Sprintf("state %q: %s policy must not carry a TTL", name, state.Lifecycle.Kind))
			}
		case PolicyTimeBoxed:
			if state.Lifecycle.TTL <= 0 {
				problems = append(problems, fmt.Sprintf("state %q: time-boxed policy requires a positive TTL", name))
			}
		default:
			problems = append(problems, fmt.Sprintf("state %q: unknown lifecycle policy %q", name, state.Lifecycle.Kind))
		}

		for event, tr := range state.Transitions {
			if tr.Event != "" && tr.Event != event {
				problems = append(problems, fmt.Sprintf("state %q: transition keyed %q declares event %q", name, event, tr.Event))
			}
			if _, ok := t.States[tr.Target]; !ok {
				problems = append(problems, fmt.Sprintf("state %q: event %s targets unknown state %q", name, event, tr.Target))
			}
		}

		for role, grant := range state.Roles {
			for _, event := range grant.Events {
				if event == EventDelete {
					continue
				}
				if _, ok := state.Transitions[event]; !ok {
					problems = append(problems, fmt.Sprintf("state %q: role %s is granted undefined event %s", name, role, event))
				}
			}
		}

		for _, path := range state.Scope {
			if !schemaHasPath(t.Schema, path) {
				problems = append(problems, fmt.Sprintf("state %q: scope path %q does not resolve in the schema", name, path))
			}
		}

		seen := make(map[string]struct{}, len(state.OnEntry))
		for _, decl := range state.OnEntry {
			if decl.Name == "" {
				problems = append(problems, fmt.Sprintf("state %q: on-entry fetch with empty provider name", name))
				continue
			}
			key := decl.DataKey()
			if _, dup := seen[key]; dup {
				problems = append(problems, fmt.Sprintf("state %q: duplicate external data key %q", name, key))
			}
			seen[key] = struct{}{}
		}
	}

	if len(problems) > 0 {
		return apperrors.NewTemplateInvalidError(t.TypeID, strings.Join(problems, "; "))
	}
	return nil
}

func schemaHasPath(node *schema.Node, path string) bool {
	if node == nil {
		return false
	}
	for _, part := range strings.Split(path, ".") {
		if node.Kind != schema.KindObject {
			return false
		}
		child, ok := node.Fields[part]
		if !ok {
			return node.Open
		}
		node = child
	}
	return true
}

// pkg/registry/schema.go
package registry

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"application-engine/internal/engine/schema"
	"application-engine/internal/template"
)

// Definition is the JSON shape of one application type. Files in the
// templates directory are validated against the meta-schema below
// before compilation, so malformed definitions fail at load time with
// a path-level message instead of a nil-pointer at runtime.
type Definition struct {
	TypeID  string              `json:"typeId"`
	Version string              `json:"version,omitempty"`
	Initial string              `json:"initial"`
	Roles   []RoleBinding       `json:"roles"`
	Schema  *schema.Node        `json:"schema"`
	States  map[string]StateDef `json:"states"`
}

// RoleBinding maps a role name to one of the built-in resolution
// strategies.
type RoleBinding struct {
	Role     string   `json:"role"`
	Strategy string   `json:"strategy"` // creator, assignee, answerRef, subjects
	Path     string   `json:"path,omitempty"`
	Subjects []string `json:"subjects,omitempty"`
}

type StateDef struct {
	Status      string                `json:"status"`
	Lifecycle   LifecycleDef          `json:"lifecycle"`
	Scope       []string              `json:"scope,omitempty"`
	Roles       map[string]GrantDef   `json:"roles,omitempty"`
	OnEntry     []ProviderDef         `json:"onEntry,omitempty"`
	OnExit      []template.EffectDecl `json:"onExit,omitempty"`
	Transitions []TransitionDef       `json:"transitions,omitempty"`
}

type LifecycleDef struct {
	Kind string `json:"kind"`
	TTL  string `json:"ttl,omitempty"`
}

type GrantDef struct {
	Events   []string `json:"events,omitempty"`
	Readable []string `json:"readable,omitempty"`
	Writable []string `json:"writable,omitempty"`
}

type ProviderDef struct {
	Name     string `json:"name"`
	Key      string `json:"key,omitempty"`
	Required bool   `json:"required,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type TransitionDef struct {
	Event  string `json:"event"`
	Target string `json:"target"`
	Guard  string `json:"guard,omitempty"`
	NoOp   bool   `json:"noOp,omitempty"`
}

const metaSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["typeId", "initial", "schema", "states"],
  "properties": {
    "typeId": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "initial": {"type": "string", "minLength": 1},
    "roles": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "strategy"],
        "properties": {
          "role": {"type": "string", "minLength": 1},
          "strategy": {"enum": ["creator", "assignee", "answerRef", "subjects"]},
          "path": {"type": "string"},
          "subjects": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "schema": {"type": "object"},
    "states": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "properties": {
          "status": {"enum": ["draft", "in-progress", "completed"]},
          "lifecycle": {
            "type": "object",
            "required": ["kind"],
            "properties": {
              "kind": {"enum": ["ephemeral", "time-boxed", "durable"]},
              "ttl": {"type": "string"}
            }
          },
          "scope": {"type": "array", "items": {"type": "string"}},
          "roles": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "properties": {
                "events": {"type": "array", "items": {"type": "string"}},
                "readable": {"type": "array", "items": {"type": "string"}},
                "writable": {"type": "array", "items": {"type": "string"}}
              }
            }
          },
          "onEntry": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "key": {"type": "string"},
                "required": {"type": "boolean"},
                "timeout": {"type": "string"}
              }
            }
          },
          "onExit": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "params": {"type": "object"}
              }
            }
          },
          "transitions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["event", "target"],
              "properties": {
                "event": {"type": "string", "minLength": 1},
                "target": {"type": "string", "minLength": 1},
                "guard": {"type": "string"},
                "noOp": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

// ValidateDefinition checks a raw definition document against the
// meta-schema.
func ValidateDefinition(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metaSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("definition validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msg := "invalid definition:"
	for _, desc := range result.Errors() {
		msg += fmt.Sprintf(" %s: %s;", desc.Field(), desc.Description())
	}
	return fmt.Errorf("%s", msg)
}

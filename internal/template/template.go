// Package template defines the immutable declarative description of one
// application type: its state graph, transition table, role grants,
// answer schema and lifecycle policies. Templates are compiled and
// validated once at load time and shared read-only by all instances.
package template

import (
	"time"

	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
)

// Role is a capability grant resolved per application from identity.
type Role string

// Event is a named transition symbol, e.g. SUBMIT or REJECT.
type Event string

// Built-in events with engine-level meaning.
const (
	EventDelete Event = "DELETE"
)

// StatusTag is the informational status of a state.
type StatusTag string

const (
	StatusDraft      StatusTag = "draft"
	StatusInProgress StatusTag = "in-progress"
	StatusCompleted  StatusTag = "completed"
)

// PolicyKind discriminates the lifecycle pruning policies.
type PolicyKind string

const (
	// PolicyEphemeral prunes on the next sweep; pre-application drafts
	// with no legal record value.
	PolicyEphemeral PolicyKind = "ephemeral"
	// PolicyTimeBoxed prunes a fixed duration after the commit.
	PolicyTimeBoxed PolicyKind = "time-boxed"
	// PolicyDurable never prunes.
	PolicyDurable PolicyKind = "durable"
)

// LifecyclePolicy is the pruning rule attached to a state.
type LifecyclePolicy struct {
	Kind PolicyKind    `json:"kind"`
	TTL  time.Duration `json:"ttl,omitempty"`
}

// FieldMask is a set of dotted answer paths a role may read or write.
// The entry "*" grants the whole tree; an entry grants its subtree.
type FieldMask []string

// Allows reports whether a concrete leaf path falls under the mask.
func (m FieldMask) Allows(path string) bool {
	for _, entry := range m {
		if entry == "*" || entry == path {
			return true
		}
		if len(path) > len(entry) && path[:len(entry)] == entry && path[len(entry)] == '.' {
			return true
		}
	}
	return false
}

// UnionMasks merges masks, deduplicating entries. Broader access from
// one grant is never reduced by another.
func UnionMasks(masks ...FieldMask) FieldMask {
	seen := make(map[string]struct{})
	var out FieldMask
	for _, m := range masks {
		for _, entry := range m {
			if _, ok := seen[entry]; ok {
				continue
			}
			seen[entry] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}

// RoleGrant is one role's row in a state's permission table.
type RoleGrant struct {
	Events   []Event   `json:"events,omitempty"`
	Readable FieldMask `json:"readable,omitempty"`
	Writable FieldMask `json:"writable,omitempty"`
}

// CanRaise reports whether the grant includes the event.
func (g RoleGrant) CanRaise(e Event) bool {
	for _, ev := range g.Events {
		if ev == e {
			return true
		}
	}
	return false
}

// Guard is a named boolean predicate over the application snapshot.
// The name is surfaced on rejection so callers can explain which
// condition failed.
type Guard struct {
	Name  string
	Check func(app *models.Application) bool
}

// ProviderDecl declares one on-entry external data fetch.
type ProviderDecl struct {
	Name     string        `json:"name"`
	Key      string        `json:"key,omitempty"` // externalData key, defaults to Name
	Required bool          `json:"required,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"` // 0 = orchestrator default
}

// DataKey returns the externalData key the fetch result lands under.
func (d ProviderDecl) DataKey() string {
	if d.Key != "" {
		return d.Key
	}
	return d.Name
}

// EffectDecl declares one on-exit side effect, executed after commit.
type EffectDecl struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Transition maps one event from a source state to exactly one target.
type Transition struct {
	Event  Event
	Target string
	Guard  *Guard
	// NoOp transitions acknowledge the event without committing
	// anything; used for idempotent re-delivery of callbacks.
	NoOp bool
}

// State is one node of the template's state graph.
type State struct {
	Name        string
	Status      StatusTag
	Lifecycle   LifecyclePolicy
	Roles       map[Role]RoleGrant
	Scope       schema.Scope // schema scope enforced when entering this state
	OnEntry     []ProviderDecl
	OnExit      []EffectDecl
	Transitions map[Event]Transition
}

// RoleResolver maps a caller identity to the roles it holds on one
// application. It must be a pure function of its arguments; no role may
// depend on session state outside the snapshot.
type RoleResolver func(id models.Identity, app *models.Application) []Role

// Template is the immutable definition of one application type.
type Template struct {
	TypeID  string
	Initial string
	States  map[string]State
	Schema  *schema.Node
	Resolve RoleResolver
}

// StateNamed returns the named state and whether it exists.
func (t *Template) StateNamed(name string) (State, bool) {
	s, ok := t.States[name]
	return s, ok
}

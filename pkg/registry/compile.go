// pkg/registry/compile.go
package registry

import (
	"fmt"
	"time"

	"application-engine/internal/engine/schema"
	"application-engine/internal/template"
)

// Compiler turns JSON definitions into runtime templates. Guard names
// referenced by definitions must be registered up front; providers and
// effects are resolved later by the engine's own registries.
type Compiler struct {
	guards map[string]template.Guard
}

func NewCompiler() *Compiler {
	return &Compiler{guards: make(map[string]template.Guard)}
}

// RegisterGuard makes a named guard available to definitions.
func (c *Compiler) RegisterGuard(g template.Guard) error {
	if g.Name == "" || g.Check == nil {
		return fmt.Errorf("guard needs a name and a check")
	}
	if _, exists := c.guards[g.Name]; exists {
		return fmt.Errorf("guard %q already registered", g.Name)
	}
	c.guards[g.Name] = g
	return nil
}

// Compile builds a runtime template from a definition. Structural
// validation happens afterwards through Template.Validate when the
// template is registered.
func (c *Compiler) Compile(def *Definition) (*template.Template, error) {
	resolver, err := c.compileRoles(def)
	if err != nil {
		return nil, err
	}

	states := make(map[string]template.State, len(def.States))
	for name, sd := range def.States {
		state, err := c.compileState(name, sd)
		if err != nil {
			return nil, fmt.Errorf("state %s: %w", name, err)
		}
		states[name] = state
	}

	return &template.Template{
		TypeID:  def.TypeID,
		Initial: def.Initial,
		States:  states,
		Schema:  def.Schema,
		Resolve: resolver,
	}, nil
}

func (c *Compiler) compileRoles(def *Definition) (template.RoleResolver, error) {
	resolvers := make([]template.RoleResolver, 0, len(def.Roles))
	for _, b := range def.Roles {
		role := template.Role(b.Role)
		switch b.Strategy {
		case "creator":
			resolvers = append(resolvers, template.CreatorAs(role))
		case "assignee":
			resolvers = append(resolvers, template.AssigneeAs(role))
		case "answerRef":
			if b.Path == "" {
				return nil, fmt.Errorf("role %s: answerRef strategy needs a path", b.Role)
			}
			resolvers = append(resolvers, template.AnswerRefAs(role, b.Path))
		case "subjects":
			if len(b.Subjects) == 0 {
				return nil, fmt.Errorf("role %s: subjects strategy needs subjects", b.Role)
			}
			resolvers = append(resolvers, template.SubjectsAs(role, b.Subjects...))
		default:
			return nil, fmt.Errorf("role %s: unknown strategy %q", b.Role, b.Strategy)
		}
	}
	return template.CombineResolvers(resolvers...), nil
}

func (c *Compiler) compileState(name string, sd StateDef) (template.State, error) {
	lifecycle, err := compileLifecycle(sd.Lifecycle)
	if err != nil {
		return template.State{}, err
	}

	roles := make(map[template.Role]template.RoleGrant, len(sd.Roles))
	for roleName, grant := range sd.Roles {
		events := make([]template.Event, 0, len(grant.Events))
		for _, e := range grant.Events {
			events = append(events, template.Event(e))
		}
		roles[template.Role(roleName)] = template.RoleGrant{
			Events:   events,
			Readable: template.FieldMask(grant.Readable),
			Writable: template.FieldMask(grant.Writable),
		}
	}

	onEntry := make([]template.ProviderDecl, 0, len(sd.OnEntry))
	for _, pd := range sd.OnEntry {
		decl := template.ProviderDecl{
			Name:     pd.Name,
			Key:      pd.Key,
			Required: pd.Required,
		}
		if pd.Timeout != "" {
			d, err := time.ParseDuration(pd.Timeout)
			if err != nil {
				return template.State{}, fmt.Errorf("provider %s: bad timeout %q", pd.Name, pd.Timeout)
			}
			decl.Timeout = d
		}
		onEntry = append(onEntry, decl)
	}

	transitions := make(map[template.Event]template.Transition, len(sd.Transitions))
	for _, td := range sd.Transitions {
		event := template.Event(td.Event)
		if _, dup := transitions[event]; dup {
			return template.State{}, fmt.Errorf("duplicate transition for event %s", td.Event)
		}
		tr := template.Transition{
			Event:  event,
			Target: td.Target,
			NoOp:   td.NoOp,
		}
		if td.Guard != "" {
			g, ok := c.guards[td.Guard]
			if !ok {
				return template.State{}, fmt.Errorf("unknown guard %q", td.Guard)
			}
			tr.Guard = &g
		}
		transitions[event] = tr
	}

	return template.State{
		Name:        name,
		Status:      template.StatusTag(sd.Status),
		Lifecycle:   lifecycle,
		Roles:       roles,
		Scope:       schema.Scope(sd.Scope),
		OnEntry:     onEntry,
		OnExit:      sd.OnExit,
		Transitions: transitions,
	}, nil
}

func compileLifecycle(ld LifecycleDef) (template.LifecyclePolicy, error) {
	policy := template.LifecyclePolicy{Kind: template.PolicyKind(ld.Kind)}
	if policy.Kind == "" {
		policy.Kind = template.PolicyDurable
	}
	if ld.TTL != "" {
		d, err := time.ParseDuration(ld.TTL)
		if err != nil {
			return policy, fmt.Errorf("bad lifecycle ttl %q", ld.TTL)
		}
		policy.TTL = d
	}
	return policy, nil
}

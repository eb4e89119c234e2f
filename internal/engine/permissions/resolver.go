// Package permissions computes, per application and caller, the
// field-level read/write masks and the set of events the caller may
// raise in the current state. Resolution is side-effect free so the
// rendering layer can call it for previews without touching the
// application.
package permissions

import (
	"sort"

	"application-engine/internal/models"
	"application-engine/internal/template"
)

// Decision is the resolved capability set for one caller on one
// application snapshot.
type Decision struct {
	Roles           []template.Role
	Readable        template.FieldMask
	Writable        template.FieldMask
	PermittedEvents []template.Event
}

// Denied reports whether the caller has no access at all.
func (d Decision) Denied() bool {
	return len(d.Roles) == 0
}

// Permits reports whether the caller may raise the event.
func (d Decision) Permits(event template.Event) bool {
	for _, e := range d.PermittedEvents {
		if e == event {
			return true
		}
	}
	return false
}

// PrimaryRole returns the first matched role, for audit attribution.
func (d Decision) PrimaryRole() template.Role {
	if len(d.Roles) == 0 {
		return ""
	}
	return d.Roles[0]
}

// Resolve evaluates the template's role mapping against the caller
// identity and unions the matched roles' grants for the current state.
// No matching role means no access: the empty Decision carries no
// events and no writable fields.
func Resolve(tpl *template.Template, app *models.Application, id models.Identity) Decision {
	roles := tpl.Resolve(id, app)
	if len(roles) == 0 {
		return Decision{}
	}

	state, ok := tpl.StateNamed(app.State)
	if !ok {
		// Current state missing from the graph violates a template
		// invariant; treat as no access rather than guessing.
		return Decision{}
	}

	var readable, writable []template.FieldMask
	eventSet := make(map[template.Event]struct{})
	var matched []template.Role
	for _, role := range roles {
		grant, ok := state.Roles[role]
		if !ok {
			continue
		}
		matched = append(matched, role)
		readable = append(readable, grant.Readable)
		writable = append(writable, grant.Writable)
		for _, event := range grant.Events {
			eventSet[event] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return Decision{}
	}

	events := make([]template.Event, 0, len(eventSet))
	for event := range eventSet {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })

	return Decision{
		Roles:           matched,
		Readable:        template.UnionMasks(readable...),
		Writable:        template.UnionMasks(writable...),
		PermittedEvents: events,
	}
}

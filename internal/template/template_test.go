// internal/template/template_test.go
package template

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "application-engine/internal/common/errors"
	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
)

func minimalSchema() *schema.Node {
	return schema.Object(map[string]*schema.Node{
		"applicant": schema.Object(map[string]*schema.Node{
			"name": schema.String(),
		}, "name"),
		"review": schema.Object(map[string]*schema.Node{
			"notes": schema.String(),
		}),
	})
}

func minimalTemplate() *Template {
	return &Template{
		TypeID:  "accident-claim",
		Initial: "DRAFT",
		Schema:  minimalSchema(),
		Resolve: CreatorAs("applicant"),
		States: map[string]State{
			"DRAFT": {
				Name:      "DRAFT",
				Status:    StatusDraft,
				Lifecycle: LifecyclePolicy{Kind: PolicyEphemeral},
				Roles: map[Role]RoleGrant{
					"applicant": {Events: []Event{"SUBMIT"}, Writable: FieldMask{"applicant"}},
				},
				Scope: schema.Scope{"applicant"},
				Transitions: map[Event]Transition{
					"SUBMIT": {Event: "SUBMIT", Target: "DONE"},
				},
			},
			"DONE": {
				Name:      "DONE",
				Status:    StatusCompleted,
				Lifecycle: LifecyclePolicy{Kind: PolicyDurable},
			},
		},
	}
}

func TestTemplate_Validate_OK(t *testing.T) {
	assert.NoError(t, minimalTemplate().Validate())
}

func TestTemplate_Validate_Problems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tpl *Template)
		problem string
	}{
		{
			name:    "missing initial state",
			mutate:  func(tpl *Template) { tpl.Initial = "NOWHERE" },
			problem: "initial state",
		},
		{
			name: "transition to unknown state",
			mutate: func(tpl *Template) {
				s := tpl.States["DRAFT"]
				s.Transitions = map[Event]Transition{
					"SUBMIT": {Event: "SUBMIT", Target: "LIMBO"},
				}
				tpl.States["DRAFT"] = s
			},
			problem: "unknown state",
		},
		{
			name: "role granted undefined event",
			mutate: func(tpl *Template) {
				s := tpl.States["DRAFT"]
				s.Roles = map[Role]RoleGrant{
					"applicant": {Events: []Event{"TELEPORT"}},
				}
				tpl.States["DRAFT"] = s
			},
			problem: "undefined event",
		},
		{
			name: "scope outside schema",
			mutate: func(tpl *Template) {
				s := tpl.States["DRAFT"]
				s.Scope = schema.Scope{"ghost.field"}
				tpl.States["DRAFT"] = s
			},
			problem: "does not resolve",
		},
		{
			name: "time-boxed without ttl",
			mutate: func(tpl *Template) {
				s := tpl.States["DRAFT"]
				s.Lifecycle = LifecyclePolicy{Kind: PolicyTimeBoxed}
				tpl.States["DRAFT"] = s
			},
			problem: "positive TTL",
		},
		{
			name: "durable with ttl",
			mutate: func(tpl *Template) {
				s := tpl.States["DONE"]
				s.Lifecycle = LifecyclePolicy{Kind: PolicyDurable, TTL: time.Hour}
				tpl.States["DONE"] = s
			},
			problem: "must not carry a TTL",
		},
		{
			name: "duplicate external data keys",
			mutate: func(tpl *Template) {
				s := tpl.States["DRAFT"]
				s.OnEntry = []ProviderDecl{
					{Name: "registry.person"},
					{Name: "other.provider", Key: "registry.person"},
				}
				tpl.States["DRAFT"] = s
			},
			problem: "duplicate external data key",
		},
		{
			name:    "missing role resolver",
			mutate:  func(tpl *Template) { tpl.Resolve = nil },
			problem: "role resolver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := minimalTemplate()
			tt.mutate(tpl)
			err := tpl.Validate()
			assert.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeTemplateInvalid, apperrors.CodeOf(err))
			assert.True(t, strings.Contains(err.Error(), tt.problem),
				"expected %q in %q", tt.problem, err.Error())
		})
	}
}

func TestTemplate_Validate_DeleteEventNeedsNoTransition(t *testing.T) {
	tpl := minimalTemplate()
	s := tpl.States["DRAFT"]
	s.Roles = map[Role]RoleGrant{
		"applicant": {Events: []Event{"SUBMIT", EventDelete}},
	}
	tpl.States["DRAFT"] = s
	assert.NoError(t, tpl.Validate())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NoError(t, reg.Register(minimalTemplate()))

	tpl, err := reg.Get("accident-claim")
	assert.NoError(t, err)
	assert.Equal(t, "DRAFT", tpl.Initial)

	_, err = reg.Get("unknown")
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTemplateNotFound, apperrors.CodeOf(err))

	second := minimalTemplate()
	second.TypeID = "parking-permit"
	assert.NoError(t, reg.Register(second))
	assert.Equal(t, []string{"accident-claim", "parking-permit"}, reg.TypeIDs())
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	tpl := minimalTemplate()
	tpl.Initial = "NOWHERE"
	assert.Error(t, NewRegistry().Register(tpl))
}

func TestFieldMask_Allows(t *testing.T) {
	tests := []struct {
		name string
		mask FieldMask
		path string
		want bool
	}{
		{name: "exact entry", mask: FieldMask{"applicant"}, path: "applicant", want: true},
		{name: "subtree entry", mask: FieldMask{"applicant"}, path: "applicant.name", want: true},
		{name: "sibling denied", mask: FieldMask{"applicant"}, path: "review.notes", want: false},
		{name: "prefix is not a subtree", mask: FieldMask{"applicant"}, path: "applicantExtra", want: false},
		{name: "wildcard", mask: FieldMask{"*"}, path: "anything.at.all", want: true},
		{name: "empty mask denies", mask: nil, path: "applicant", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mask.Allows(tt.path))
		})
	}
}

func TestRoleResolvers(t *testing.T) {
	app := &models.Application{
		CreatedBy: "citizen-1",
		Assignees: []string{"staff-1"},
		Answers: map[string]interface{}{
			"counterparty": map[string]interface{}{"nationalId": "citizen-2"},
		},
	}

	resolve := CombineResolvers(
		CreatorAs("applicant"),
		AssigneeAs("assignee"),
		AnswerRefAs("counterparty", "counterparty.nationalId"),
		SubjectsAs("reviewer", "staff-1"),
	)

	tests := []struct {
		name string
		id   models.Identity
		want []Role
	}{
		{name: "creator", id: models.Identity{SubjectID: "citizen-1"}, want: []Role{"applicant"}},
		{name: "assignee and configured subject", id: models.Identity{SubjectID: "staff-1"}, want: []Role{"assignee", "reviewer"}},
		{name: "answer reference", id: models.Identity{SubjectID: "citizen-2"}, want: []Role{"counterparty"}},
		{name: "delegate acts as represented subject", id: models.Identity{SubjectID: "parent-1", ActingOnBehalfOf: "citizen-1"}, want: []Role{"applicant"}},
		{name: "stranger", id: models.Identity{SubjectID: "nobody"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve(tt.id, app))
		})
	}
}

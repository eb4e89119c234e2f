// internal/template/roles.go
package template

import (
	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
)

// Role resolution is configured per template from these composable,
// pure building blocks. None of them may consult anything beyond the
// caller identity and the application snapshot.

// CreatorAs grants role to the subject that created the application.
func CreatorAs(role Role) RoleResolver {
	return func(id models.Identity, app *models.Application) []Role {
		if id.Actor() != "" && id.Actor() == app.CreatedBy {
			return []Role{role}
		}
		return nil
	}
}

// AssigneeAs grants role to any subject on the assignee list.
func AssigneeAs(role Role) RoleResolver {
	return func(id models.Identity, app *models.Application) []Role {
		if app.HasAssignee(id.Actor()) {
			return []Role{role}
		}
		return nil
	}
}

// AnswerRefAs grants role to the subject whose id is stored at the
// given answers path, e.g. a counter-party's national id.
func AnswerRefAs(role Role, answerPath string) RoleResolver {
	return func(id models.Identity, app *models.Application) []Role {
		ref, ok := schema.GetPath(app.Answers, answerPath)
		if !ok {
			return nil
		}
		if subject, ok := ref.(string); ok && subject != "" && subject == id.Actor() {
			return []Role{role}
		}
		return nil
	}
}

// SubjectsAs grants role to a fixed set of subjects, e.g. institution
// staff configured per template.
func SubjectsAs(role Role, subjects ...string) RoleResolver {
	allowed := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		allowed[s] = struct{}{}
	}
	return func(id models.Identity, app *models.Application) []Role {
		if _, ok := allowed[id.Actor()]; ok {
			return []Role{role}
		}
		return nil
	}
}

// CombineResolvers runs each resolver and concatenates the matches. A
// subject matching several resolvers holds all the resulting roles.
func CombineResolvers(resolvers ...RoleResolver) RoleResolver {
	return func(id models.Identity, app *models.Application) []Role {
		var roles []Role
		seen := make(map[Role]struct{})
		for _, resolve := range resolvers {
			for _, role := range resolve(id, app) {
				if _, ok := seen[role]; ok {
					continue
				}
				seen[role] = struct{}{}
				roles = append(roles, role)
			}
		}
		return roles
	}
}

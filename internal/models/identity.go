// internal/models/identity.go
package models

// Identity is the caller identity supplied by the authentication
// collaborator on every permission check and event submission.
type Identity struct {
	SubjectID        string `json:"subjectId"`
	ActingOnBehalfOf string `json:"actingOnBehalfOfId,omitempty"`
}

// Actor returns the subject the call should be attributed to. When a
// delegate acts on behalf of another subject, permissions are resolved
// for the represented subject, not the delegate.
func (i Identity) Actor() string {
	if i.ActingOnBehalfOf != "" {
		return i.ActingOnBehalfOf
	}
	return i.SubjectID
}

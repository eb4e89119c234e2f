// internal/models/application.go
package models

import "time"

// FetchStatus tags an external data entry with the outcome of the fetch
// that produced it.
type FetchStatus string

const (
	FetchSuccess FetchStatus = "success"
	FetchFailure FetchStatus = "failure"
)

// FetchAttempt is one historical fetch of an external data key. The
// history is append-only so failed or superseded fetches stay visible
// for replay and debugging.
type FetchAttempt struct {
	At     time.Time   `json:"at"`
	Status FetchStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// ExternalDataEntry holds the latest value fetched for one key plus the
// full attempt history. A later fetch overwrites Value and Status but
// only ever appends to History.
type ExternalDataEntry struct {
	Value     interface{}    `json:"value,omitempty"`
	Status    FetchStatus    `json:"status"`
	FetchedAt time.Time      `json:"fetchedAt"`
	History   []FetchAttempt `json:"history,omitempty"`
}

// AuditRecord is one committed transition in an application's history.
type AuditRecord struct {
	ID        string    `json:"id"`
	FromState string    `json:"fromState"`
	ToState   string    `json:"toState"`
	Event     string    `json:"event"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	At        time.Time `json:"at"`
}

// Application is one case instance moving through its template's state
// graph. It is mutated exclusively by the engine's transition pipeline;
// callers get back a new snapshot and hand it to the store.
type Application struct {
	ID           string                       `json:"id"`
	TypeID       string                       `json:"typeId"`
	State        string                       `json:"state"`
	Answers      map[string]interface{}       `json:"answers"`
	ExternalData map[string]ExternalDataEntry `json:"externalData"`
	CreatedBy    string                       `json:"createdBy"`
	Assignees    []string                     `json:"assignees,omitempty"`
	Audit        []AuditRecord                `json:"audit,omitempty"`
	PruneAt      *time.Time                   `json:"pruneAt,omitempty"`
	CreatedAt    time.Time                    `json:"createdAt"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
}

// Clone returns a deep copy. The engine works on a clone so that any
// failure before commit leaves the loaded snapshot untouched.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	out.Answers = cloneTree(a.Answers)
	if a.ExternalData != nil {
		out.ExternalData = make(map[string]ExternalDataEntry, len(a.ExternalData))
		for k, v := range a.ExternalData {
			entry := v
			if len(v.History) > 0 {
				entry.History = append([]FetchAttempt(nil), v.History...)
			}
			out.ExternalData[k] = entry
		}
	}
	if a.Assignees != nil {
		out.Assignees = append([]string(nil), a.Assignees...)
	}
	if a.Audit != nil {
		out.Audit = append([]AuditRecord(nil), a.Audit...)
	}
	if a.PruneAt != nil {
		t := *a.PruneAt
		out.PruneAt = &t
	}
	return &out
}

// HasAssignee reports whether subject appears in the assignee list.
func (a *Application) HasAssignee(subject string) bool {
	for _, s := range a.Assignees {
		if s == subject {
			return true
		}
	}
	return false
}

func cloneTree(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		return cloneTree(tv)
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

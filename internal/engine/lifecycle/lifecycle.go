// Package lifecycle derives and enforces the pruning policy attached
// to each state. The prune-at timestamp is re-derived on every commit
// because the policy belongs to the state, not the application.
package lifecycle

import (
	"time"

	"application-engine/internal/template"
)

// PruneAt derives the expiry for a fresh commit into a state with the
// given policy. Nil means the record is never pruned.
func PruneAt(policy template.LifecyclePolicy, committedAt time.Time) *time.Time {
	switch policy.Kind {
	case template.PolicyEphemeral:
		t := committedAt
		return &t
	case template.PolicyTimeBoxed:
		t := committedAt.Add(policy.TTL)
		return &t
	default:
		return nil
	}
}

// Resolve merges the previous prune-at with the one derived from the
// new state. The least restrictive outcome wins: once an application
// has earned a later expiry, or none at all, moving state never
// reinstates a stale earlier one.
func Resolve(prev *time.Time, policy template.LifecyclePolicy, committedAt time.Time) *time.Time {
	derived := PruneAt(policy, committedAt)
	if prev == nil || derived == nil {
		return nil
	}
	if derived.After(*prev) {
		return derived
	}
	t := *prev
	return &t
}

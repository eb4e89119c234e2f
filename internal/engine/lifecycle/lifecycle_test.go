// internal/engine/lifecycle/lifecycle_test.go
package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"application-engine/internal/template"
)

var commitTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPruneAt(t *testing.T) {
	tests := []struct {
		name   string
		policy template.LifecyclePolicy
		want   *time.Time
	}{
		{
			name:   "ephemeral prunes immediately",
			policy: template.LifecyclePolicy{Kind: template.PolicyEphemeral},
			want:   &commitTime,
		},
		{
			name:   "time-boxed prunes after ttl",
			policy: template.LifecyclePolicy{Kind: template.PolicyTimeBoxed, TTL: 30 * 24 * time.Hour},
			want:   timePtr(commitTime.Add(30 * 24 * time.Hour)),
		},
		{
			name:   "durable never prunes",
			policy: template.LifecyclePolicy{Kind: template.PolicyDurable},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PruneAt(tt.policy, commitTime)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_LeastRestrictiveWins(t *testing.T) {
	earlier := commitTime.Add(-time.Hour)
	durable := template.LifecyclePolicy{Kind: template.PolicyDurable}
	ephemeral := template.LifecyclePolicy{Kind: template.PolicyEphemeral}
	week := template.LifecyclePolicy{Kind: template.PolicyTimeBoxed, TTL: 7 * 24 * time.Hour}

	tests := []struct {
		name   string
		prev   *time.Time
		policy template.LifecyclePolicy
		want   *time.Time
	}{
		{
			name:   "durable target clears any expiry",
			prev:   &earlier,
			policy: durable,
			want:   nil,
		},
		{
			name:   "never-prune is kept even through an ephemeral state",
			prev:   nil,
			policy: ephemeral,
			want:   nil,
		},
		{
			name:   "later derived expiry extends the previous",
			prev:   &earlier,
			policy: week,
			want:   timePtr(commitTime.Add(7 * 24 * time.Hour)),
		},
		{
			name:   "earlier derived expiry never shortens the previous",
			prev:   timePtr(commitTime.Add(90 * 24 * time.Hour)),
			policy: week,
			want:   timePtr(commitTime.Add(90 * 24 * time.Hour)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.prev, tt.policy, commitTime)
			assert.Equal(t, tt.want, got)
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

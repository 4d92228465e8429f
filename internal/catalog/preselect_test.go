package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasike-dev/chronosops/internal/model"
)

func TestPreselect_AlwaysBoundedAndTerminatedByFallback(t *testing.T) {
	cases := []struct {
		name   string
		signal model.PrimarySignal
		score  int
		caps   Capabilities
		flags  Flags
	}{
		{"nothing known", model.SignalUnknown, 0, Capabilities{}, Flags{}},
		{"latency with everything", model.SignalLatency, 95,
			Capabilities{Metrics: true, Logs: true, Traces: true, Deploys: true, Config: true, GoogleStatus: true},
			Flags{RecentDeploy: true, ConfigChanged: true, NewErrorSignature: true, Timeouts: true}},
		{"errors with deploy", model.SignalErrors, 60, Capabilities{Metrics: true, Logs: true}, Flags{RecentDeploy: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := Preselect(tc.signal, tc.score, tc.caps, tc.flags)
			require.NotEmpty(t, ids)
			assert.LessOrEqual(t, len(ids), MaxCandidates)
			assert.Contains(t, ids, FallbackID)
			seen := make(map[string]bool)
			for _, id := range ids {
				assert.True(t, ValidID(id), "id %q must be in the catalog", id)
				assert.False(t, seen[id], "id %q duplicated", id)
				seen[id] = true
			}
		})
	}
}

func TestPreselect_Deterministic(t *testing.T) {
	caps := Capabilities{Metrics: true, Traces: true}
	flags := Flags{Timeouts: true}
	a := Preselect(model.SignalLatency, 55, caps, flags)
	b := Preselect(model.SignalLatency, 55, caps, flags)
	assert.Equal(t, a, b)
}

func TestPreselect_RecentDeployRanksBadDeployFirst(t *testing.T) {
	ids := Preselect(model.SignalErrors, 80,
		Capabilities{Metrics: true, Deploys: true},
		Flags{RecentDeploy: true})
	require.NotEmpty(t, ids)
	// bad_deploy matches error_spike + recent_deploy plus both required kinds.
	assert.Equal(t, "bad_deploy", ids[0])
}

func TestPreselect_LowCompletenessSurfacesFallbackEarly(t *testing.T) {
	ids := Preselect(model.SignalUnknown, 10, Capabilities{}, Flags{})
	// Only the fallback's low_completeness trigger fires, so it is the sole
	// scored entry and still the terminator.
	assert.Equal(t, []string{FallbackID}, ids)
}

func TestPreselect_TiesBrokenByDeclarationOrder(t *testing.T) {
	// With only the timeouts flag, every timeout-triggered entry scores 1.0
	// and nothing else scores; declaration order must hold among the ties.
	ids := Preselect(model.SignalUnknown, 90, Capabilities{}, Flags{Timeouts: true})
	want := []string{"upstream_provider_outage", "timeout_cascade", "database_contention", "network_degradation", FallbackID}
	assert.Equal(t, want, ids)
}

func TestCatalog_FallbackExistsAndIsLast(t *testing.T) {
	require.NotEmpty(t, Entries)
	assert.Equal(t, FallbackID, Entries[len(Entries)-1].ID)
	_, ok := Lookup(FallbackID)
	assert.True(t, ok)
}

func TestCatalog_EntriesWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range Entries {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.Title)
		assert.False(t, seen[e.ID], "duplicate catalog id %q", e.ID)
		seen[e.ID] = true
		for _, k := range e.Requires {
			assert.True(t, model.ValidKind(string(k)), "entry %q requires unknown kind %q", e.ID, k)
		}
	}
}

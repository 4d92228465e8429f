package bundle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasike-dev/chronosops/internal/model"
)

func sampleArtifacts() []model.EvidenceArtifact {
	return []model.EvidenceArtifact{
		{Kind: model.KindMetrics, ArtifactID: "m-1", Title: "latency p99", Mode: model.ModeReal},
		{Kind: model.KindLogs, ArtifactID: "l-1", Title: "error burst", Mode: model.ModeStub},
	}
}

func TestBuild_ContentAddressed(t *testing.T) {
	in := Input{
		IncidentID: "inc-1",
		CreatedBy:  "engine",
		Artifacts:  sampleArtifacts(),
		Sources:    []string{"cloud-monitoring", "cloud-logging"},
		Now:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	a, err := Build(in)
	require.NoError(t, err)

	// Same content at a different time yields the same id.
	in.Now = in.Now.Add(45 * time.Minute)
	b, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, a.BundleID, b.BundleID)
	assert.Len(t, a.BundleID, 64)

	// Any content change yields a different id.
	in.Artifacts = append(sampleArtifacts(), model.EvidenceArtifact{
		Kind: model.KindTraces, ArtifactID: "t-1", Mode: model.ModeReal,
	})
	c, err := Build(in)
	require.NoError(t, err)
	assert.NotEqual(t, a.BundleID, c.BundleID)
}

func TestBuild_MergesPrior(t *testing.T) {
	prior, err := Build(Input{
		IncidentID: "inc-1",
		CreatedBy:  "engine",
		Artifacts:  sampleArtifacts(),
		Sources:    []string{"cloud-monitoring"},
		Now:        time.Now(),
	})
	require.NoError(t, err)

	merged, err := Build(Input{
		Prior:      &prior,
		IncidentID: "inc-1",
		CreatedBy:  "engine",
		Artifacts: []model.EvidenceArtifact{
			{Kind: model.KindDeploys, ArtifactID: "d-1", Mode: model.ModeReal},
		},
		Sources: []string{"cloud-logging", "cloud-monitoring"}, // one duplicate
		Now:     time.Now(),
	})
	require.NoError(t, err)

	assert.Len(t, merged.Artifacts, 3)
	assert.Equal(t, "d-1", merged.Artifacts[2].ArtifactID)
	assert.Equal(t, []string{"cloud-monitoring", "cloud-logging"}, merged.Sources)
	assert.NotEqual(t, prior.BundleID, merged.BundleID)
}

func TestBuild_EmptyEvidence(t *testing.T) {
	b, err := Build(Input{IncidentID: "inc-1", CreatedBy: "engine", Now: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, b.BundleID)
	assert.Empty(t, b.Artifacts)
}

func TestBuild_RequiresIncident(t *testing.T) {
	_, err := Build(Input{CreatedBy: "engine", Now: time.Now()})
	assert.Error(t, err)
}

func TestBuild_HashVersionPinned(t *testing.T) {
	b, err := Build(Input{IncidentID: "inc-1", CreatedBy: "engine", Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, model.BundleHashAlgo, b.HashAlgo)
	assert.Equal(t, model.BundleHashInputVersion, b.HashInputVersion)
}

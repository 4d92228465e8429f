// Package bundle assembles collected evidence artifacts into immutable,
// content-addressed bundles.
package bundle

import (
	"fmt"
	"time"

	"github.com/rasike-dev/chronosops/internal/canonical"
	"github.com/rasike-dev/chronosops/internal/model"
)

// Input describes one bundle build: an optional prior bundle to extend,
// newly collected artifacts, and any externally supplied sources.
type Input struct {
	Prior      *model.EvidenceBundle
	IncidentID string
	CreatedBy  string
	Artifacts  []model.EvidenceArtifact
	Sources    []string
	Now        time.Time
}

// content is the exact set of fields that feed the bundle id. CreatedAt is
// deliberately excluded: it is bookkeeping, not content, and including it
// would give identical evidence a fresh id on every rebuild.
type content struct {
	IncidentID       string                   `json:"incident_id"`
	CreatedBy        string                   `json:"created_by"`
	Sources          []string                 `json:"sources"`
	Artifacts        []model.EvidenceArtifact `json:"artifacts"`
	HashAlgo         string                   `json:"hash_algo"`
	HashInputVersion int                      `json:"hash_input_version"`
}

// Build merges the prior bundle with newly collected artifacts and computes
// the content-addressed bundle id. Sources are unioned in first-seen order;
// artifact arrays are concatenated (prior first).
func Build(in Input) (model.EvidenceBundle, error) {
	if in.IncidentID == "" {
		return model.EvidenceBundle{}, fmt.Errorf("bundle: incident id is required")
	}

	var artifacts []model.EvidenceArtifact
	var sources []string
	if in.Prior != nil {
		artifacts = append(artifacts, in.Prior.Artifacts...)
		sources = append(sources, in.Prior.Sources...)
	}
	artifacts = append(artifacts, in.Artifacts...)
	sources = mergeSources(sources, in.Sources)

	b := model.EvidenceBundle{
		IncidentID:       in.IncidentID,
		CreatedAt:        in.Now.UTC(),
		CreatedBy:        in.CreatedBy,
		Sources:          sources,
		Artifacts:        artifacts,
		HashAlgo:         model.BundleHashAlgo,
		HashInputVersion: model.BundleHashInputVersion,
	}

	id, err := canonical.Hash(content{
		IncidentID:       b.IncidentID,
		CreatedBy:        b.CreatedBy,
		Sources:          b.Sources,
		Artifacts:        b.Artifacts,
		HashAlgo:         b.HashAlgo,
		HashInputVersion: b.HashInputVersion,
	})
	if err != nil {
		return model.EvidenceBundle{}, fmt.Errorf("bundle: compute id: %w", err)
	}
	b.BundleID = id
	return b, nil
}

// mergeSources unions two source lists preserving first-seen order.
func mergeSources(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

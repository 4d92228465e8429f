// Package reason defines the reasoning-step contract consumed by the loop
// controller, the strict response validation gate, and the Anthropic-backed
// implementation.
//
// The reasoning step is treated as an external, possibly-adversarial
// producer: its output is validated field by field at runtime, and a
// violation is a hard reject, never a best-effort coercion.
package reason

import (
	"context"
	"fmt"

	"github.com/rasike-dev/chronosops/internal/catalog"
	"github.com/rasike-dev/chronosops/internal/model"
)

// ArtifactSummary is the curated view of one artifact offered to the
// reasoning step. Raw payloads never cross this boundary.
type ArtifactSummary struct {
	Kind       model.EvidenceKind `json:"kind"`
	ArtifactID string             `json:"artifact_id"`
	Title      string             `json:"title"`
	Summary    string             `json:"summary"`
	Mode       model.ArtifactMode `json:"mode"`
}

// Request carries the curated context for one reasoning call: a bounded
// candidate hypothesis-id list, evidence summaries, and the iteration
// timeline.
type Request struct {
	IncidentID     string                     `json:"incident_id"`
	SourceType     string                     `json:"source_type"`
	Signal         model.PrimarySignal        `json:"primary_signal"`
	Iteration      int                        `json:"iteration"`
	CandidateIDs   []string                   `json:"candidate_ids"`
	Completeness   model.EvidenceCompleteness `json:"completeness"`
	Artifacts      []ArtifactSummary          `json:"artifacts"`
	Timeline       []string                   `json:"timeline,omitempty"`
	CatalogVersion string                     `json:"catalog_version"`
}

// Response is the validated output of one reasoning call.
type Response struct {
	Hypotheses        []model.Hypothesis      `json:"hypotheses"`
	Explainability    model.Explainability    `json:"explainability"`
	OverallConfidence float64                 `json:"overall_confidence"`
	EvidenceRequests  []model.EvidenceRequest `json:"evidence_requests,omitempty"`
}

// Reasoner turns curated evidence into scored hypotheses. Implementations
// must respect ctx cancellation; the loop controller treats any error as a
// degraded iteration, not a session failure.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (*Response, error)
}

// Validate checks a response against the contract: required fields present,
// overall confidence in [0,1], and every hypothesis id both catalog-valid
// and a member of the candidate set offered in the request.
func Validate(resp *Response, candidateIDs []string) error {
	if resp == nil {
		return fmt.Errorf("reason: response is empty")
	}
	if resp.Hypotheses == nil {
		return fmt.Errorf("reason: hypotheses field is required")
	}
	if resp.OverallConfidence < 0 || resp.OverallConfidence > 1 {
		return fmt.Errorf("reason: overall confidence %v outside [0,1]", resp.OverallConfidence)
	}
	if resp.Explainability.PrimarySignal == "" {
		return fmt.Errorf("reason: explainability.primary_signal is required")
	}
	if resp.Explainability.Rationale == "" {
		return fmt.Errorf("reason: explainability.rationale is required")
	}

	allowed := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		allowed[id] = true
	}
	for i, h := range resp.Hypotheses {
		if h.ID == "" {
			return fmt.Errorf("reason: hypothesis %d has no id", i)
		}
		if !catalog.ValidID(h.ID) {
			return fmt.Errorf("reason: hypothesis id %q is not in the catalog", h.ID)
		}
		if !allowed[h.ID] {
			return fmt.Errorf("reason: hypothesis id %q was not in the offered candidate set", h.ID)
		}
		if h.Confidence < 0 || h.Confidence > 1 {
			return fmt.Errorf("reason: hypothesis %q confidence %v outside [0,1]", h.ID, h.Confidence)
		}
	}
	return nil
}

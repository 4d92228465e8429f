package reason

import (
	"context"
	"fmt"

	"github.com/rasike-dev/chronosops/internal/catalog"
	"github.com/rasike-dev/chronosops/internal/model"
)

// Stub is a deterministic reasoner used when no Anthropic key is configured
// and throughout the test suite. Confidence is a pure function of evidence
// completeness, so repeated runs over the same evidence converge the same
// way.
type Stub struct {
	// Confidences, when set, overrides the computed overall confidence
	// per iteration (1-based; the last entry repeats).
	Confidences []float64
}

var _ Reasoner = (*Stub)(nil)

func (s *Stub) Reason(_ context.Context, req Request) (*Response, error) {
	if len(req.CandidateIDs) == 0 {
		return nil, fmt.Errorf("reason: no candidate hypotheses offered")
	}

	overall := s.confidence(req)

	// Rank candidates in offered order: the preselector already sorted
	// them by trigger relevance.
	hypotheses := make([]model.Hypothesis, 0, len(req.CandidateIDs))
	for i, id := range req.CandidateIDs {
		entry, ok := catalog.Lookup(id)
		if !ok {
			continue
		}
		conf := overall - float64(i)*0.1
		if conf < 0.05 {
			conf = 0.05
		}
		hypotheses = append(hypotheses, model.Hypothesis{
			ID:           id,
			Title:        entry.Title,
			Confidence:   conf,
			Rationale:    fmt.Sprintf("ranked %d of %d for %s signal at completeness %d", i+1, len(req.CandidateIDs), req.Signal, req.Completeness.Score),
			EvidenceRefs: s.refs(req),
		})
	}

	resp := &Response{
		Hypotheses: hypotheses,
		Explainability: model.Explainability{
			PrimarySignal: req.Signal,
			LatencyFactor: signalFactor(req.Signal, model.SignalLatency),
			ErrorFactor:   signalFactor(req.Signal, model.SignalErrors),
			Rationale:     fmt.Sprintf("synthetic ranking from %d artifacts across %d kinds", len(req.Artifacts), len(req.Completeness.Present)),
		},
		OverallConfidence: overall,
	}

	// Surface the scorer's gaps as evidence requests so the loop keeps
	// collecting until the bundle is complete.
	for _, need := range req.Completeness.Missing {
		if need.Need == model.KindGoogleStatus {
			continue
		}
		resp.EvidenceRequests = append(resp.EvidenceRequests, model.EvidenceRequest{
			Need:     string(need.Need),
			Priority: string(need.Priority),
			Reason:   need.Reason,
		})
	}
	return resp, nil
}

func (s *Stub) confidence(req Request) float64 {
	if n := len(s.Confidences); n > 0 {
		idx := req.Iteration - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		return s.Confidences[idx]
	}
	// Scale completeness into a conservative confidence band.
	c := float64(req.Completeness.Score) / 100 * 0.9
	if c < 0.05 {
		c = 0.05
	}
	return c
}

func (s *Stub) refs(req Request) []string {
	refs := make([]string, 0, len(req.Artifacts))
	for _, a := range req.Artifacts {
		refs = append(refs, a.ArtifactID)
	}
	return refs
}

func signalFactor(actual, want model.PrimarySignal) float64 {
	if actual == want {
		return 0.8
	}
	return 0.2
}

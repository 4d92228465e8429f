package reason

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasike-dev/chronosops/internal/catalog"
	"github.com/rasike-dev/chronosops/internal/model"
)

func validResponse() *Response {
	return &Response{
		Hypotheses: []model.Hypothesis{
			{ID: catalog.IDBadDeploy, Title: "Bad deploy", Confidence: 0.7, Rationale: "deploy preceded spike"},
		},
		Explainability: model.Explainability{
			PrimarySignal: model.SignalLatency,
			LatencyFactor: 0.8,
			ErrorFactor:   0.2,
			Rationale:     "latency rose right after the rollout",
		},
		OverallConfidence: 0.7,
	}
}

func TestValidateAcceptsWellFormedResponse(t *testing.T) {
	err := Validate(validResponse(), []string{catalog.IDBadDeploy, catalog.IDConfigChange})
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownHypothesisID(t *testing.T) {
	resp := validResponse()
	resp.Hypotheses[0].ID = "solar_flare"
	err := Validate(resp, []string{"solar_flare"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the catalog")
}

func TestValidateRejectsIDOutsideCandidateSet(t *testing.T) {
	resp := validResponse()
	// Catalog-valid, but never offered to the model.
	err := Validate(resp, []string{catalog.IDConfigChange})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate set")
}

func TestValidateRejectsOutOfRangeConfidence(t *testing.T) {
	resp := validResponse()
	resp.OverallConfidence = 1.2
	assert.Error(t, Validate(resp, []string{catalog.IDBadDeploy}))

	resp = validResponse()
	resp.Hypotheses[0].Confidence = -0.1
	assert.Error(t, Validate(resp, []string{catalog.IDBadDeploy}))
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	assert.Error(t, Validate(nil, nil))

	resp := validResponse()
	resp.Hypotheses = nil
	assert.Error(t, Validate(resp, []string{catalog.IDBadDeploy}))

	resp = validResponse()
	resp.Explainability.Rationale = ""
	assert.Error(t, Validate(resp, []string{catalog.IDBadDeploy}))
}

func TestValidateAllowsEmptyHypothesisList(t *testing.T) {
	resp := validResponse()
	resp.Hypotheses = []model.Hypothesis{}
	assert.NoError(t, Validate(resp, nil))
}

func TestParseResponsePlainJSON(t *testing.T) {
	resp, err := ParseResponse(`{"hypotheses":[],"explainability":{"primary_signal":"LATENCY","rationale":"r"},"overall_confidence":0.4}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, resp.OverallConfidence, 1e-9)
}

func TestParseResponseStripsMarkdownFences(t *testing.T) {
	resp, err := ParseResponse("```json\n{\"hypotheses\":[],\"overall_confidence\":0.5}\n```")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, resp.OverallConfidence, 1e-9)
}

func TestParseResponseExtractsObjectFromProse(t *testing.T) {
	resp, err := ParseResponse("Here is my analysis:\n{\"hypotheses\":[],\"overall_confidence\":0.3}\nHope that helps.")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, resp.OverallConfidence, 1e-9)
}

func TestParseResponseRejectsNonJSON(t *testing.T) {
	_, err := ParseResponse("I am unable to determine a root cause.")
	assert.Error(t, err)
}

func stubRequest(score int, candidates []string) Request {
	return Request{
		IncidentID:   "inc-1",
		SourceType:   model.SourceVertexAI,
		Signal:       model.SignalLatency,
		Iteration:    1,
		CandidateIDs: candidates,
		Completeness: model.EvidenceCompleteness{
			Score: score,
			Missing: []model.EvidenceNeed{
				{Need: model.KindLogs, Priority: model.PriorityP1, Reason: "no logs collected"},
			},
		},
		CatalogVersion: catalog.Version,
	}
}

func TestStubIsDeterministic(t *testing.T) {
	s := &Stub{}
	req := stubRequest(60, []string{catalog.IDBadDeploy, catalog.IDTimeoutCascade})

	a, err := s.Reason(context.Background(), req)
	require.NoError(t, err)
	b, err := s.Reason(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStubOutputPassesValidation(t *testing.T) {
	s := &Stub{}
	req := stubRequest(80, []string{catalog.IDBadDeploy, catalog.IDConfigChange, catalog.FallbackID})

	resp, err := s.Reason(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, Validate(resp, req.CandidateIDs))
	assert.Len(t, resp.Hypotheses, 3)
	// Offered order is preserved and confidence decays down the ranking.
	assert.Equal(t, catalog.IDBadDeploy, resp.Hypotheses[0].ID)
	assert.Greater(t, resp.Hypotheses[0].Confidence, resp.Hypotheses[1].Confidence)
}

func TestStubConfidenceTracksCompleteness(t *testing.T) {
	s := &Stub{}
	low, err := s.Reason(context.Background(), stubRequest(20, []string{catalog.FallbackID}))
	require.NoError(t, err)
	high, err := s.Reason(context.Background(), stubRequest(95, []string{catalog.FallbackID}))
	require.NoError(t, err)
	assert.Greater(t, high.OverallConfidence, low.OverallConfidence)
}

func TestStubConfidenceScheduleOverride(t *testing.T) {
	s := &Stub{Confidences: []float64{0.5, 0.65, 0.82}}

	for i, want := range []float64{0.5, 0.65, 0.82, 0.82} {
		req := stubRequest(50, []string{catalog.IDBadDeploy})
		req.Iteration = i + 1
		resp, err := s.Reason(context.Background(), req)
		require.NoError(t, err)
		assert.InDelta(t, want, resp.OverallConfidence, 1e-9)
	}
}

func TestStubSurfacesEvidenceGapsAsRequests(t *testing.T) {
	s := &Stub{}
	resp, err := s.Reason(context.Background(), stubRequest(40, []string{catalog.FallbackID}))
	require.NoError(t, err)
	require.Len(t, resp.EvidenceRequests, 1)
	assert.Equal(t, string(model.KindLogs), resp.EvidenceRequests[0].Need)
	assert.Equal(t, string(model.PriorityP1), resp.EvidenceRequests[0].Priority)
}

func TestStubRequiresCandidates(t *testing.T) {
	s := &Stub{}
	_, err := s.Reason(context.Background(), stubRequest(40, nil))
	assert.Error(t, err)
}

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasike-dev/chronosops/internal/model"
)

var sessionWindow = model.Window{
	Start: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC),
}

func win(startOffset, endOffset time.Duration) *model.Window {
	return &model.Window{
		Start: sessionWindow.Start.Add(startOffset),
		End:   sessionWindow.Start.Add(endOffset),
	}
}

func intp(v int) *int { return &v }

func TestEvaluate_ApprovesValidRequest(t *testing.T) {
	g := New(LimitsFor(false))
	res := g.Evaluate([]model.EvidenceRequest{
		{Need: "LOGS", Priority: "P0", Reason: "error signatures", Window: win(0, time.Hour), MaxItems: intp(100)},
	}, sessionWindow)

	require.Len(t, res.Approved, 1)
	assert.Empty(t, res.Rejected)
	assert.Equal(t, model.KindLogs, res.Approved[0].Need)
	assert.Equal(t, model.PriorityP0, res.Approved[0].Priority)
	assert.Equal(t, 100, res.Approved[0].MaxItems)
}

func TestEvaluate_RejectionCodes(t *testing.T) {
	g := New(LimitsFor(false))
	cases := []struct {
		name string
		req  model.EvidenceRequest
		code string
	}{
		{"missing need", model.EvidenceRequest{Priority: "P1"}, CodeInvalidSchema},
		{"bad priority", model.EvidenceRequest{Need: "LOGS", Priority: "P9"}, CodeInvalidSchema},
		{"unknown need", model.EvidenceRequest{Need: "CRYSTAL_BALL"}, CodeNeedNotAllowed},
		{"inverted window", model.EvidenceRequest{Need: "LOGS", Window: win(time.Hour, 0)}, CodeInvalidWindow},
		{"window outside session", model.EvidenceRequest{Need: "LOGS", Window: &model.Window{
			Start: sessionWindow.Start.Add(-2 * time.Hour), End: sessionWindow.Start}}, CodeWindowOutOfBounds},
		{"window too large", model.EvidenceRequest{Need: "LOGS", Window: win(0, 7 * time.Hour)}, CodeWindowTooLarge},
		{"max items too high", model.EvidenceRequest{Need: "LOGS", MaxItems: intp(500)}, CodeMaxItemsTooHigh},
		{"max items below one", model.EvidenceRequest{Need: "LOGS", MaxItems: intp(0)}, CodeMaxItemsTooHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := g.Evaluate([]model.EvidenceRequest{tc.req}, sessionWindow)
			assert.Empty(t, res.Approved)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, tc.code, res.Rejected[0].Code)
			assert.NotEmpty(t, res.Rejected[0].Reason)
		})
	}
}

func TestEvaluate_SafeModeTightensBounds(t *testing.T) {
	g := New(LimitsFor(true))

	// 3h window passes normal mode but not safe mode.
	res := g.Evaluate([]model.EvidenceRequest{
		{Need: "METRICS", Priority: "P0", Window: win(0, 3 * time.Hour)},
	}, sessionWindow)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, CodeWindowTooLarge, res.Rejected[0].Code)

	// 100 items passes normal mode but not safe mode.
	res = g.Evaluate([]model.EvidenceRequest{
		{Need: "METRICS", Priority: "P0", MaxItems: intp(100)},
	}, sessionWindow)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, CodeMaxItemsTooHigh, res.Rejected[0].Code)
}

func TestEvaluate_DedupeKeepsHighestPriority(t *testing.T) {
	g := New(LimitsFor(false))
	res := g.Evaluate([]model.EvidenceRequest{
		{Need: "LOGS", Priority: "P2", Reason: "first"},
		{Need: "LOGS", Priority: "P0", Reason: "second"},
		{Need: "LOGS", Priority: "P1", Reason: "third"},
	}, sessionWindow)

	require.Len(t, res.Approved, 1)
	assert.Equal(t, model.PriorityP0, res.Approved[0].Priority)
	assert.Equal(t, "second", res.Approved[0].Reason)
}

func TestEvaluate_PerIterationCap(t *testing.T) {
	reqs := []model.EvidenceRequest{
		{Need: "LOGS", Priority: "P2"},
		{Need: "METRICS", Priority: "P0"},
		{Need: "TRACES", Priority: "P1"},
		{Need: "CONFIG", Priority: "P1"},
	}

	res := New(LimitsFor(false)).Evaluate(reqs, sessionWindow)
	require.Len(t, res.Approved, 2)
	assert.Equal(t, model.KindMetrics, res.Approved[0].Need)
	assert.Equal(t, model.KindTraces, res.Approved[1].Need)
	require.Len(t, res.Rejected, 2)
	for _, r := range res.Rejected {
		assert.Equal(t, CodePerIterationLimit, r.Code)
		assert.NotEmpty(t, r.Reason)
	}

	res = New(LimitsFor(true)).Evaluate(reqs, sessionWindow)
	require.Len(t, res.Approved, 1)
	assert.Equal(t, model.KindMetrics, res.Approved[0].Need)
	assert.Len(t, res.Rejected, 3)
}

func TestEvaluate_BoundednessUnderLoad(t *testing.T) {
	var reqs []model.EvidenceRequest
	kinds := []string{"METRICS", "LOGS", "TRACES", "DEPLOYS", "CONFIG", "GOOGLE_STATUS"}
	for i := 0; i < 60; i++ {
		reqs = append(reqs, model.EvidenceRequest{Need: kinds[i%len(kinds)], Priority: "P1"})
	}
	for _, safe := range []bool{true, false} {
		limits := LimitsFor(safe)
		res := New(limits).Evaluate(reqs, sessionWindow)
		assert.LessOrEqual(t, len(res.Approved), limits.NeedsPerIteration)
		for _, r := range res.Rejected {
			assert.NotEmpty(t, r.Code)
			assert.NotEmpty(t, r.Reason)
		}
	}
}

func TestEvaluate_DefaultsPriorityAndItems(t *testing.T) {
	g := New(LimitsFor(false))
	res := g.Evaluate([]model.EvidenceRequest{{Need: "DEPLOYS"}}, sessionWindow)
	require.Len(t, res.Approved, 1)
	assert.Equal(t, model.PriorityP2, res.Approved[0].Priority)
	assert.Equal(t, 200, res.Approved[0].MaxItems)
}

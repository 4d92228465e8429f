package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/rasike-dev/chronosops/internal/model"
)

// SessionStatus assembles the operator-facing read model: the session row
// plus a summary of every recorded iteration.
func (db *DB) SessionStatus(ctx context.Context, sessionID uuid.UUID) (model.SessionStatusView, error) {
	s, err := db.GetSession(ctx, sessionID)
	if err != nil {
		return model.SessionStatusView{}, err
	}

	iterations, err := db.ListIterations(ctx, sessionID)
	if err != nil {
		return model.SessionStatusView{}, err
	}

	view := model.SessionStatusView{
		SessionID:        s.SessionID,
		IncidentID:       s.IncidentID,
		Status:           s.Status,
		CurrentIteration: s.CurrentIteration,
		MaxIterations:    s.MaxIterations,
		ConfidenceTarget: s.ConfidenceTarget,
		Reason:           s.Reason,
		Iterations:       make([]model.IterationSummary, 0, len(iterations)),
	}
	for _, it := range iterations {
		view.Iterations = append(view.Iterations, model.IterationSummary{
			Iteration:         it.Iteration,
			CreatedAt:         it.CreatedAt,
			EvidenceBundleID:  it.EvidenceBundleID,
			AnalysisID:        it.AnalysisID,
			CompletenessScore: it.CompletenessScore,
			OverallConfidence: it.OverallConfidence,
		})
	}
	return view, nil
}

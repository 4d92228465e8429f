package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rasike-dev/chronosops/internal/model"
)

// InsertAnalysis stores one validated reasoning result and returns it.
func (db *DB) InsertAnalysis(ctx context.Context, a model.AnalysisResult) (model.AnalysisResult, error) {
	if a.AnalysisID == uuid.Nil {
		a.AnalysisID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Hypotheses == nil {
		a.Hypotheses = []model.Hypothesis{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO incident_analyses (analysis_id, session_id, iteration, hypotheses,
		 explainability, overall_confidence, prompt_hash, response_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.AnalysisID, a.SessionID, a.Iteration, a.Hypotheses,
		a.Explainability, a.OverallConfidence, a.PromptHash, a.ResponseHash, a.CreatedAt,
	)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("storage: insert analysis: %w", err)
	}
	return a, nil
}

// LatestAnalysis returns the newest analysis for a session, or ErrNotFound
// when no reasoning call has succeeded yet.
func (db *DB) LatestAnalysis(ctx context.Context, sessionID uuid.UUID) (model.AnalysisResult, error) {
	var a model.AnalysisResult
	err := db.pool.QueryRow(ctx,
		`SELECT analysis_id, session_id, iteration, hypotheses, explainability,
		 overall_confidence, prompt_hash, response_hash, created_at
		 FROM incident_analyses WHERE session_id = $1
		 ORDER BY iteration DESC LIMIT 1`, sessionID,
	).Scan(
		&a.AnalysisID, &a.SessionID, &a.Iteration, &a.Hypotheses, &a.Explainability,
		&a.OverallConfidence, &a.PromptHash, &a.ResponseHash, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AnalysisResult{}, fmt.Errorf("%w: analysis for session %s", ErrNotFound, sessionID)
		}
		return model.AnalysisResult{}, fmt.Errorf("storage: latest analysis: %w", err)
	}
	return a, nil
}

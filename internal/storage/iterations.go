package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rasike-dev/chronosops/internal/model"
)

// InsertIteration appends one immutable iteration record. The
// (session_id, iteration) primary key rejects duplicate passes.
func (db *DB) InsertIteration(ctx context.Context, it model.InvestigationIteration) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	if it.Notes == nil {
		it.Notes = []string{}
	}

	var bundleID *string
	if it.EvidenceBundleID != "" {
		bundleID = &it.EvidenceBundleID
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO investigation_iterations (session_id, iteration, evidence_bundle_id,
		 analysis_id, completeness_score, overall_confidence, decision, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.SessionID, it.Iteration, bundleID,
		it.AnalysisID, it.CompletenessScore, it.OverallConfidence, it.Decision, it.Notes, it.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert iteration: %w", err)
	}
	return nil
}

// ListIterations returns all iteration records for a session in loop order.
func (db *DB) ListIterations(ctx context.Context, sessionID uuid.UUID) ([]model.InvestigationIteration, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT session_id, iteration, evidence_bundle_id, analysis_id, completeness_score,
		 overall_confidence, decision, notes, created_at
		 FROM investigation_iterations
		 WHERE session_id = $1
		 ORDER BY iteration ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list iterations: %w", err)
	}
	defer rows.Close()

	var out []model.InvestigationIteration
	for rows.Next() {
		var (
			it       model.InvestigationIteration
			bundleID *string
		)
		if err := rows.Scan(
			&it.SessionID, &it.Iteration, &bundleID, &it.AnalysisID, &it.CompletenessScore,
			&it.OverallConfidence, &it.Decision, &it.Notes, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan iteration: %w", err)
		}
		if bundleID != nil {
			it.EvidenceBundleID = *bundleID
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list iterations: %w", err)
	}
	return out, nil
}

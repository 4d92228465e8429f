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

// CreateSession inserts a new investigation session and returns it.
func (db *DB) CreateSession(ctx context.Context, s model.InvestigationSession) (model.InvestigationSession, error) {
	if s.SessionID == uuid.Nil {
		s.SessionID = uuid.New()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	if s.Status == "" {
		s.Status = model.StatusRunning
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO investigation_sessions (session_id, incident_id, status, current_iteration,
		 max_iterations, confidence_target, reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.SessionID, s.IncidentID, s.Status, s.CurrentIteration,
		s.MaxIterations, s.ConfidenceTarget, s.Reason, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return model.InvestigationSession{}, fmt.Errorf("storage: create session: %w", err)
	}
	return s, nil
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(ctx context.Context, sessionID uuid.UUID) (model.InvestigationSession, error) {
	var s model.InvestigationSession
	err := db.pool.QueryRow(ctx,
		`SELECT session_id, incident_id, status, current_iteration, max_iterations,
		 confidence_target, reason, created_at, updated_at
		 FROM investigation_sessions WHERE session_id = $1`, sessionID,
	).Scan(
		&s.SessionID, &s.IncidentID, &s.Status, &s.CurrentIteration, &s.MaxIterations,
		&s.ConfidenceTarget, &s.Reason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.InvestigationSession{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return model.InvestigationSession{}, fmt.Errorf("storage: get session: %w", err)
	}
	return s, nil
}

// UpdateSession persists the mutable loop-controller fields: status,
// current iteration, and stop reason. Terminal sessions stay terminal; the
// controller is the only writer, so this is a guard, not a lock.
func (db *DB) UpdateSession(ctx context.Context, s model.InvestigationSession) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE investigation_sessions
		 SET status = $2, current_iteration = $3, reason = $4, updated_at = $5
		 WHERE session_id = $1`,
		s.SessionID, s.Status, s.CurrentIteration, s.Reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, s.SessionID)
	}
	return nil
}

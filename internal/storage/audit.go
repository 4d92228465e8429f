package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rasike-dev/chronosops/internal/audit"
	"github.com/rasike-dev/chronosops/internal/model"
)

// AppendAuditEvent appends one event to a hash chain. The chain head is read
// and the new event inserted in a single serializable transaction, so two
// concurrent appenders can never both claim the same sequence slot: the
// loser fails on the (chain_id, seq) primary key and is retried against the
// refreshed head.
func (db *DB) AppendAuditEvent(ctx context.Context, d audit.Draft) (model.AuditEvent, error) {
	var (
		out model.AuditEvent
		err error
	)
	for attempt := 0; attempt < 3; attempt++ {
		out, err = db.appendAuditEvent(ctx, d)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrDuplicateSequence) && !isRetriable(err) {
			return model.AuditEvent{}, err
		}
		db.logger.Debug("audit append lost race, retrying", "chain_id", d.ChainID, "attempt", attempt+1)
	}
	return model.AuditEvent{}, err
}

func (db *DB) appendAuditEvent(ctx context.Context, d audit.Draft) (model.AuditEvent, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return model.AuditEvent{}, fmt.Errorf("storage: begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the chain head so sequential appenders queue instead of racing.
	var prev *model.AuditEvent
	var head model.AuditEvent
	err = tx.QueryRow(ctx,
		`SELECT chain_id, seq, prev_hash, hash, event_type, entity_type, entity_id,
		 entity_ref, payload, created_at
		 FROM audit_events WHERE chain_id = $1
		 ORDER BY seq DESC LIMIT 1
		 FOR UPDATE`, d.ChainID,
	).Scan(
		&head.ChainID, &head.Seq, &head.PrevHash, &head.Hash, &head.EventType,
		&head.EntityType, &head.EntityID, &head.EntityRef, &head.Payload, &head.CreatedAt,
	)
	switch {
	case err == nil:
		prev = &head
	case errors.Is(err, pgx.ErrNoRows):
		// First event of the chain.
	default:
		return model.AuditEvent{}, fmt.Errorf("storage: read chain head: %w", err)
	}

	ev, err := audit.Next(prev, d, time.Now().UTC())
	if err != nil {
		return model.AuditEvent{}, fmt.Errorf("storage: build audit event: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_events (chain_id, seq, prev_hash, hash, event_type,
		 entity_type, entity_id, entity_ref, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ChainID, ev.Seq, ev.PrevHash, ev.Hash, ev.EventType,
		ev.EntityType, ev.EntityID, ev.EntityRef, ev.Payload, ev.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.AuditEvent{}, fmt.Errorf("%w: chain %s seq %d", ErrDuplicateSequence, ev.ChainID, ev.Seq)
		}
		return model.AuditEvent{}, fmt.Errorf("storage: insert audit event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AuditEvent{}, fmt.Errorf("storage: commit audit tx: %w", err)
	}
	return ev, nil
}

// ListAuditEvents returns a chain in ascending sequence order, ready for
// verification.
func (db *DB) ListAuditEvents(ctx context.Context, chainID string) ([]model.AuditEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT chain_id, seq, prev_hash, hash, event_type, entity_type, entity_id,
		 entity_ref, payload, created_at
		 FROM audit_events WHERE chain_id = $1
		 ORDER BY seq ASC`, chainID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit events: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		if err := rows.Scan(
			&ev.ChainID, &ev.Seq, &ev.PrevHash, &ev.Hash, &ev.EventType,
			&ev.EntityType, &ev.EntityID, &ev.EntityRef, &ev.Payload, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan audit event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list audit events: %w", err)
	}
	return out, nil
}

// isUniqueViolation checks if a Postgres error is a unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

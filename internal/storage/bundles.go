package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rasike-dev/chronosops/internal/model"
)

// UpsertBundle stores a content-addressed bundle. Because the id is a hash
// of the content, rebuilding identical evidence maps onto the existing row;
// ON CONFLICT DO NOTHING makes that a no-op. The returned inserted flag is
// the authoritative "this bundle is new" signal used for audit emission and
// progress detection.
func (db *DB) UpsertBundle(ctx context.Context, b model.EvidenceBundle) (bool, error) {
	if b.BundleID == "" {
		return false, fmt.Errorf("storage: upsert bundle: bundle id is required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Sources == nil {
		b.Sources = []string{}
	}
	if b.Artifacts == nil {
		b.Artifacts = []model.EvidenceArtifact{}
	}

	tag, err := db.pool.Exec(ctx,
		`INSERT INTO evidence_bundles (bundle_id, incident_id, created_by, sources,
		 artifacts, hash_algo, hash_input_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (bundle_id) DO NOTHING`,
		b.BundleID, b.IncidentID, b.CreatedBy, b.Sources,
		b.Artifacts, b.HashAlgo, b.HashInputVersion, b.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("storage: upsert bundle: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetBundle retrieves a bundle by its content hash.
func (db *DB) GetBundle(ctx context.Context, bundleID string) (model.EvidenceBundle, error) {
	return db.scanBundle(db.pool.QueryRow(ctx,
		`SELECT bundle_id, incident_id, created_by, sources, artifacts,
		 hash_algo, hash_input_version, created_at
		 FROM evidence_bundles WHERE bundle_id = $1`, bundleID,
	), fmt.Sprintf("bundle %s", bundleID))
}

// LatestBundle returns the most recently stored bundle for an incident, or
// ErrNotFound when the incident has no evidence yet.
func (db *DB) LatestBundle(ctx context.Context, incidentID string) (model.EvidenceBundle, error) {
	return db.scanBundle(db.pool.QueryRow(ctx,
		`SELECT bundle_id, incident_id, created_by, sources, artifacts,
		 hash_algo, hash_input_version, created_at
		 FROM evidence_bundles WHERE incident_id = $1
		 ORDER BY created_at DESC, bundle_id DESC LIMIT 1`, incidentID,
	), fmt.Sprintf("bundle for incident %s", incidentID))
}

func (db *DB) scanBundle(row pgx.Row, what string) (model.EvidenceBundle, error) {
	var b model.EvidenceBundle
	err := row.Scan(
		&b.BundleID, &b.IncidentID, &b.CreatedBy, &b.Sources, &b.Artifacts,
		&b.HashAlgo, &b.HashInputVersion, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EvidenceBundle{}, fmt.Errorf("%w: %s", ErrNotFound, what)
		}
		return model.EvidenceBundle{}, fmt.Errorf("storage: scan bundle: %w", err)
	}
	return b, nil
}

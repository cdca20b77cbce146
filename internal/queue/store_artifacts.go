package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertArtifact records or replaces a job artifact of a given kind.
func (s *Store) UpsertArtifact(ctx context.Context, artifact Artifact) error {
	if artifact.JobID == "" || artifact.Kind == "" {
		return errors.New("artifact job id and kind are required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (job_id, kind, path, metadata_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (job_id, kind) DO UPDATE SET
             path = excluded.path,
             metadata_json = excluded.metadata_json,
             updated_at = excluded.updated_at`,
		artifact.JobID,
		artifact.Kind,
		artifact.Path,
		nullableString(artifact.MetadataJSON),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

// ArtifactsByJob returns a job's artifacts ordered by kind.
func (s *Store) ArtifactsByJob(ctx context.Context, jobID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, kind, path, metadata_json, created_at, updated_at
         FROM artifacts WHERE job_id = ? ORDER BY kind`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var (
			artifact   Artifact
			metadata   sql.NullString
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&artifact.JobID, &artifact.Kind, &artifact.Path, &metadata, &createdRaw, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifact.MetadataJSON = metadata.String
		if created, err := parseTimeString(createdRaw); err == nil {
			artifact.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			artifact.UpdatedAt = updated
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

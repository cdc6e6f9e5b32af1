package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelsmith/internal/services"
)

// SaveRenderArtifact records the final encoded file for an output. An
// output has at most one artifact, so a re-render overwrites it.
func (s *Store) SaveRenderArtifact(ctx context.Context, artifact *RenderArtifact) error {
	ctx = ensureContext(ctx)
	if artifact == nil {
		return errors.New("save render artifact: nil artifact")
	}
	artifact.CreatedAt = time.Now().UTC()
	_, err := s.execWithRetry(ctx, `
		INSERT INTO render_artifacts (
			output_id, media_path, media_blob, media_type, byte_size, options_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(output_id) DO UPDATE SET
			media_path = excluded.media_path,
			media_blob = excluded.media_blob,
			media_type = excluded.media_type,
			byte_size = excluded.byte_size,
			options_json = excluded.options_json,
			created_at = excluded.created_at`,
		artifact.OutputID, nullableString(artifact.Media.Path),
		nullableBlob(artifact.Media.Blob), artifact.MediaType,
		artifact.ByteSize, nullableString(artifact.OptionsJSON),
		timestamp(artifact.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save render artifact: %w", err)
	}
	return nil
}

// GetRenderArtifact fetches an output's render artifact, or ErrNotFound.
func (s *Store) GetRenderArtifact(ctx context.Context, outputID string) (*RenderArtifact, error) {
	ctx = ensureContext(ctx)
	var (
		artifact    RenderArtifact
		mediaPath   sql.NullString
		mediaBlob   []byte
		optionsJSON sql.NullString
		createdAt   string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT output_id, media_path, media_blob, media_type, byte_size, options_json, created_at
		FROM render_artifacts WHERE output_id = ?`, outputID)
	if err := row.Scan(&artifact.OutputID, &mediaPath, &mediaBlob,
		&artifact.MediaType, &artifact.ByteSize, &optionsJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "", "get render artifact",
				fmt.Sprintf("output %s", outputID), nil)
		}
		return nil, fmt.Errorf("get render artifact: %w", err)
	}
	artifact.Media = StoredMedia{Path: mediaPath.String, Blob: mediaBlob}
	artifact.OptionsJSON = optionsJSON.String

	var err error
	if artifact.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("get render artifact: created_at: %w", err)
	}
	return &artifact, nil
}

// DeleteRenderArtifact drops an output's artifact row, used when a reset
// invalidates the rendered file.
func (s *Store) DeleteRenderArtifact(ctx context.Context, outputID string) error {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx,
		"DELETE FROM render_artifacts WHERE output_id = ?", outputID); err != nil {
		return fmt.Errorf("delete render artifact: %w", err)
	}
	return nil
}

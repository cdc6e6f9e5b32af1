package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelsmith/internal/services"
)

const sceneColumns = `id, output_id, ord, narration, visual_desc, end_visual_desc,
	audio_desc, environment, character_ref, image_status, restricted_reason,
	created_at, updated_at`

// ReplaceScenes swaps an output's scene list for a new one in a single
// transaction. Deleting the old scenes cascades to their assets and
// scene-scoped audio tracks, which is exactly what a fresh script breakdown
// requires. Scene order is reassigned from slice position.
func (s *Store) ReplaceScenes(ctx context.Context, outputID string, scenes []*Scene) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM scenes WHERE output_id = ?", outputID); err != nil {
			return fmt.Errorf("delete scenes: %w", err)
		}
		for i, scene := range scenes {
			scene.OutputID = outputID
			scene.Order = i
			if scene.ImageStatus == "" {
				scene.ImageStatus = ImagePending
			}
			scene.CreatedAt = now
			scene.UpdatedAt = now
			res, err := tx.ExecContext(ctx, `
				INSERT INTO scenes (
					output_id, ord, narration, visual_desc, end_visual_desc,
					audio_desc, environment, character_ref, image_status,
					restricted_reason, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				scene.OutputID, scene.Order, scene.Narration, scene.VisualDesc,
				scene.EndVisualDesc, scene.AudioDesc, scene.Environment,
				scene.CharacterRef, string(scene.ImageStatus),
				nullableString(scene.RestrictedReason),
				timestamp(scene.CreatedAt), timestamp(scene.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("insert scene %d: %w", i, err)
			}
			if scene.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("insert scene %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListScenes returns an output's scenes in narrative order.
func (s *Store) ListScenes(ctx context.Context, outputID string) ([]*Scene, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sceneColumns+" FROM scenes WHERE output_id = ? ORDER BY ord", outputID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// GetScene fetches one scene by ID.
func (s *Store) GetScene(ctx context.Context, sceneID int64) (*Scene, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sceneColumns+" FROM scenes WHERE id = ?", sceneID)
	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get scene", fmt.Sprintf("scene %d", sceneID), nil)
	}
	return scene, err
}

// UpdateScene persists edits to a scene's text fields and image status.
func (s *Store) UpdateScene(ctx context.Context, scene *Scene) error {
	ctx = ensureContext(ctx)
	if scene == nil {
		return errors.New("update scene: nil scene")
	}
	scene.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		UPDATE scenes SET
			narration = ?, visual_desc = ?, end_visual_desc = ?, audio_desc = ?,
			environment = ?, character_ref = ?, image_status = ?,
			restricted_reason = ?, updated_at = ?
		WHERE id = ?`,
		scene.Narration, scene.VisualDesc, scene.EndVisualDesc, scene.AudioDesc,
		scene.Environment, scene.CharacterRef, string(scene.ImageStatus),
		nullableString(scene.RestrictedReason), timestamp(scene.UpdatedAt), scene.ID,
	)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	return requireRow(res, "update scene", fmt.Sprintf("%d", scene.ID))
}

// SetSceneImageStatus records the outcome of an image generation attempt.
func (s *Store) SetSceneImageStatus(ctx context.Context, sceneID int64, status ImageStatus, reason string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `
		UPDATE scenes SET image_status = ?, restricted_reason = ?, updated_at = ?
		WHERE id = ?`,
		string(status), nullableString(reason), timestamp(time.Now().UTC()), sceneID,
	)
	if err != nil {
		return fmt.Errorf("set scene image status: %w", err)
	}
	return requireRow(res, "set scene image status", fmt.Sprintf("%d", sceneID))
}

func scanScene(row rowScanner) (*Scene, error) {
	var (
		scene            Scene
		imageStatus      string
		restrictedReason sql.NullString
		createdAt        string
		updatedAt        string
	)
	if err := row.Scan(
		&scene.ID, &scene.OutputID, &scene.Order, &scene.Narration,
		&scene.VisualDesc, &scene.EndVisualDesc, &scene.AudioDesc,
		&scene.Environment, &scene.CharacterRef, &imageStatus,
		&restrictedReason, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan scene: %w", err)
	}
	scene.ImageStatus = ImageStatus(imageStatus)
	scene.RestrictedReason = restrictedReason.String

	var err error
	if scene.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("scan scene: created_at: %w", err)
	}
	if scene.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("scan scene: updated_at: %w", err)
	}
	return &scene, nil
}

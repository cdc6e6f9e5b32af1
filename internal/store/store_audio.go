package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelsmith/internal/services"
)

const audioColumns = `id, output_id, scene_id, type, media_path, media_blob,
	duration_ms, offset_ms, alignment_json, created_at`

// ReplaceSceneTrack swaps a scene's single track of the given type, so a
// re-synthesized narration clip always supersedes its predecessor.
func (s *Store) ReplaceSceneTrack(ctx context.Context, track *AudioTrack) error {
	ctx = ensureContext(ctx)
	if track == nil {
		return errors.New("replace scene track: nil track")
	}
	if track.SceneID == 0 {
		return services.Wrap(services.ErrValidation, "", "replace scene track", "missing scene id", nil)
	}
	track.CreatedAt = time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM audio_tracks WHERE scene_id = ? AND type = ?`,
			track.SceneID, string(track.Type),
		); err != nil {
			return fmt.Errorf("delete scene track: %w", err)
		}
		return insertTrack(ctx, tx, track)
	})
}

// ListTracks returns an output's tracks of one type ordered by timeline
// offset, then by owning scene.
func (s *Store) ListTracks(ctx context.Context, outputID string, trackType TrackType) ([]*AudioTrack, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+audioColumns+` FROM audio_tracks
		WHERE output_id = ? AND type = ?
		ORDER BY offset_ms, scene_id`,
		outputID, string(trackType))
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*AudioTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// SceneTrack returns a scene's track of one type, or ErrNotFound.
func (s *Store) SceneTrack(ctx context.Context, sceneID int64, trackType TrackType) (*AudioTrack, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+audioColumns+` FROM audio_tracks WHERE scene_id = ? AND type = ?`,
		sceneID, string(trackType))
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "scene track",
			fmt.Sprintf("scene %d %s", sceneID, trackType), nil)
	}
	return track, err
}

// SceneNarrationTracks returns the narration track for each scene of an
// output keyed by scene ID. Scenes without narration are absent.
func (s *Store) SceneNarrationTracks(ctx context.Context, outputID string) (map[int64]*AudioTrack, error) {
	tracks, err := s.ListTracks(ctx, outputID, TrackNarration)
	if err != nil {
		return nil, err
	}
	bySceneID := make(map[int64]*AudioTrack, len(tracks))
	for _, track := range tracks {
		bySceneID[track.SceneID] = track
	}
	return bySceneID, nil
}

// AddOutputTrack appends one output-level track without touching existing
// rows. The music executors clear the type with DeleteTracks up front and
// then persist each composed track as it lands, so partial progress
// survives a crash mid-stage.
func (s *Store) AddOutputTrack(ctx context.Context, track *AudioTrack) error {
	ctx = ensureContext(ctx)
	if track == nil {
		return errors.New("add output track: nil track")
	}
	track.CreatedAt = time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertTrack(ctx, tx, track)
	})
}

// DeleteTracks removes all of an output's tracks of the given types. A voice
// change uses this to invalidate every narration clip at once.
func (s *Store) DeleteTracks(ctx context.Context, outputID string, types ...TrackType) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, trackType := range types {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM audio_tracks WHERE output_id = ? AND type = ?`,
				outputID, string(trackType),
			); err != nil {
				return fmt.Errorf("delete tracks %s: %w", trackType, err)
			}
		}
		return nil
	})
}

func insertTrack(ctx context.Context, tx *sql.Tx, track *AudioTrack) error {
	var sceneID any
	if track.SceneID != 0 {
		sceneID = track.SceneID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO audio_tracks (
			output_id, scene_id, type, media_path, media_blob,
			duration_ms, offset_ms, alignment_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		track.OutputID, sceneID, string(track.Type),
		nullableString(track.Media.Path), nullableBlob(track.Media.Blob),
		track.DurationMS, track.OffsetMS, nullableString(track.AlignmentJSON),
		timestamp(track.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}
	if track.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("insert track: %w", err)
	}
	return nil
}

func scanTrack(row rowScanner) (*AudioTrack, error) {
	var (
		track         AudioTrack
		sceneID       sql.NullInt64
		trackType     string
		mediaPath     sql.NullString
		mediaBlob     []byte
		alignmentJSON sql.NullString
		createdAt     string
	)
	if err := row.Scan(
		&track.ID, &track.OutputID, &sceneID, &trackType,
		&mediaPath, &mediaBlob, &track.DurationMS, &track.OffsetMS,
		&alignmentJSON, &createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan track: %w", err)
	}
	track.SceneID = sceneID.Int64
	track.Type = TrackType(trackType)
	track.Media = StoredMedia{Path: mediaPath.String, Blob: mediaBlob}
	track.AlignmentJSON = alignmentJSON.String

	var err error
	if track.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("scan track: created_at: %w", err)
	}
	return &track, nil
}

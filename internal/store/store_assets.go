package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelsmith/internal/services"
)

const assetColumns = `id, scene_id, kind, role, selected, media_path, media_blob,
	width, height, duration_ms, prompt, provider, derived_from, created_at`

// AddAsset inserts a generated image or motion clip. When Selected is set,
// any previously selected asset for the same (scene, kind, role) slot is
// deselected in the same transaction so only one asset ever drives
// rendering.
func (s *Store) AddAsset(ctx context.Context, asset *Asset) error {
	ctx = ensureContext(ctx)
	if asset == nil {
		return errors.New("add asset: nil asset")
	}
	asset.CreatedAt = time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if asset.Selected {
			if _, err := tx.ExecContext(ctx, `
				UPDATE assets SET selected = 0
				WHERE scene_id = ? AND kind = ? AND role = ?`,
				asset.SceneID, string(asset.Kind), string(asset.Role),
			); err != nil {
				return fmt.Errorf("deselect assets: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO assets (
				scene_id, kind, role, selected, media_path, media_blob,
				width, height, duration_ms, prompt, provider, derived_from, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			asset.SceneID, string(asset.Kind), string(asset.Role),
			boolToInt(asset.Selected), nullableString(asset.Media.Path),
			nullableBlob(asset.Media.Blob), asset.Width, asset.Height,
			asset.DurationMS, asset.Prompt, asset.Provider,
			nullableInt64(asset.DerivedFrom), timestamp(asset.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		if asset.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		return nil
	})
}

// SelectAsset makes one asset the selected variant for its slot,
// deselecting its siblings atomically.
func (s *Store) SelectAsset(ctx context.Context, assetID int64) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			sceneID int64
			kind    string
			role    string
		)
		row := tx.QueryRowContext(ctx,
			"SELECT scene_id, kind, role FROM assets WHERE id = ?", assetID)
		if err := row.Scan(&sceneID, &kind, &role); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "", "select asset", fmt.Sprintf("asset %d", assetID), nil)
			}
			return fmt.Errorf("select asset: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE assets SET selected = 0 WHERE scene_id = ? AND kind = ? AND role = ?`,
			sceneID, kind, role,
		); err != nil {
			return fmt.Errorf("deselect assets: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE assets SET selected = 1 WHERE id = ?", assetID,
		); err != nil {
			return fmt.Errorf("select asset: %w", err)
		}
		return nil
	})
}

// SelectedAsset returns the selected asset for a slot, or ErrNotFound when
// the slot has none.
func (s *Store) SelectedAsset(ctx context.Context, sceneID int64, kind AssetKind, role AssetRole) (*Asset, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE scene_id = ? AND kind = ? AND role = ? AND selected = 1`,
		sceneID, string(kind), string(role))
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "selected asset",
			fmt.Sprintf("scene %d %s/%s", sceneID, kind, role), nil)
	}
	return asset, err
}

// ListAssets returns every asset attached to a scene, newest first.
func (s *Store) ListAssets(ctx context.Context, sceneID int64) ([]*Asset, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE scene_id = ? ORDER BY id DESC`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	return collectAssets(rows)
}

// ListSelectedAssets returns the selected asset of the given kind for each
// scene of an output, in scene order. Scenes without a selection are simply
// absent from the result.
func (s *Store) ListSelectedAssets(ctx context.Context, outputID string, kind AssetKind) ([]*Asset, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.scene_id, a.kind, a.role, a.selected, a.media_path, a.media_blob,
			a.width, a.height, a.duration_ms, a.prompt, a.provider, a.derived_from, a.created_at
		FROM assets a
		JOIN scenes sc ON sc.id = a.scene_id
		WHERE sc.output_id = ? AND a.kind = ? AND a.selected = 1
		ORDER BY sc.ord, a.role`,
		outputID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list selected assets: %w", err)
	}
	defer rows.Close()
	return collectAssets(rows)
}

// DeleteAssetsForScene clears all assets of one kind from a scene, used when
// a redo invalidates prior generations.
func (s *Store) DeleteAssetsForScene(ctx context.Context, sceneID int64, kind AssetKind) error {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx,
		"DELETE FROM assets WHERE scene_id = ? AND kind = ?", sceneID, string(kind)); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	return nil
}

func collectAssets(rows *sql.Rows) ([]*Asset, error) {
	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		asset       Asset
		kind        string
		role        string
		selected    int
		mediaPath   sql.NullString
		mediaBlob   []byte
		derivedFrom sql.NullInt64
		createdAt   string
	)
	if err := row.Scan(
		&asset.ID, &asset.SceneID, &kind, &role, &selected,
		&mediaPath, &mediaBlob, &asset.Width, &asset.Height, &asset.DurationMS,
		&asset.Prompt, &asset.Provider, &derivedFrom, &createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	asset.Kind = AssetKind(kind)
	asset.Role = AssetRole(role)
	asset.Selected = selected != 0
	asset.Media = StoredMedia{Path: mediaPath.String, Blob: mediaBlob}
	asset.DerivedFrom = derivedFrom.Int64

	var err error
	if asset.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("scan asset: created_at: %w", err)
	}
	return &asset, nil
}

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"reelsmith/internal/store"
	"reelsmith/internal/textutil"
)

func (p *Pipeline) batchSize() int {
	if p.cfg.Pipeline.BatchSize > 0 {
		return p.cfg.Pipeline.BatchSize
	}
	return 1
}

// persistMedia stores a generated payload the hybrid way: small payloads go
// inline into the database, anything over the blob ceiling is written under
// the workspace and referenced by path.
func (p *Pipeline) persistMedia(name string, data []byte) (store.StoredMedia, error) {
	if int64(len(data)) <= p.cfg.Render.BlobMaxBytes {
		return store.MediaFromBlob(data), nil
	}
	dir := filepath.Join(p.cfg.Paths.WorkspaceDir, "media")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.StoredMedia{}, fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(dir, textutil.SanitizeFileName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return store.StoredMedia{}, fmt.Errorf("write media file: %w", err)
	}
	return store.MediaFromPath(path), nil
}

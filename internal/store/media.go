package store

import (
	"errors"
	"fmt"
	"os"
)

// StoredMedia is the hybrid path-or-blob variant used for every large media
// payload. Exactly one of Path or Blob is set; Bytes resolves either so
// consumers never repeat the "check path first, else blob" dance.
type StoredMedia struct {
	Path string
	Blob []byte
}

// MediaFromPath wraps a filesystem location.
func MediaFromPath(path string) StoredMedia {
	return StoredMedia{Path: path}
}

// MediaFromBlob wraps an inline payload.
func MediaFromBlob(data []byte) StoredMedia {
	return StoredMedia{Blob: data}
}

// IsZero reports whether no media is stored.
func (m StoredMedia) IsZero() bool {
	return m.Path == "" && len(m.Blob) == 0
}

// Bytes resolves the payload, reading from disk for path-backed media.
func (m StoredMedia) Bytes() ([]byte, error) {
	if len(m.Blob) > 0 {
		return m.Blob, nil
	}
	if m.Path == "" {
		return nil, errors.New("stored media: empty")
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("stored media: read %s: %w", m.Path, err)
	}
	return data, nil
}

// Size reports the payload size in bytes without loading path-backed media.
func (m StoredMedia) Size() (int64, error) {
	if len(m.Blob) > 0 {
		return int64(len(m.Blob)), nil
	}
	if m.Path == "" {
		return 0, errors.New("stored media: empty")
	}
	info, err := os.Stat(m.Path)
	if err != nil {
		return 0, fmt.Errorf("stored media: stat %s: %w", m.Path, err)
	}
	return info.Size(), nil
}

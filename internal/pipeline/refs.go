package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
)

// FileReferenceSource serves user-supplied reference images from the
// workspace. Scene references live at references/scenes/<scene-id>.<ext>,
// recurring characters at references/characters/<id>.<ext>.
type FileReferenceSource struct {
	dir string
}

func NewFileReferenceSource(workspaceDir string) *FileReferenceSource {
	return &FileReferenceSource{dir: filepath.Join(workspaceDir, "references")}
}

func (s *FileReferenceSource) SceneReference(sceneID int64) ([]byte, bool) {
	return s.read("scenes", strconv.FormatInt(sceneID, 10))
}

func (s *FileReferenceSource) CharacterReference(id string) ([]byte, bool) {
	if id == "" {
		return nil, false
	}
	return s.read("characters", id)
}

func (s *FileReferenceSource) read(sub, name string) ([]byte, bool) {
	matches, err := filepath.Glob(filepath.Join(s.dir, sub, name+".*"))
	if err != nil || len(matches) == 0 {
		return nil, false
	}
	data, err := os.ReadFile(matches[0])
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

package store

import (
	"path/filepath"
	"time"

	"github.com/clipforge/pipeline/internal/domain"
)

const projectMetadataFile = "project_metadata.json"

// SaveProjectMetadata writes project_metadata.json at the project root
// (not the metadata dir — it describes the project, not a pipeline
// artifact).
func (s *Store) SaveProjectMetadata(p domain.Project) error {
	p.UpdatedAt = time.Now()
	return writeJSONAtomic(s.projectMetaPath(), p)
}

func (s *Store) LoadProjectMetadata() (domain.Project, bool, error) {
	var p domain.Project
	ok, err := readJSONFile(s.projectMetaPath(), &p)
	return p, ok, err
}

func (s *Store) projectMetaPath() string {
	return filepath.Join(s.Paths.Root, projectMetadataFile)
}

// NewProject constructs a fresh Project record in the "created" state.
func NewProject(id, name string, category domain.Category, videoPath string) domain.Project {
	now := time.Now()
	return domain.Project{
		ID:           id,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
		Category:     category,
		VideoPath:    videoPath,
		CurrentStage: 0,
		Status:       domain.StatusCreated,
	}
}

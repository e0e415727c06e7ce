package ports

import (
	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
)

// ArtifactStore persists fitted models as files named {logical name}.{ext},
// where ext is fixed by the model type.
type ArtifactStore interface {
	// Save writes the artifact, overwriting any file of the same name, and
	// returns the filename used.
	Save(model ml.Model, name string) (string, error)
	// Load rebuilds a fitted variant of modelType from filename.
	Load(modelType string, filename string) (ml.Model, error)
	Exists(filename string) (bool, error)
	Rename(oldFilename, newFilename string) error
	Remove(filename string) error
	// Filename is the artifact filename a model of type t saved as name gets.
	Filename(name string, t domain.ModelType) (string, error)
	// Path is the location recorded in metadata for filename.
	Path(filename string) string
}

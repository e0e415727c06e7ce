// Package artifacts stores fitted models as files on an afero filesystem.
package artifacts

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
)

// Artifact format extensions.
const (
	FormatGob    = "gob"
	FormatNative = "nnet"
)

// formatByType is the only place an artifact extension is chosen.
var formatByType = map[domain.ModelType]string{
	domain.ModelTypeLogisticRegression: FormatGob,
	domain.ModelTypeRandomForest:       FormatGob,
	domain.ModelTypeNeuralNet:          FormatNative,
}

type Store struct {
	fs       afero.Fs
	dir      string
	registry *ml.Registry
}

func NewStore(fs afero.Fs, dir string, registry *ml.Registry) *Store {
	return &Store{fs: fs, dir: dir, registry: registry}
}

// NewOsStore stores artifacts under dir on the local disk.
func NewOsStore(dir string, registry *ml.Registry) *Store {
	return NewStore(afero.NewOsFs(), dir, registry)
}

func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

func (s *Store) Filename(name string, t domain.ModelType) (string, error) {
	ext, ok := formatByType[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedModelType, t)
	}
	return name + "." + ext, nil
}

func (s *Store) Save(model ml.Model, name string) (string, error) {
	if !model.IsFitted() {
		return "", domain.ErrModelNotFitted
	}
	filename, err := s.Filename(name, model.Type())
	if err != nil {
		return "", err
	}
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}

	path := s.Path(filename)
	f, err := s.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}

	err = encode(f, model)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// a truncated artifact would later fail to load as corrupt
		if rerr := s.fs.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			err = errors.Join(err, rerr)
		}
		return "", fmt.Errorf("failed to write artifact %s: %w", filename, err)
	}
	return filename, nil
}

func encode(w io.Writer, model ml.Model) error {
	switch m := model.(type) {
	case *ml.LinearClassifier:
		return gob.NewEncoder(w).Encode(m.Fitted())
	case *ml.EnsembleClassifier:
		return gob.NewEncoder(w).Encode(m.Fitted())
	case *ml.BinaryNeuralNet:
		_, err := m.Fitted().WriteTo(w)
		return err
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnsupportedModelType, model)
	}
}

func (s *Store) Load(modelType string, filename string) (ml.Model, error) {
	t, _, err := s.registry.Resolve(modelType)
	if err != nil {
		return nil, err
	}
	model, err := s.registry.New(t.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	ok, err := s.Exists(filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, filename)
	}

	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext != FormatGob && ext != FormatNative {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedArtifactFormat, filepath.Ext(filename))
	}
	if ext != formatByType[t] {
		return nil, fmt.Errorf("%w: %s artifacts are stored as .%s, got %s", domain.ErrUnsupportedArtifactFormat, t, formatByType[t], filename)
	}

	f, err := s.fs.Open(s.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	if err := decode(f, model); err != nil {
		return nil, err
	}
	return model, nil
}

func decode(r io.Reader, model ml.Model) error {
	switch m := model.(type) {
	case *ml.LinearClassifier:
		var est ml.LogisticRegression
		if err := gob.NewDecoder(r).Decode(&est); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
		}
		return m.Restore(&est)
	case *ml.EnsembleClassifier:
		var est ml.RandomForest
		if err := gob.NewDecoder(r).Decode(&est); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
		}
		return m.Restore(&est)
	case *ml.BinaryNeuralNet:
		nn, err := ml.ReadNetwork(r)
		if err != nil {
			return err
		}
		return m.Restore(nn)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnsupportedModelType, model)
	}
}

func (s *Store) Exists(filename string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.Path(filename))
	if err != nil {
		return false, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return ok, nil
}

func (s *Store) Rename(oldFilename, newFilename string) error {
	if err := checkFilename(newFilename); err != nil {
		return err
	}
	exists, err := s.Exists(newFilename)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrArtifactExists, newFilename)
	}
	if err := s.fs.Rename(s.Path(oldFilename), s.Path(newFilename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, oldFilename)
		}
		return fmt.Errorf("failed to rename artifact: %w", err)
	}
	return nil
}

func (s *Store) Remove(filename string) error {
	if err := s.fs.Remove(s.Path(filename)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, filename)
		}
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

// checkFilename keeps artifacts inside the models directory.
func checkFilename(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidModelName, filename)
	}
	return nil
}

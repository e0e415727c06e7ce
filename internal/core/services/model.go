package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/ports/output"
)

// ModelService manages persisted models: reload, metadata, rename and delete.
// Every operation is restricted to the record owner or an administrator.
type ModelService struct {
	repo  ports.ModelRecordRepository
	store ports.ArtifactStore
}

func NewModelService(repo ports.ModelRecordRepository, store ports.ArtifactStore) *ModelService {
	return &ModelService{repo: repo, store: store}
}

// DeleteAllResult reports a best-effort bulk delete.
type DeleteAllResult struct {
	Deleted []string          `json:"deleted"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func (s *ModelService) Get(ctx context.Context, caller domain.Identity, name string) (*domain.ModelRecord, error) {
	record, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(record) {
		return nil, domain.ErrForbidden
	}
	return record, nil
}

func (s *ModelService) List(ctx context.Context, caller domain.Identity) ([]*domain.ModelRecord, error) {
	filter := ports.ListFilter{OwnerID: caller.ID}
	if caller.IsAdmin() {
		filter.OwnerID = uuid.Nil
	}
	return s.repo.List(ctx, filter)
}

// Load rebuilds the named model from its artifact. A record whose artifact is
// gone yields domain.ErrArtifactMissing.
func (s *ModelService) Load(ctx context.Context, caller domain.Identity, name string) (ml.Model, *domain.ModelRecord, error) {
	record, err := s.Get(ctx, caller, name)
	if err != nil {
		return nil, nil, err
	}
	filename := filepath.Base(record.FilePath)
	ok, err := s.store.Exists(filename)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		log.WithFields(log.Fields{
			"model_name": record.Name,
			"file_path":  record.FilePath,
		}).Warn("Metadata record has no artifact")
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrArtifactMissing, record.FilePath)
	}
	model, err := s.store.Load(record.ModelType.String(), filename)
	if err != nil {
		return nil, nil, err
	}
	return model, record, nil
}

func (s *ModelService) Rename(ctx context.Context, caller domain.Identity, name, newName string) (*domain.ModelRecord, error) {
	if err := domain.ValidateModelName(newName); err != nil {
		return nil, err
	}
	record, err := s.Get(ctx, caller, name)
	if err != nil {
		return nil, err
	}
	if newName == name {
		return record, nil
	}

	_, err = s.repo.GetByName(ctx, newName)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %q", domain.ErrModelNameConflict, newName)
	case !errors.Is(err, domain.ErrModelNotFound):
		return nil, err
	}

	oldFilename := filepath.Base(record.FilePath)
	newFilename, err := s.store.Filename(newName, record.ModelType)
	if err != nil {
		return nil, err
	}
	if err := s.store.Rename(oldFilename, newFilename); err != nil {
		return nil, err
	}

	renamed := *record
	renamed.Name = newName
	renamed.FilePath = s.store.Path(newFilename)
	if err := s.repo.Update(ctx, &renamed); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"model_name": name,
			"file_path":  renamed.FilePath,
		}).Warn("Artifact renamed but metadata was not updated")
		return nil, err
	}
	log.WithFields(log.Fields{"old_name": name, "new_name": newName}).Info("Model renamed")
	return &renamed, nil
}

func (s *ModelService) Delete(ctx context.Context, caller domain.Identity, name string) error {
	record, err := s.Get(ctx, caller, name)
	if err != nil {
		return err
	}
	if err := s.store.Remove(filepath.Base(record.FilePath)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		log.WithError(err).WithField("model_name", name).Warn("Artifact removed but metadata was not deleted")
		return err
	}
	log.WithField("model_name", name).Info("Model deleted")
	return nil
}

// DeleteAll removes every model the caller can see. A missing artifact does
// not stop its record from being deleted; other failures are reported per
// model and the rest carry on.
func (s *ModelService) DeleteAll(ctx context.Context, caller domain.Identity, confirm bool) (*DeleteAllResult, error) {
	if !confirm {
		return nil, domain.ErrConfirmationRequired
	}
	records, err := s.List(ctx, caller)
	if err != nil {
		return nil, err
	}

	result := &DeleteAllResult{Deleted: []string{}}
	fail := func(name string, err error) {
		if result.Failed == nil {
			result.Failed = make(map[string]string)
		}
		result.Failed[name] = err.Error()
	}
	for _, record := range records {
		err := s.store.Remove(filepath.Base(record.FilePath))
		if err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
			fail(record.Name, err)
			continue
		}
		if err := s.repo.Delete(ctx, record.ID); err != nil {
			fail(record.Name, err)
			continue
		}
		result.Deleted = append(result.Deleted, record.Name)
	}
	log.WithFields(log.Fields{
		"caller":  caller.ID,
		"deleted": len(result.Deleted),
		"failed":  len(result.Failed),
	}).Info("Bulk model delete finished")
	return result, nil
}

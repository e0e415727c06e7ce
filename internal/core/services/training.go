package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/ports/output"
)

// TrainingResult is what one successful training job produces.
type TrainingResult struct {
	Model    ml.Model
	Accuracy float64
	Filename string
	Record   *domain.ModelRecord
	// CV is set when the job was evaluated with k-fold cross-validation.
	CV *ml.CVResult
}

// TrainingService runs training jobs end to end: validate, fit, evaluate,
// persist the artifact, then record metadata.
type TrainingService struct {
	registry *ml.Registry
	repo     ports.ModelRecordRepository
	store    ports.ArtifactStore
	slots    *semaphore.Weighted
	now      func() time.Time

	// names held by jobs that have not yet recorded their metadata
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewTrainingService(registry *ml.Registry, repo ports.ModelRecordRepository, store ports.ArtifactStore, maxConcurrent int64) *TrainingService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &TrainingService{
		registry: registry,
		repo:     repo,
		store:    store,
		slots:    semaphore.NewWeighted(maxConcurrent),
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// DefaultModelName is the logical name used when the caller gives none.
func DefaultModelName(t domain.ModelType, owner uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", t, owner, at.UTC().Format("20060102_150405"))
}

func (s *TrainingService) Train(ctx context.Context, job domain.TrainingJob) (*TrainingResult, error) {
	modelType, construct, err := s.registry.Resolve(job.ModelType)
	if err != nil {
		return nil, err
	}
	model, err := construct(job.Params)
	if err != nil {
		return nil, err
	}
	if err := validateJob(modelType, job); err != nil {
		return nil, err
	}

	name := job.Name
	if name == "" {
		name = DefaultModelName(modelType, job.OwnerID, s.now())
	}
	if err := domain.ValidateModelName(name); err != nil {
		return nil, err
	}
	release, err := s.reserveName(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)

	// Once fitting starts it runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	var rng *rand.Rand
	if job.Seed != nil {
		seed := uint64(*job.Seed)
		rng = rand.New(rand.NewPCG(seed, seed))
		model.SetSeed(seed)
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	start := time.Now()
	result := &TrainingResult{Model: model}
	if job.CrossValidated() {
		cv, err := ml.CrossValScore(ctx, model.NewEstimator, job.Features, job.Labels, job.KFolds)
		if err != nil {
			return nil, fitError(err)
		}
		if _, err := model.Train(job.Features, job.Labels); err != nil {
			return nil, fitError(err)
		}
		result.Accuracy = cv.Mean
		result.CV = &cv
	} else {
		acc, err := holdout(model, job, rng)
		if err != nil {
			return nil, err
		}
		result.Accuracy = acc
	}

	fields := log.Fields{
		"model_name": name,
		"model_type": modelType,
		"owner_id":   job.OwnerID,
		"rows":       len(job.Features),
		"accuracy":   result.Accuracy,
		"duration":   time.Since(start).String(),
	}
	if result.CV != nil {
		fields["k_folds"] = job.KFolds
		fields["cv_stddev"] = result.CV.StdDev
	}
	log.WithFields(fields).Info("Model trained")

	filename, err := s.store.Save(model, name)
	if err != nil {
		return nil, err
	}
	result.Filename = filename

	record := &domain.ModelRecord{
		ID:         uuid.New(),
		OwnerID:    job.OwnerID,
		Name:       name,
		ModelType:  modelType,
		Accuracy:   result.Accuracy,
		Parameters: model.Params(),
		FilePath:   s.store.Path(filename),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		log.WithError(err).WithField("file_path", record.FilePath).Warn("Artifact saved but metadata was not recorded")
		return nil, err
	}
	result.Record = record
	return result, nil
}

// reserveName claims name for the duration of one job. The claim is held
// until the metadata row exists, so a second job cannot pass the lookup and
// overwrite the first job's artifact.
func (s *TrainingService) reserveName(ctx context.Context, name string) (func(), error) {
	s.mu.Lock()
	if _, busy := s.inflight[name]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is being trained", domain.ErrModelNameConflict, name)
	}
	s.inflight[name] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.inflight, name)
		s.mu.Unlock()
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (s *TrainingService) ensureNameFree(ctx context.Context, name string) error {
	_, err := s.repo.GetByName(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q", domain.ErrModelNameConflict, name)
	case errors.Is(err, domain.ErrModelNotFound):
		return nil
	default:
		return err
	}
}

// validateJob runs the cheap checks that must fail before any fitting.
func validateJob(t domain.ModelType, job domain.TrainingJob) error {
	n := len(job.Features)
	if n == 0 {
		return domain.ErrEmptyDataset
	}
	if len(job.Labels) != n {
		return fmt.Errorf("%w: %d rows but %d labels", domain.ErrFeatureMismatch, n, len(job.Labels))
	}
	if t == domain.ModelTypeNeuralNet {
		if k := len(ml.UniqueLabels(job.Labels)); k != 2 {
			return fmt.Errorf("%w: found %d", domain.ErrInvalidLabelCardinality, k)
		}
	}
	if job.CrossValidated() {
		if job.KFolds > n {
			return fmt.Errorf("%w: k=%d with %d rows", domain.ErrInvalidFoldCount, job.KFolds, n)
		}
		return nil
	}
	if job.TestSize <= 0 || job.TestSize >= 1 {
		return fmt.Errorf("%w: got %v", domain.ErrInvalidTestSize, job.TestSize)
	}
	return nil
}

// holdout fits on a random training partition and scores the held-out rows.
// Each partition's labels are coded on their own, so the model is fitted on
// codes rather than the original label values.
func holdout(model ml.Model, job domain.TrainingJob, rng *rand.Rand) (float64, error) {
	split, err := ml.TrainTestSplit(len(job.Features), job.TestSize, rng)
	if err != nil {
		return 0, err
	}
	trainX, trainY := ml.Subset(job.Features, job.Labels, split.Train)
	testX, testY := ml.Subset(job.Features, job.Labels, split.Test)
	trainCoded, _ := ml.EncodeLabels(trainY)
	testCoded, _ := ml.EncodeLabels(testY)

	if _, err := model.Train(trainX, trainCoded); err != nil {
		return 0, fitError(err)
	}
	pred, err := predictHoldout(model, testX)
	if err != nil {
		return 0, fitError(err)
	}
	return ml.Accuracy(testCoded, pred)
}

func predictHoldout(model ml.Model, X [][]float64) ([]string, error) {
	switch m := model.(type) {
	case *ml.BinaryNeuralNet:
		scores, err := m.Scores(X)
		if err != nil {
			return nil, err
		}
		return m.Fitted().Labels(scores), nil
	case *ml.LinearClassifier, *ml.EnsembleClassifier:
		return m.Estimator().Predict(X)
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedModelType, model)
	}
}

// fitError passes client-fault errors through and wraps everything else as
// a training failure carrying the underlying message.
func fitError(err error) error {
	for _, clientErr := range []error{
		domain.ErrSingleClass,
		domain.ErrInvalidLabelCardinality,
		domain.ErrFeatureMismatch,
		domain.ErrEmptyDataset,
		domain.ErrInvalidHyperparameters,
		domain.ErrInvalidFoldCount,
		domain.ErrInvalidTestSize,
	} {
		if errors.Is(err, clientErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrTrainingFailed, err)
}

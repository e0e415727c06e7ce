package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/ports/output"
)

// MockModelRecordRepo is a mock of ModelRecordRepository.
type MockModelRecordRepo struct {
	mock.Mock
}

func (m *MockModelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockModelRecordRepo) GetByName(ctx context.Context, name string) (*domain.ModelRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelRecord), args.Error(1)
}

func (m *MockModelRecordRepo) List(ctx context.Context, filter ports.ListFilter) ([]*domain.ModelRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ModelRecord), args.Error(1)
}

func (m *MockModelRecordRepo) Update(ctx context.Context, record *domain.ModelRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockModelRecordRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockModelRecordRepo) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockArtifactStore is a mock of ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Save(model ml.Model, name string) (string, error) {
	args := m.Called(model, name)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) Load(modelType string, filename string) (ml.Model, error) {
	args := m.Called(modelType, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ml.Model), args.Error(1)
}

func (m *MockArtifactStore) Exists(filename string) (bool, error) {
	args := m.Called(filename)
	return args.Bool(0), args.Error(1)
}

func (m *MockArtifactStore) Rename(oldFilename, newFilename string) error {
	args := m.Called(oldFilename, newFilename)
	return args.Error(0)
}

func (m *MockArtifactStore) Remove(filename string) error {
	args := m.Called(filename)
	return args.Error(0)
}

func (m *MockArtifactStore) Filename(name string, t domain.ModelType) (string, error) {
	args := m.Called(name, t)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) Path(filename string) string {
	args := m.Called(filename)
	return args.String(0)
}

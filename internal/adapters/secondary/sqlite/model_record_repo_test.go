package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-trainer-service/internal/core/domain"
	ports "model-trainer-service/internal/core/ports/output"
)

func newTestRepo(t *testing.T) ports.ModelRecordRepository {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewModelRecordRepository(db)
}

func newRecord(owner uuid.UUID, name string, created time.Time) *domain.ModelRecord {
	return &domain.ModelRecord{
		ID:         uuid.New(),
		OwnerID:    owner,
		Name:       name,
		ModelType:  domain.ModelTypeRandomForest,
		Accuracy:   0.875,
		Parameters: map[string]any{"n_estimators": 10.0, "bootstrap": false},
		FilePath:   "saved_models/" + name + ".gob",
		CreatedAt:  created,
	}
}

func TestModelRecordRepo_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := uuid.New()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	record := newRecord(owner, "churn", created)

	require.NoError(t, repo.Create(ctx, record))

	got, err := repo.GetByName(ctx, "churn")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, domain.ModelTypeRandomForest, got.ModelType)
	assert.Equal(t, 0.875, got.Accuracy)
	assert.Equal(t, map[string]any{"n_estimators": 10.0, "bootstrap": false}, got.Parameters)
	assert.Equal(t, "saved_models/churn.gob", got.FilePath)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestModelRecordRepo_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByName(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestModelRecordRepo_DuplicateName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newRecord(uuid.New(), "dup", now)))
	err := repo.Create(ctx, newRecord(uuid.New(), "dup", now))
	assert.ErrorIs(t, err, domain.ErrModelNameConflict)
}

func TestModelRecordRepo_ListFiltersByOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRecord(alice, "a1", base)))
	require.NoError(t, repo.Create(ctx, newRecord(alice, "a2", base.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, newRecord(bob, "b1", base.Add(2*time.Hour))))

	mine, err := repo.List(ctx, ports.ListFilter{OwnerID: alice})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a2", mine[0].Name)
	assert.Equal(t, "a1", mine[1].Name)

	all, err := repo.List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestModelRecordRepo_Update(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	record := newRecord(uuid.New(), "old", time.Now())
	require.NoError(t, repo.Create(ctx, record))
	require.NoError(t, repo.Create(ctx, newRecord(uuid.New(), "taken", time.Now())))

	record.Name = "taken"
	assert.ErrorIs(t, repo.Update(ctx, record), domain.ErrModelNameConflict)

	record.Name = "new"
	record.FilePath = "saved_models/new.gob"
	require.NoError(t, repo.Update(ctx, record))

	got, err := repo.GetByName(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "saved_models/new.gob", got.FilePath)
	_, err = repo.GetByName(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)

	missing := newRecord(uuid.New(), "ghost", time.Now())
	assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrModelNotFound)
}

func TestModelRecordRepo_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	record := newRecord(uuid.New(), "bye", time.Now())
	require.NoError(t, repo.Create(ctx, record))

	require.NoError(t, repo.Delete(ctx, record.ID))
	assert.ErrorIs(t, repo.Delete(ctx, record.ID), domain.ErrModelNotFound)
}

func TestModelRecordRepo_Ping(t *testing.T) {
	repo := newTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

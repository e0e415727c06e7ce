package ports

import (
	"context"

	"github.com/google/uuid"

	"model-trainer-service/internal/core/domain"
)

type ListFilter struct {
	// OwnerID restricts the listing to one owner; uuid.Nil lists every record.
	OwnerID uuid.UUID
}

// ModelRecordRepository is the durable metadata store. Name is unique across
// the store; Create and Update fail with domain.ErrModelNameConflict when it
// would be duplicated.
type ModelRecordRepository interface {
	Create(ctx context.Context, record *domain.ModelRecord) error
	GetByName(ctx context.Context, name string) (*domain.ModelRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.ModelRecord, error)
	// Update rewrites the name and file path of the record with record.ID.
	Update(ctx context.Context, record *domain.ModelRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-trainer-service/internal/core/domain"
	ports "model-trainer-service/internal/core/ports/output"
)

const schema = `
	CREATE TABLE IF NOT EXISTS trained_models (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL,
		name        TEXT NOT NULL UNIQUE,
		model_type  TEXT NOT NULL,
		accuracy    DOUBLE PRECISION NOT NULL,
		parameters  JSONB NOT NULL DEFAULT '{}'::jsonb,
		file_path   TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS trained_models_user_id_idx ON trained_models (user_id);
`

type modelRecordRepo struct {
	pool *pgxpool.Pool
}

// NewModelRecordRepository creates a new trained model metadata repository
func NewModelRecordRepository(pool *pgxpool.Pool) ports.ModelRecordRepository {
	return &modelRecordRepo{pool: pool}
}

// EnsureSchema creates the trained_models table when it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create trained_models schema: %w", err)
	}
	return nil
}

func (r *modelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	query := `
		INSERT INTO trained_models (id, user_id, name, model_type, accuracy, parameters, file_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	params := record.Parameters
	if params == nil {
		params = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.OwnerID,
		record.Name,
		string(record.ModelType),
		record.Accuracy,
		params,
		record.FilePath,
		record.CreatedAt,
	)
	if err != nil {
		return writeError("insert trained_model", err)
	}
	return nil
}

func (r *modelRecordRepo) GetByName(ctx context.Context, name string) (*domain.ModelRecord, error) {
	query := `
		SELECT id, user_id, name, model_type, accuracy, parameters, file_path, created_at
		FROM trained_models
		WHERE name = $1
	`
	record, err := scanRecord(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		return nil, readError("get trained_model by name", err)
	}
	return record, nil
}

func (r *modelRecordRepo) List(ctx context.Context, filter ports.ListFilter) ([]*domain.ModelRecord, error) {
	query := `
		SELECT id, user_id, name, model_type, accuracy, parameters, file_path, created_at
		FROM trained_models
		WHERE ($1::uuid IS NULL OR user_id = $1)
		ORDER BY created_at DESC, name
	`
	var owner *uuid.UUID
	if filter.OwnerID != uuid.Nil {
		owner = &filter.OwnerID
	}
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list trained_models: %w", err)
	}
	defer rows.Close()

	var records []*domain.ModelRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trained_model: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trained_models: %w", err)
	}
	return records, nil
}

func (r *modelRecordRepo) Update(ctx context.Context, record *domain.ModelRecord) error {
	query := `
		UPDATE trained_models
		SET name = $1, file_path = $2
		WHERE id = $3
	`
	result, err := r.pool.Exec(ctx, query, record.Name, record.FilePath, record.ID)
	if err != nil {
		return writeError("update trained_model", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrModelNotFound
	}
	return nil
}

func (r *modelRecordRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM trained_models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trained_model: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrModelNotFound
	}
	return nil
}

func (r *modelRecordRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// uniqueViolation is the SQLSTATE raised when the name index rejects a row.
const uniqueViolation = "23505"

// writeError maps an insert or update failure onto the domain errors.
func writeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrModelNameConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

// readError maps a single-row lookup failure onto the domain errors.
func readError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrModelNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanRecord(row pgx.Row) (*domain.ModelRecord, error) {
	var (
		record    domain.ModelRecord
		modelType string
	)
	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Name,
		&modelType,
		&record.Accuracy,
		&record.Parameters,
		&record.FilePath,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.ModelType = domain.ModelType(modelType)
	return &record, nil
}

// Package sqlite is a ModelRecordRepository backed by a local SQLite file,
// used by the trainer CLI and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"model-trainer-service/internal/core/domain"
	ports "model-trainer-service/internal/core/ports/output"
)

const schema = `
CREATE TABLE IF NOT EXISTS trained_models (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL UNIQUE,
    model_type  TEXT NOT NULL,
    accuracy    REAL NOT NULL,
    parameters  TEXT NOT NULL DEFAULT '{}',
    file_path   TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS trained_models_user_id_idx ON trained_models (user_id);
`

type modelRecordRepo struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trained_models schema: %w", err)
	}
	return db, nil
}

// NewModelRecordRepository creates a new trained model metadata repository
func NewModelRecordRepository(db *sql.DB) ports.ModelRecordRepository {
	return &modelRecordRepo{db: db}
}

func (r *modelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	params, err := encodeParams(record.Parameters)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO trained_models (id, user_id, name, model_type, accuracy, parameters, file_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
		record.OwnerID.String(),
		record.Name,
		string(record.ModelType),
		record.Accuracy,
		params,
		record.FilePath,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrModelNameConflict
		}
		return fmt.Errorf("insert trained_model: %w", err)
	}
	return nil
}

func (r *modelRecordRepo) GetByName(ctx context.Context, name string) (*domain.ModelRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, model_type, accuracy, parameters, file_path, created_at
		FROM trained_models
		WHERE name = ?`, name)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("get trained_model by name: %w", err)
	}
	return record, nil
}

func (r *modelRecordRepo) List(ctx context.Context, filter ports.ListFilter) ([]*domain.ModelRecord, error) {
	query := `
		SELECT id, user_id, name, model_type, accuracy, parameters, file_path, created_at
		FROM trained_models`
	var args []any
	if filter.OwnerID != uuid.Nil {
		query += ` WHERE user_id = ?`
		args = append(args, filter.OwnerID.String())
	}
	query += ` ORDER BY created_at DESC, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	result, err := r.db.ExecContext(ctx,
		`UPDATE trained_models SET name = ?, file_path = ? WHERE id = ?`,
		record.Name, record.FilePath, record.ID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrModelNameConflict
		}
		return fmt.Errorf("update trained_model: %w", err)
	}
	return requireAffected(result)
}

func (r *modelRecordRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trained_models WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete trained_model: %w", err)
	}
	return requireAffected(result)
}

func (r *modelRecordRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.ModelRecord, error) {
	var (
		record           domain.ModelRecord
		id, owner, mtype string
		params           string
		createdAt        time.Time
	)
	if err := row.Scan(&id, &owner, &record.Name, &mtype, &record.Accuracy, &params, &record.FilePath, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if record.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if record.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &record.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	record.ModelType = domain.ModelType(mtype)
	record.CreatedAt = createdAt
	return &record, nil
}

func encodeParams(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode parameters: %w", err)
	}
	return string(raw), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrModelNotFound
	}
	return nil
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"model-trainer-service/internal/core/domain"
)

type ModelRecordResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Name       string         `json:"name"`
	ModelType  string         `json:"model_type"`
	Accuracy   float64        `json:"accuracy"`
	Parameters map[string]any `json:"parameters"`
	FilePath   string         `json:"file_path"`
	CreatedAt  string         `json:"created_at"`
}

type ListModelsResponse struct {
	Items []ModelRecordResponse `json:"items"`
	Total int                   `json:"total"`
}

type RenameModelRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

type LoadModelResponse struct {
	Message   string `json:"message"`
	FileName  string `json:"file_name"`
	ModelType string `json:"model_type"`
}

type DeleteModelResponse struct {
	Message  string `json:"message"`
	FileName string `json:"file_name"`
}

type DeleteAllResponse struct {
	Deleted []string          `json:"deleted"`
	Failed  map[string]string `json:"failed,omitempty"`
}

type ModelTypesResponse struct {
	ModelTypes []string `json:"model_types"`
}

func ToModelRecordResponse(r *domain.ModelRecord) ModelRecordResponse {
	params := r.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return ModelRecordResponse{
		ID:         r.ID,
		UserID:     r.OwnerID,
		Name:       r.Name,
		ModelType:  r.ModelType.String(),
		Accuracy:   r.Accuracy,
		Parameters: params,
		FilePath:   r.FilePath,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToListModelsResponse(records []*domain.ModelRecord) ListModelsResponse {
	items := make([]ModelRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, ToModelRecordResponse(r))
	}
	return ListModelsResponse{Items: items, Total: len(items)}
}

func ToModelTypesResponse(types []domain.ModelType) ModelTypesResponse {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.String())
	}
	return ModelTypesResponse{ModelTypes: out}
}

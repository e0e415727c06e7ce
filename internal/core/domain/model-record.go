package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModelRecord is the durable metadata kept for a trained model. Name is unique
// across the store and FilePath points at the artifact written for it.
type ModelRecord struct {
	ID         uuid.UUID      `json:"id"`
	OwnerID    uuid.UUID      `json:"user_id"`
	Name       string         `json:"name"`
	ModelType  ModelType      `json:"model_type"`
	Accuracy   float64        `json:"accuracy"`
	Parameters map[string]any `json:"parameters"`
	FilePath   string         `json:"file_path"`
	CreatedAt  time.Time      `json:"created_at"`
}

const MaxModelNameLength = 100

var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-. ]+$`)

// ValidateModelName checks a logical name. Names become artifact filenames,
// so path separators are never allowed.
func ValidateModelName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidModelName)
	case len(name) > MaxModelNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidModelName, MaxModelNameLength)
	case !modelNamePattern.MatchString(name):
		return fmt.Errorf("%w: only letters, digits, spaces and _ - . are allowed", ErrInvalidModelName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: must not start with a dot", ErrInvalidModelName)
	}
	return nil
}

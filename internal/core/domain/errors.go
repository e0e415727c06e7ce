package domain

import "errors"

// ============================================================================
// Validation Errors
// ============================================================================

var (
	ErrUnsupportedModelType     = errors.New("unsupported model type")
	ErrInvalidHyperparameters   = errors.New("invalid hyperparameters")
	ErrInvalidLabelCardinality  = errors.New("binary classification only: label column must contain exactly two distinct values")
	ErrTargetColumnNotFound     = errors.New("target column not found in dataset")
	ErrBatchTooLarge            = errors.New("batch too large")
	ErrInvalidModelName         = errors.New("invalid model name")
	ErrInvalidTestSize          = errors.New("test size must be between 0 and 1")
	ErrInvalidFoldCount         = errors.New("fold count must not exceed the number of rows")
	ErrEmptyDataset             = errors.New("dataset has no rows")
	ErrFeatureMismatch          = errors.New("feature rows do not match the expected width")
	ErrInvalidCSV               = errors.New("failed to read CSV")
	ErrInvalidEncoding          = errors.New("file encoding is not UTF-8")
	ErrConfirmationRequired     = errors.New("confirmation required: set confirm=true to proceed")
	ErrSingleClass              = errors.New("training data must contain at least two classes")
)

// ============================================================================
// Model State Errors
// ============================================================================

var (
	ErrModelNotFitted = errors.New("model not trained or loaded yet")
)

// ============================================================================
// Artifact Errors
// ============================================================================

var (
	ErrArtifactNotFound          = errors.New("model artifact not found")
	ErrArtifactExists            = errors.New("a file with this name already exists on disk")
	ErrUnsupportedArtifactFormat = errors.New("unsupported artifact format")
	ErrCorruptArtifact           = errors.New("model artifact could not be decoded")
)

// ============================================================================
// Training Errors
// ============================================================================

var (
	ErrTrainingFailed = errors.New("training failed")
)

// ============================================================================
// Consistency Errors
// ============================================================================

// ErrArtifactMissing marks a metadata record whose artifact is gone. It wraps
// ErrArtifactNotFound so callers matching the latter still see it.
var ErrArtifactMissing = &consistencyError{msg: "metadata record exists but its artifact is missing"}

type consistencyError struct{ msg string }

func (e *consistencyError) Error() string { return e.msg }
func (e *consistencyError) Unwrap() error { return ErrArtifactNotFound }

// ============================================================================
// Model Record Errors
// ============================================================================

var (
	ErrModelNotFound     = errors.New("model metadata not found")
	ErrModelNameConflict = errors.New("a model with this name already exists")
)

// ============================================================================
// Auth Errors
// ============================================================================

var (
	ErrUnauthorized = errors.New("missing or invalid credentials")
	ErrForbidden    = errors.New("you do not have access to this model")
)

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"model-trainer-service/internal/core/domain"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrArtifactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrModelNameConflict),
		errors.Is(err, domain.ErrArtifactExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrUnsupportedModelType),
		errors.Is(err, domain.ErrInvalidHyperparameters),
		errors.Is(err, domain.ErrInvalidLabelCardinality),
		errors.Is(err, domain.ErrTargetColumnNotFound),
		errors.Is(err, domain.ErrBatchTooLarge),
		errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrInvalidTestSize),
		errors.Is(err, domain.ErrInvalidFoldCount),
		errors.Is(err, domain.ErrEmptyDataset),
		errors.Is(err, domain.ErrFeatureMismatch),
		errors.Is(err, domain.ErrInvalidCSV),
		errors.Is(err, domain.ErrInvalidEncoding),
		errors.Is(err, domain.ErrConfirmationRequired),
		errors.Is(err, domain.ErrSingleClass),
		errors.Is(err, domain.ErrModelNotFitted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Access errors
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	// Unreadable artifacts
	case errors.Is(err, domain.ErrUnsupportedArtifactFormat),
		errors.Is(err, domain.ErrCorruptArtifact):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrTrainingFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

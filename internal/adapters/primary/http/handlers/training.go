package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"model-trainer-service/internal/adapters/primary/http/dto"
	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/services"
	"model-trainer-service/internal/tabular"
)

func (h *Handler) ListModelTypes(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToModelTypesResponse(h.registry.SupportedTypes()))
}

func (h *Handler) Fit(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var form dto.FitForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := form.ToTrainingJob()
	if err != nil {
		mapDomainError(c, err)
		return
	}

	table, err := readUpload(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	X, y, err := table.Split(form.Target)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	job.OwnerID = identity.ID
	job.Features = X
	job.Labels = y

	result, err := h.trainingSvc.Train(c.Request.Context(), job)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"model_type": form.ModelType,
			"user_id":    identity.ID,
		}).Error("fit failed")
		mapDomainError(c, err)
		return
	}

	h.sessions.Swap(identity.ID, services.Session{
		Model:     result.Model,
		Name:      result.Record.Name,
		ModelType: result.Record.ModelType,
	})

	resp := dto.FitResponse{
		Message:       fmt.Sprintf("Model %q trained successfully.", result.Record.Name),
		Accuracy:      result.Accuracy,
		FileName:      result.Record.Name,
		SavedFileName: result.Filename,
		ModelType:     result.Record.ModelType.String(),
	}
	if result.CV != nil {
		resp.CV = &dto.CrossValidationResponse{
			Folds:  len(result.CV.Scores),
			Scores: result.CV.Scores,
			Mean:   result.CV.Mean,
			StdDev: result.CV.StdDev,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// readUpload parses the CSV sent in the "file" multipart field.
func readUpload(c *gin.Context) (*tabular.Table, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: a CSV file is required in field \"file\"", domain.ErrInvalidCSV)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCSV, err)
	}
	defer f.Close()
	return tabular.Read(f)
}

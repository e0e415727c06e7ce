package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"model-trainer-service/internal/adapters/primary/http/middleware"
	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/services"
)

type Handler struct {
	registry      *ml.Registry
	trainingSvc   *services.TrainingService
	predictionSvc *services.PredictionService
	modelSvc      *services.ModelService
	sessions      *services.SessionStore
}

func New(
	registry *ml.Registry,
	trainingSvc *services.TrainingService,
	predictionSvc *services.PredictionService,
	modelSvc *services.ModelService,
	sessions *services.SessionStore,
) *Handler {
	return &Handler{
		registry:      registry,
		trainingSvc:   trainingSvc,
		predictionSvc: predictionSvc,
		modelSvc:      modelSvc,
		sessions:      sessions,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/model-types", h.ListModelTypes)

	// Training
	r.POST("/fit", h.Fit)

	// Prediction against the caller's current model
	r.POST("/predict", h.Predict)
	r.POST("/predict-file", h.PredictFile)

	// Saved models
	r.GET("/models", h.ListModels)
	r.GET("/models/:name", h.GetModel)
	r.POST("/models/:name/load", h.LoadModel)
	r.PATCH("/models/:name", h.RenameModel)
	r.DELETE("/models/:name", h.DeleteModel)
	r.DELETE("/models", h.DeleteAllModels)
}

// caller returns the authenticated identity or writes a 401.
func caller(c *gin.Context) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
		return domain.Identity{}, false
	}
	return identity, true
}

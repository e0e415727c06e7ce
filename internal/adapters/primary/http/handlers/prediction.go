package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"model-trainer-service/internal/adapters/primary/http/dto"
)

func (h *Handler) Predict(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req dto.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Current(identity.ID)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	pred, err := h.predictionSvc.Predict(session.Model, session.ModelType.String(), req.InputData, req.ReturnProba)
	if err != nil {
		log.WithError(err).WithField("model_name", session.Name).Error("predict failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictResponse(session.Name, session.ModelType, pred))
}

func (h *Handler) PredictFile(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	returnProba, err := strconv.ParseBool(c.DefaultQuery("return_proba", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "return_proba must be a boolean"})
		return
	}

	session, err := h.sessions.Current(identity.ID)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	table, err := readUpload(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	rows, err := table.Features()
	if err != nil {
		mapDomainError(c, err)
		return
	}

	pred, err := h.predictionSvc.Predict(session.Model, session.ModelType.String(), rows, returnProba)
	if err != nil {
		log.WithError(err).WithField("model_name", session.Name).Error("predict from file failed")
		mapDomainError(c, err)
		return
	}

	resp := dto.ToPredictResponse(session.Name, session.ModelType, pred)
	resp.RowsPredicted = pred.Len()
	c.JSON(http.StatusOK, resp)
}

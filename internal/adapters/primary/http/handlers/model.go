package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"model-trainer-service/internal/adapters/primary/http/dto"
	"model-trainer-service/internal/core/services"
)

func (h *Handler) ListModels(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	records, err := h.modelSvc.List(c.Request.Context(), identity)
	if err != nil {
		log.WithError(err).Error("list models failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListModelsResponse(records))
}

func (h *Handler) GetModel(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	record, err := h.modelSvc.Get(c.Request.Context(), identity, c.Param("name"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelRecordResponse(record))
}

func (h *Handler) LoadModel(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	model, record, err := h.modelSvc.Load(c.Request.Context(), identity, c.Param("name"))
	if err != nil {
		log.WithError(err).WithField("model_name", c.Param("name")).Error("load model failed")
		mapDomainError(c, err)
		return
	}

	h.sessions.Swap(identity.ID, services.Session{
		Model:     model,
		Name:      record.Name,
		ModelType: record.ModelType,
	})

	c.JSON(http.StatusOK, dto.LoadModelResponse{
		Message:   fmt.Sprintf("Model %q loaded successfully.", record.Name),
		FileName:  record.Name,
		ModelType: record.ModelType.String(),
	})
}

func (h *Handler) RenameModel(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req dto.RenameModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := c.Param("name")
	record, err := h.modelSvc.Rename(c.Request.Context(), identity, name, req.NewName)
	if err != nil {
		log.WithError(err).WithField("model_name", name).Error("rename model failed")
		mapDomainError(c, err)
		return
	}
	h.sessions.Rename(name, record.Name)

	c.JSON(http.StatusOK, dto.ToModelRecordResponse(record))
}

func (h *Handler) DeleteModel(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	name := c.Param("name")
	if err := h.modelSvc.Delete(c.Request.Context(), identity, name); err != nil {
		log.WithError(err).WithField("model_name", name).Error("delete model failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteModelResponse{
		Message:  fmt.Sprintf("Model %q deleted successfully.", name),
		FileName: name,
	})
}

func (h *Handler) DeleteAllModels(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	confirm, _ := strconv.ParseBool(c.DefaultQuery("confirm", "false"))
	result, err := h.modelSvc.DeleteAll(c.Request.Context(), identity, confirm)
	if err != nil {
		log.WithError(err).Error("delete all models failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteAllResponse{
		Deleted: result.Deleted,
		Failed:  result.Failed,
	})
}
